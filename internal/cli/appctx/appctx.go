// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, database opening, and environment
// connection resolution to reduce boilerplate across commands.
package appctx

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datahub-tools/metamigrate/internal/config"
	"github.com/datahub-tools/metamigrate/internal/datahub"
	"github.com/datahub-tools/metamigrate/internal/db"
	"github.com/datahub-tools/metamigrate/internal/store"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	// Store wraps DB with the environment and run stores (nil if NeedsDB
	// is false)
	Store *store.Store
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
		a.Store = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool
}

// DefaultOptions returns default options (DB required).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// ConfigOnly returns options that load configuration without a database.
func ConfigOnly() Options {
	return Options{NeedsDB: false}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// It loads config and opens the database when needed; the database is
// closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Override DB path from --db flag if provided
	if dbFlag := cmd.Flag("db"); dbFlag != nil {
		if dbPath := dbFlag.Value.String(); dbPath != "" {
			app.Config.DBPath = dbPath
		}
	}

	if opts.NeedsDB {
		database, err := db.Open(app.Config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Migrate(); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		app.DB = database
		app.Store = store.New(database)
	}

	return app, nil
}

// ResolveConnection turns an environment name into a DataHub connection.
// The environment store is consulted first; when the name is not stored
// there, the config's default server/token pair is used as a fallback so
// ad-hoc runs work without prior `envs set`.
func (a *App) ResolveConnection(name string) (datahub.Connection, error) {
	if a.Store != nil {
		env, err := a.Store.Environments.Get(name)
		switch {
		case err == nil:
			return env.Connection(), nil
		case !errors.Is(err, store.ErrNotFound):
			// A real lookup failure must not silently degrade into the
			// config fallback.
			return datahub.Connection{}, err
		}
	}

	if a.Config.DefaultServer != "" {
		return datahub.Connection{
			Name:   name,
			Server: a.Config.DefaultServer,
			Token:  a.Config.DefaultToken,
		}, nil
	}

	return datahub.Connection{}, fmt.Errorf(
		"environment %q is not configured (run 'metamigrate envs set %s --server <url>' or set METAMIGRATE_SERVER)",
		name, name)
}
