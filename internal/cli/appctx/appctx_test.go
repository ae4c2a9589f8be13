package appctx

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/datahub-tools/metamigrate/internal/store"
)

func testCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("db", "", "Database path")
	return cmd
}

func TestBootstrap_ConfigOnly(t *testing.T) {
	t.Setenv("METAMIGRATE_DB_PATH", filepath.Join(t.TempDir(), "test.db"))

	app, err := Bootstrap(testCmd(), ConfigOnly())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config == nil {
		t.Error("Config should not be nil")
	}
	if app.DB != nil {
		t.Error("DB should be nil when NeedsDB is false")
	}
	if app.Store != nil {
		t.Error("Store should be nil when NeedsDB is false")
	}
}

func TestBootstrap_WithDB(t *testing.T) {
	t.Setenv("METAMIGRATE_DB_PATH", filepath.Join(t.TempDir(), "test.db"))

	app, err := Bootstrap(testCmd(), DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.DB == nil || app.Store == nil {
		t.Error("DB and Store should be opened when NeedsDB is true")
	}
	// Bootstrap migrates; the environment store must be usable right away.
	if err := app.Store.Environments.Set("dev", "https://dev.example.com", ""); err != nil {
		t.Errorf("store not migrated: %v", err)
	}
}

func TestBootstrap_DBFlagOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("METAMIGRATE_DB_PATH", filepath.Join(tmpDir, "env.db"))
	overridePath := filepath.Join(tmpDir, "override.db")

	cmd := testCmd()
	cmd.ParseFlags([]string{"--db", overridePath})

	app, err := Bootstrap(cmd, DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config.DBPath != overridePath {
		t.Errorf("DBPath should be override path %q, got %q", overridePath, app.Config.DBPath)
	}
}

func TestResolveConnection_FromStore(t *testing.T) {
	t.Setenv("METAMIGRATE_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("METAMIGRATE_SERVER", "")

	app, err := Bootstrap(testCmd(), DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if err := app.Store.Environments.Set("prod", "https://datahub.example.com", "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	conn, err := app.ResolveConnection("prod")
	if err != nil {
		t.Fatalf("ResolveConnection failed: %v", err)
	}
	if conn.Server != "https://datahub.example.com" || conn.Token != "tok" {
		t.Errorf("unexpected connection: %+v", conn)
	}
}

func TestResolveConnection_ConfigFallback(t *testing.T) {
	t.Setenv("METAMIGRATE_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("METAMIGRATE_SERVER", "https://fallback.example.com")
	t.Setenv("METAMIGRATE_TOKEN", "fallback-tok")

	app, err := Bootstrap(testCmd(), DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	conn, err := app.ResolveConnection("anywhere")
	if err != nil {
		t.Fatalf("ResolveConnection failed: %v", err)
	}
	if conn.Server != "https://fallback.example.com" || conn.Token != "fallback-tok" {
		t.Errorf("unexpected fallback connection: %+v", conn)
	}
}

func TestResolveConnection_StoreFailureIsNotMaskedByFallback(t *testing.T) {
	t.Setenv("METAMIGRATE_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("METAMIGRATE_SERVER", "https://fallback.example.com")

	app, err := Bootstrap(testCmd(), DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	// Break the store underneath the app. The lookup failure must surface
	// instead of silently resolving to the config fallback.
	app.DB.Close()

	_, err = app.ResolveConnection("prod")
	if err == nil {
		t.Fatal("expected store failure to propagate")
	}
	if errors.Is(err, store.ErrNotFound) {
		t.Errorf("store failure misreported as not-found: %v", err)
	}
}

func TestResolveConnection_Unconfigured(t *testing.T) {
	t.Setenv("METAMIGRATE_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("METAMIGRATE_SERVER", "")

	app, err := Bootstrap(testCmd(), DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if _, err := app.ResolveConnection("ghost"); err == nil {
		t.Error("expected error for unconfigured environment")
	}
}

func TestApp_Close_Multiple(t *testing.T) {
	// Close should be safe to call multiple times
	app := &App{}
	app.Close()
	app.Close() // Should not panic
}
