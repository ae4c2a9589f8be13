package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/datahub-tools/metamigrate/internal/datahub"
)

// ErrNotFound marks lookups for names that are not in the store, so
// callers can tell "not configured" apart from a real database failure.
var ErrNotFound = errors.New("not configured")

// EnvironmentStore handles persistence of per-environment DataHub
// connection settings.
type EnvironmentStore struct {
	store *Store
}

// Environment is one stored connection entry.
type Environment struct {
	Name      string
	Server    string
	Token     string
	CreatedAt string
	UpdatedAt string
}

// Connection converts a stored environment into a client connection.
func (e *Environment) Connection() datahub.Connection {
	return datahub.Connection{Name: e.Name, Server: e.Server, Token: e.Token}
}

// Set inserts or updates an environment's connection settings.
func (es *EnvironmentStore) Set(name, server, token string) error {
	if name == "" {
		return fmt.Errorf("environment name is required")
	}
	if server == "" {
		return fmt.Errorf("environment server is required")
	}

	_, err := es.store.db.Exec(`
		INSERT INTO environments (name, server, token)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			server = excluded.server,
			token = excluded.token,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')
	`, name, server, token)
	if err != nil {
		return fmt.Errorf("failed to save environment %s: %w", name, err)
	}
	return nil
}

// Get fetches one environment by name.
func (es *EnvironmentStore) Get(name string) (*Environment, error) {
	var env Environment
	var token sql.NullString
	err := es.store.db.QueryRow(`
		SELECT name, server, token, created_at, updated_at
		FROM environments WHERE name = ?
	`, name).Scan(&env.Name, &env.Server, &token, &env.CreatedAt, &env.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("environment %q is %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load environment %s: %w", name, err)
	}
	env.Token = token.String
	return &env, nil
}

// List returns all environments ordered by name.
func (es *EnvironmentStore) List() ([]Environment, error) {
	rows, err := es.store.db.Query(`
		SELECT name, server, token, created_at, updated_at
		FROM environments ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	defer rows.Close()

	var envs []Environment
	for rows.Next() {
		var env Environment
		var token sql.NullString
		if err := rows.Scan(&env.Name, &env.Server, &token, &env.CreatedAt, &env.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		env.Token = token.String
		envs = append(envs, env)
	}
	return envs, rows.Err()
}

// Delete removes an environment. Deleting an unknown name is an error so
// typos surface instead of silently succeeding.
func (es *EnvironmentStore) Delete(name string) error {
	res, err := es.store.db.Exec("DELETE FROM environments WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete environment %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("environment %q is %w", name, ErrNotFound)
	}
	return nil
}
