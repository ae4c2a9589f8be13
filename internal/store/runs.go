package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/datahub-tools/metamigrate/internal/migrate"
)

// RunStore handles the audit history of migration runs.
type RunStore struct {
	store *Store
}

// Run is one audited migration run.
type Run struct {
	ID                 string
	TargetEnv          string
	DryRun             bool
	State              string
	EntitiesConsidered int
	Matched            int
	Unmatched          int
	Collisions         int
	ProposalsGenerated int
	ProposalsSucceeded int
	ProposalsFailed    int
	StartedAt          string
	FinishedAt         string
}

const timestampLayout = "2006-01-02T15:04:05Z"

// Record persists the outcome of a migration run.
func (rs *RunStore) Record(report *migrate.Report) error {
	dryRun := 0
	if report.DryRun {
		dryRun = 1
	}
	var finishedAt any
	if !report.FinishedAt.IsZero() {
		finishedAt = report.FinishedAt.UTC().Format(timestampLayout)
	}

	_, err := rs.store.db.Exec(`
		INSERT INTO migration_runs (
			id, target_env, dry_run, state,
			entities_considered, matched, unmatched, collisions,
			proposals_generated, proposals_succeeded, proposals_failed,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID, report.TargetEnv, dryRun, string(report.State),
		report.EntitiesConsidered, report.Matched, report.Unmatched, report.Collisions,
		report.ProposalsGenerated, report.ProposalsSucceeded, report.ProposalsFailed,
		report.StartedAt.UTC().Format(timestampLayout), finishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", report.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (rs *RunStore) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := rs.store.db.Query(`
		SELECT id, target_env, dry_run, state,
			entities_considered, matched, unmatched, collisions,
			proposals_generated, proposals_succeeded, proposals_failed,
			started_at, finished_at
		FROM migration_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var dryRun int
		var finishedAt sql.NullString
		err := rows.Scan(&r.ID, &r.TargetEnv, &dryRun, &r.State,
			&r.EntitiesConsidered, &r.Matched, &r.Unmatched, &r.Collisions,
			&r.ProposalsGenerated, &r.ProposalsSucceeded, &r.ProposalsFailed,
			&r.StartedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.DryRun = dryRun != 0
		r.FinishedAt = finishedAt.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Duration computes the run's wall time, zero when it never finished.
func (r *Run) Duration() time.Duration {
	start, err := time.Parse(timestampLayout, r.StartedAt)
	if err != nil || r.FinishedAt == "" {
		return 0
	}
	end, err := time.Parse(timestampLayout, r.FinishedAt)
	if err != nil {
		return 0
	}
	return end.Sub(start)
}
