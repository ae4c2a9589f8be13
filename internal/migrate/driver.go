// Package migrate orchestrates a metadata migration run: validate the
// source batch, fetch the live target entities, match, generate change
// proposals, and either write dry-run artifacts or submit.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/datahub-tools/metamigrate/internal/entity"
	"github.com/datahub-tools/metamigrate/internal/match"
	"github.com/datahub-tools/metamigrate/internal/mutation"
	"github.com/datahub-tools/metamigrate/internal/proposal"
)

// State is the driver's progress marker, carried on the report.
type State string

const (
	StateInitialized State = "INITIALIZED"
	StateValidating  State = "VALIDATING"
	StateMatching    State = "MATCHING"
	StateEmitting    State = "EMITTING"
	StateSubmitting  State = "SUBMITTING"
	StateDryRunDone  State = "DRY_RUN_DONE"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// Client is the slice of the DataHub surface the driver needs.
type Client interface {
	FetchEntities(ctx context.Context, types []string) ([]entity.Record, error)
	SubmitProposal(ctx context.Context, p proposal.ChangeProposal) error
}

// Options configures one run.
type Options struct {
	TargetEnv string
	DryRun    bool
	// OutputDir receives proposals.json and summary.txt on dry-run.
	OutputDir string
	Verbose   bool
}

// Driver runs migrations against one target environment.
type Driver struct {
	client Client
	rules  *mutation.RuleSet
}

// New builds a driver. The rule set must already be validated (loading it
// through the mutation package guarantees that).
func New(client Client, rules *mutation.RuleSet) *Driver {
	return &Driver{client: client, rules: rules}
}

// Run executes the migration pipeline over the source batch.
//
// The returned error is non-nil only for failures that prevented the run
// (validation, target fetch, artifact write). Per-entity and per-proposal
// problems degrade to report diagnostics; the run still completes and the
// report is always returned, even alongside an error.
func (d *Driver) Run(ctx context.Context, sources []entity.Record, opts Options) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		TargetEnv: opts.TargetEnv,
		DryRun:    opts.DryRun,
		State:     StateInitialized,
		StartedAt: time.Now().UTC(),
	}

	report.State = StateValidating
	if err := validateBatch(sources); err != nil {
		return d.fail(report, err)
	}

	targets, err := d.client.FetchEntities(ctx, entityTypes(sources))
	if err != nil {
		return d.fail(report, fmt.Errorf("failed to fetch target entities: %w", err))
	}

	report.State = StateMatching
	results := match.Match(sources, targets)
	report.EntitiesConsidered = len(results)

	report.State = StateEmitting
	for i := range results {
		d.emit(report, &results[i])
	}

	if opts.DryRun {
		if opts.OutputDir != "" {
			if err := report.WriteArtifacts(opts.OutputDir, opts.Verbose); err != nil {
				return d.fail(report, err)
			}
		}
		report.State = StateDryRunDone
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	report.State = StateSubmitting
	d.submitAll(ctx, report)
	report.State = StateDone
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (d *Driver) fail(report *Report, err error) (*Report, error) {
	report.State = StateFailed
	report.FinishedAt = time.Now().UTC()
	report.diag(SeverityError, "", "%v", err)
	return report, err
}

// emit records the match outcome for one source entity and generates its
// proposals.
func (d *Driver) emit(report *Report, m *match.Result) {
	switch {
	case m.Blank:
		report.Unmatched++
		report.diag(SeverityWarning, m.Source.URN, "no browse path and no name; cannot be matched")
		return
	case !m.Matched():
		report.Unmatched++
		report.diag(SeverityWarning, m.Source.URN, "no target entity for key %q", m.Key)
		return
	}

	report.Matched++
	if m.Collision {
		report.Collisions++
		report.diag(SeverityWarning, m.Source.URN,
			"multiple target entities share key %q; using %s", m.Key, m.Target.URN)
	}

	proposals, warnings := proposal.Generate(m, d.rules)
	for _, w := range warnings {
		report.diag(SeverityWarning, m.Source.URN, "%s", w)
	}
	for _, p := range proposals {
		report.Proposals = append(report.Proposals, GeneratedProposal{
			SourceURN:     m.Source.URN,
			Proposal:      p,
			sourcePayload: sourcePayloadFor(m.Source, p),
		})
		report.ProposalsGenerated++
	}
}

// submitAll pushes every generated proposal to the target. Proposals are
// grouped per source entity in generation order; a failure is recorded and
// submission moves on. Cancellation is honored between entities only: once
// an entity's first proposal went out, its remaining proposals are
// submitted so the entity is not left half-migrated.
func (d *Driver) submitAll(ctx context.Context, report *Report) {
	cancelled := false
	for i := 0; i < len(report.Proposals); {
		end := i + 1
		for end < len(report.Proposals) && report.Proposals[end].SourceURN == report.Proposals[i].SourceURN {
			end++
		}

		if err := ctx.Err(); err != nil {
			cancelled = true
		}
		if cancelled {
			for ; i < end; i++ {
				gp := &report.Proposals[i]
				gp.SubmitError = "run cancelled before submission"
				report.ProposalsFailed++
			}
			continue
		}

		// Drop the parent's deadline for the in-flight entity so a
		// cancellation arriving mid-entity does not strand it.
		entityCtx := context.WithoutCancel(ctx)
		for ; i < end; i++ {
			gp := &report.Proposals[i]
			if err := d.client.SubmitProposal(entityCtx, gp.Proposal); err != nil {
				gp.SubmitError = err.Error()
				report.ProposalsFailed++
				report.diag(SeverityError, gp.Proposal.EntityURN,
					"failed to submit %s proposal: %v", gp.Proposal.AspectName, err)
				continue
			}
			report.ProposalsSucceeded++
		}
	}
	if cancelled {
		report.diag(SeverityWarning, "", "run cancelled; remaining proposals were not submitted")
	}
}

// validateBatch re-checks the structural invariants on every source record
// before any matching begins. A bad record aborts the whole run; partial
// processing of a malformed batch is worse than a clean failure.
func validateBatch(sources []entity.Record) error {
	for i := range sources {
		if err := sources[i].Validate(); err != nil {
			return &entity.ValidationError{Problem: fmt.Sprintf("entities[%d]: %v", i, err)}
		}
	}
	return nil
}

// entityTypes collects the distinct entity types in the batch, preserving
// first-seen order, to scope the target fetch.
func entityTypes(sources []entity.Record) []string {
	seen := map[string]bool{}
	var types []string
	for i := range sources {
		if t := sources[i].Type; !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types
}

// sourcePayloadFor finds the source-side payload a proposal was derived
// from, for verbose diff rendering.
func sourcePayloadFor(src *entity.Record, p proposal.ChangeProposal) any {
	switch p.AspectName {
	case proposal.AspectGlobalTags:
		return src.GlobalTags
	case proposal.AspectGlossaryTerms:
		return src.GlossaryTerms
	case proposal.AspectDomains:
		return src.Domain
	case proposal.AspectStructuredProperties:
		return src.StructuredProperties
	case proposal.AspectSchemaFieldMetadata:
		if src.SchemaMetadata == nil {
			return nil
		}
		for _, f := range src.SchemaMetadata.Fields {
			if f.FieldPath == p.FieldPath {
				return &proposal.SchemaFieldPayload{
					FieldPath:     f.FieldPath,
					Tags:          f.Tags,
					GlossaryTerms: f.GlossaryTerms,
				}
			}
		}
	}
	return nil
}
