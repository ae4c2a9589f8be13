package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/datahub-tools/metamigrate/internal/proposal"
)

// Severity classifies a report diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one per-entity or per-proposal message in the report.
type Diagnostic struct {
	Severity  Severity `json:"severity"`
	EntityURN string   `json:"entityUrn,omitempty"`
	Message   string   `json:"message"`
}

// GeneratedProposal pairs a change proposal with its provenance and, in
// live mode, its submission outcome.
type GeneratedProposal struct {
	SourceURN string                  `json:"sourceUrn"`
	Proposal  proposal.ChangeProposal `json:"proposal"`
	// sourcePayload is the aspect payload before mutation, kept for
	// verbose diff rendering only.
	sourcePayload any
	// SubmitError is set when live-mode submission of this proposal
	// failed after retries.
	SubmitError string `json:"submitError,omitempty"`
}

// Report is the aggregate outcome of one migration run. It is always
// produced, even when individual entities or submissions failed, so
// operators can see exactly what needs a re-run.
type Report struct {
	RunID      string    `json:"runId"`
	TargetEnv  string    `json:"targetEnv"`
	DryRun     bool      `json:"dryRun"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	EntitiesConsidered int `json:"entitiesConsidered"`
	Matched            int `json:"matched"`
	Unmatched          int `json:"unmatched"`
	Collisions         int `json:"collisions"`
	ProposalsGenerated int `json:"proposalsGenerated"`
	ProposalsSucceeded int `json:"proposalsSucceeded"`
	ProposalsFailed    int `json:"proposalsFailed"`

	Diagnostics []Diagnostic        `json:"diagnostics,omitempty"`
	Proposals   []GeneratedProposal `json:"proposals,omitempty"`
}

func (r *Report) diag(severity Severity, urn, format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Severity:  severity,
		EntityURN: urn,
		Message:   fmt.Sprintf(format, args...),
	})
}

// WriteArtifacts writes the dry-run output pair: proposals.json with every
// generated proposal, and summary.txt with the human-readable report.
func (r *Report) WriteArtifacts(dir string, verbose bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	proposalsPath := filepath.Join(dir, "proposals.json")
	data, err := json.MarshalIndent(struct {
		Proposals []GeneratedProposal `json:"proposals"`
	}{Proposals: r.Proposals}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode proposals: %w", err)
	}
	if err := os.WriteFile(proposalsPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write proposals: %w", err)
	}

	summaryPath := filepath.Join(dir, "summary.txt")
	if err := os.WriteFile(summaryPath, []byte(r.Summary(verbose)), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Summary renders the human-readable report. With verbose set, each
// proposal whose payload was changed by mutation rules gets a unified diff
// of the payload before and after.
func (r *Report) Summary(verbose bool) string {
	var b strings.Builder

	mode := "live"
	if r.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(&b, "Migration run %s (%s) -> %s\n", r.RunID, mode, r.TargetEnv)
	fmt.Fprintf(&b, "State: %s\n\n", r.State)
	fmt.Fprintf(&b, "Entities considered:  %d\n", r.EntitiesConsidered)
	fmt.Fprintf(&b, "Matched:              %d\n", r.Matched)
	fmt.Fprintf(&b, "Unmatched:            %d\n", r.Unmatched)
	fmt.Fprintf(&b, "Collisions:           %d\n", r.Collisions)
	fmt.Fprintf(&b, "Proposals generated:  %d\n", r.ProposalsGenerated)
	if !r.DryRun {
		fmt.Fprintf(&b, "Proposals succeeded:  %d\n", r.ProposalsSucceeded)
		fmt.Fprintf(&b, "Proposals failed:     %d\n", r.ProposalsFailed)
	}

	if len(r.Diagnostics) > 0 {
		b.WriteString("\nDiagnostics:\n")
		for _, d := range r.Diagnostics {
			if d.EntityURN != "" {
				fmt.Fprintf(&b, "  [%s] %s: %s\n", d.Severity, d.EntityURN, d.Message)
			} else {
				fmt.Fprintf(&b, "  [%s] %s\n", d.Severity, d.Message)
			}
		}
	}

	if verbose {
		for _, gp := range r.Proposals {
			diff := gp.payloadDiff()
			if diff == "" {
				continue
			}
			fmt.Fprintf(&b, "\n%s %s (%s -> %s):\n%s", gp.Proposal.AspectName,
				diffLabel(gp.Proposal.FieldPath), gp.SourceURN, gp.Proposal.EntityURN, diff)
		}
	}
	return b.String()
}

func diffLabel(fieldPath string) string {
	if fieldPath == "" {
		return "payload"
	}
	return "field " + fieldPath
}

// payloadDiff renders a unified diff between the source aspect payload and
// the mutated proposal payload. Empty when nothing changed or when the
// source payload was not captured.
func (gp *GeneratedProposal) payloadDiff() string {
	if gp.sourcePayload == nil {
		return ""
	}
	before, err := json.MarshalIndent(gp.sourcePayload, "", "  ")
	if err != nil {
		return ""
	}
	after, err := json.MarshalIndent(gp.Proposal.Payload, "", "  ")
	if err != nil {
		return ""
	}
	if string(before) == string(after) {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before) + "\n"),
		B:        difflib.SplitLines(string(after) + "\n"),
		FromFile: "source",
		ToFile:   "mutated",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}
