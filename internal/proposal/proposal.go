// Package proposal turns matched entity pairs into aspect-level metadata
// change proposals addressed to the target environment.
//
// Each supported aspect kind has one handler; handlers are composed through
// an ordered registry so that adding an aspect kind is a table entry, and so
// that proposal order is fixed across runs (identical input produces an
// identical proposal sequence).
package proposal

import (
	"fmt"

	"github.com/datahub-tools/metamigrate/internal/entity"
	"github.com/datahub-tools/metamigrate/internal/match"
	"github.com/datahub-tools/metamigrate/internal/mutation"
)

// Aspect names the metadata facet a proposal upserts.
type Aspect string

const (
	AspectGlobalTags           Aspect = "globalTags"
	AspectGlossaryTerms        Aspect = "glossaryTerms"
	AspectDomains              Aspect = "domains"
	AspectStructuredProperties Aspect = "structuredProperties"
	AspectSchemaFieldMetadata  Aspect = "editableSchemaMetadata"
)

// ChangeTypeUpsert is the only change type this system emits. Proposals
// never delete; migration is additive by construction.
const ChangeTypeUpsert = "UPSERT"

// ChangeProposal is one aspect-level upsert unit, addressed to the target
// entity's URN.
type ChangeProposal struct {
	EntityURN  string `json:"entityUrn"`
	EntityType string `json:"entityType"`
	AspectName Aspect `json:"aspectName"`
	ChangeType string `json:"changeType"`
	// FieldPath scopes schema-field-level proposals to one field.
	FieldPath string `json:"fieldPath,omitempty"`
	Payload   any    `json:"aspect"`
}

// SchemaFieldPayload is the payload shape for per-field tag/term proposals.
type SchemaFieldPayload struct {
	FieldPath     string                `json:"fieldPath"`
	Tags          *entity.GlobalTags    `json:"tags,omitempty"`
	GlossaryTerms *entity.GlossaryTerms `json:"glossaryTerms,omitempty"`
}

// handler generates all proposals for one aspect kind from one matched
// pair. A handler returns nothing when the source entity does not carry the
// aspect: proposals are never synthesized.
type handler struct {
	kind     Aspect
	generate func(src, tgt *entity.Record, ap *applier) []ChangeProposal
}

// applier runs the mutation rules over payload values and collects a
// warning for each value whose translation hit the pass cap without
// stabilizing.
type applier struct {
	rules    *mutation.RuleSet
	warnings []string
}

func (a *applier) apply(value string) string {
	out, stable := a.rules.ApplyStable(value)
	if !stable {
		a.warnings = append(a.warnings,
			fmt.Sprintf("mutation of %q did not stabilize; using %q", value, out))
	}
	return out
}

// registry fixes the aspect generation order: tags, glossary terms,
// domains, structured properties, then schema fields.
var registry = []handler{
	{AspectGlobalTags, generateGlobalTags},
	{AspectGlossaryTerms, generateGlossaryTerms},
	{AspectDomains, generateDomains},
	{AspectStructuredProperties, generateStructuredProperties},
	{AspectSchemaFieldMetadata, generateSchemaFields},
}

// Generate emits the change proposals for one match result, plus any
// warnings about payload values whose mutation did not stabilize.
// Unmatched results produce nothing; the caller reports them instead.
func Generate(m *match.Result, rules *mutation.RuleSet) ([]ChangeProposal, []string) {
	if !m.Matched() {
		return nil, nil
	}
	ap := &applier{rules: rules}
	var out []ChangeProposal
	for _, h := range registry {
		out = append(out, h.generate(m.Source, m.Target, ap)...)
	}
	return out, ap.warnings
}

func newProposal(tgt *entity.Record, kind Aspect, payload any) ChangeProposal {
	return ChangeProposal{
		EntityURN:  tgt.URN,
		EntityType: tgt.Type,
		AspectName: kind,
		ChangeType: ChangeTypeUpsert,
		Payload:    payload,
	}
}

func mutateTags(tags *entity.GlobalTags, ap *applier) *entity.GlobalTags {
	out := &entity.GlobalTags{Tags: make([]entity.TagAssociation, 0, len(tags.Tags))}
	for _, assoc := range tags.Tags {
		out.Tags = append(out.Tags, entity.TagAssociation{Tag: ap.apply(assoc.Tag)})
	}
	return out
}

func mutateTerms(terms *entity.GlossaryTerms, ap *applier) *entity.GlossaryTerms {
	out := &entity.GlossaryTerms{Terms: make([]entity.TermAssociation, 0, len(terms.Terms))}
	for _, assoc := range terms.Terms {
		out.Terms = append(out.Terms, entity.TermAssociation{URN: ap.apply(assoc.URN)})
	}
	return out
}

func generateGlobalTags(src, tgt *entity.Record, ap *applier) []ChangeProposal {
	if src.GlobalTags == nil {
		return nil
	}
	return []ChangeProposal{newProposal(tgt, AspectGlobalTags, mutateTags(src.GlobalTags, ap))}
}

func generateGlossaryTerms(src, tgt *entity.Record, ap *applier) []ChangeProposal {
	if src.GlossaryTerms == nil {
		return nil
	}
	return []ChangeProposal{newProposal(tgt, AspectGlossaryTerms, mutateTerms(src.GlossaryTerms, ap))}
}

func generateDomains(src, tgt *entity.Record, ap *applier) []ChangeProposal {
	if src.Domain == nil {
		return nil
	}
	payload := &entity.DomainAssociation{Domains: make([]string, 0, len(src.Domain.Domains))}
	for _, urn := range src.Domain.Domains {
		payload.Domains = append(payload.Domains, ap.apply(urn))
	}
	return []ChangeProposal{newProposal(tgt, AspectDomains, payload)}
}

func generateStructuredProperties(src, tgt *entity.Record, ap *applier) []ChangeProposal {
	if src.StructuredProperties == nil {
		return nil
	}
	payload := &entity.StructuredProperties{
		Properties: make([]entity.StructuredPropertyAssignment, 0, len(src.StructuredProperties.Properties)),
	}
	for _, assignment := range src.StructuredProperties.Properties {
		payload.Properties = append(payload.Properties, entity.StructuredPropertyAssignment{
			PropertyURN: ap.apply(assignment.PropertyURN),
			Values:      assignment.Values,
		})
	}
	return []ChangeProposal{newProposal(tgt, AspectStructuredProperties, payload)}
}

// generateSchemaFields emits one proposal per schema field that carries
// tags or terms, scoped to that field path. Fields without either are
// skipped entirely.
func generateSchemaFields(src, tgt *entity.Record, ap *applier) []ChangeProposal {
	if src.SchemaMetadata == nil {
		return nil
	}
	var out []ChangeProposal
	for _, field := range src.SchemaMetadata.Fields {
		if field.Tags == nil && field.GlossaryTerms == nil {
			continue
		}
		payload := &SchemaFieldPayload{FieldPath: field.FieldPath}
		if field.Tags != nil {
			payload.Tags = mutateTags(field.Tags, ap)
		}
		if field.GlossaryTerms != nil {
			payload.GlossaryTerms = mutateTerms(field.GlossaryTerms, ap)
		}
		p := newProposal(tgt, AspectSchemaFieldMetadata, payload)
		p.FieldPath = field.FieldPath
		out = append(out, p)
	}
	return out
}
