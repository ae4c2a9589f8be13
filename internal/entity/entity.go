// Package entity defines the wire model for DataHub entity records as they
// appear in export artifacts and target-environment fetches, plus the
// identity extraction used to match entities across environments.
//
// The same Record shape is used for both source and target entities: a
// source record comes from an export file (immutable once loaded), a target
// record is fetched live per migration run.
package entity

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Record is a single DataHub entity as exported or fetched. All fields
// except URN and Type are optional; the exporter emits whichever shape the
// origin environment produced, so consumers must tolerate any subset.
type Record struct {
	URN                  string                `json:"urn"`
	Type                 string                `json:"type"`
	Name                 string                `json:"name,omitempty"`
	Properties           *Properties           `json:"properties,omitempty"`
	EditableProperties   *Properties           `json:"editableProperties,omitempty"`
	BrowsePaths          []string              `json:"browsePaths,omitempty"`
	BrowsePathV2         *BrowsePathV2         `json:"browsePathV2,omitempty"`
	GlobalTags           *GlobalTags           `json:"globalTags,omitempty"`
	GlossaryTerms        *GlossaryTerms        `json:"glossaryTerms,omitempty"`
	Domain               *DomainAssociation    `json:"domain,omitempty"`
	StructuredProperties *StructuredProperties `json:"structuredProperties,omitempty"`
	SchemaMetadata       *SchemaMetadata       `json:"schemaMetadata,omitempty"`
}

// Properties mirrors the name-bearing properties aspects.
type Properties struct {
	Name string `json:"name,omitempty"`
}

// BrowsePathV2 is the segment-based browse path introduced alongside the
// legacy flat browsePaths strings.
type BrowsePathV2 struct {
	Path []BrowsePathSegment `json:"path,omitempty"`
}

// BrowsePathSegment is one level of a v2 browse path. The segment's display
// name lives on the referenced entity's properties.
type BrowsePathSegment struct {
	Entity *SegmentEntity `json:"entity,omitempty"`
}

// SegmentEntity is the entity a browse path segment points at.
type SegmentEntity struct {
	URN        string      `json:"urn,omitempty"`
	Properties *Properties `json:"properties,omitempty"`
}

// GlobalTags is the entity-level tags aspect.
type GlobalTags struct {
	Tags []TagAssociation `json:"tags"`
}

// TagAssociation attaches one tag URN to an entity or schema field.
type TagAssociation struct {
	Tag string `json:"tag"`
}

// GlossaryTerms is the entity-level glossary terms aspect.
type GlossaryTerms struct {
	Terms []TermAssociation `json:"terms"`
}

// TermAssociation attaches one glossary term URN.
type TermAssociation struct {
	URN string `json:"urn"`
}

// DomainAssociation is the domains aspect. DataHub models it as a list even
// though at most one domain is assigned in practice.
type DomainAssociation struct {
	Domains []string `json:"domains"`
}

// StructuredProperties is the structured properties aspect.
type StructuredProperties struct {
	Properties []StructuredPropertyAssignment `json:"properties"`
}

// StructuredPropertyAssignment binds one structured property URN to its
// values on the entity.
type StructuredPropertyAssignment struct {
	PropertyURN string            `json:"propertyUrn"`
	Values      []json.RawMessage `json:"values,omitempty"`
}

// SchemaMetadata carries per-field metadata for dataset schemas.
type SchemaMetadata struct {
	Fields []SchemaField `json:"fields,omitempty"`
}

// SchemaField is one schema field with its field-level tag/term aspects.
type SchemaField struct {
	FieldPath     string         `json:"fieldPath"`
	Tags          *GlobalTags    `json:"tags,omitempty"`
	GlossaryTerms *GlossaryTerms `json:"glossaryTerms,omitempty"`
}

// ExportFile is the top-level shape of an export artifact.
type ExportFile struct {
	Entities []Record `json:"entities"`
}

// ValidationError reports a structural problem in an export artifact. It is
// fatal: a run never starts on malformed input.
type ValidationError struct {
	Path    string
	Problem string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid export: %s", e.Problem)
	}
	return fmt.Sprintf("invalid export %s: %s", e.Path, e.Problem)
}

// LoadExport reads and validates an export artifact. Any structural problem
// returns a *ValidationError; no partially-loaded entity set is ever
// returned.
func LoadExport(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}

	records, err := ParseExport(data)
	if err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Path = path
		}
		return nil, err
	}
	return records, nil
}

// ParseExport decodes and validates export artifact bytes.
func ParseExport(data []byte) ([]Record, error) {
	var file ExportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &ValidationError{Problem: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if file.Entities == nil {
		return nil, &ValidationError{Problem: `missing "entities" array`}
	}
	for i, rec := range file.Entities {
		if err := rec.Validate(); err != nil {
			return nil, &ValidationError{Problem: fmt.Sprintf("entities[%d]: %v", i, err)}
		}
	}
	return file.Entities, nil
}

// Validate checks the minimal structural requirements on a record. Missing
// names and browse paths are tolerated (they degrade matching, they do not
// fail it); missing URN or type means the record cannot be addressed at all.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.URN) == "" {
		return fmt.Errorf("missing urn")
	}
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("missing entity type (urn %s)", r.URN)
	}
	return nil
}
