package entity

import (
	"strings"
)

// Identity is the normalized tuple used to recognize the same logical
// entity across environments, independent of URN differences.
type Identity struct {
	Type       string
	BrowsePath string
	Name       string
}

// extractor is one strategy for pulling a value out of a record. It reports
// whether it produced anything; strategies are tried in priority order and
// the first hit wins.
type extractor func(*Record) (string, bool)

var browsePathExtractors = []extractor{
	extractBrowsePathV2,
	extractLegacyBrowsePath,
}

var nameExtractors = []extractor{
	extractTopLevelName,
	extractEditableName,
	extractPropertiesName,
	extractNameFromURN,
}

// ExtractIdentity derives the identity tuple from a record. Absent fields
// resolve to empty strings; extraction never fails a batch.
func ExtractIdentity(r *Record) Identity {
	return Identity{
		Type:       r.Type,
		BrowsePath: runExtractors(r, browsePathExtractors),
		Name:       runExtractors(r, nameExtractors),
	}
}

func runExtractors(r *Record, chain []extractor) string {
	for _, extract := range chain {
		if v, ok := extract(r); ok {
			return v
		}
	}
	return ""
}

// extractBrowsePathV2 joins the segment names of a v2 browse path into a
// "/"-prefixed path. Segments without a resolvable name contribute an empty
// component rather than aborting the path.
func extractBrowsePathV2(r *Record) (string, bool) {
	if r.BrowsePathV2 == nil || len(r.BrowsePathV2.Path) == 0 {
		return "", false
	}
	segments := make([]string, 0, len(r.BrowsePathV2.Path))
	for _, seg := range r.BrowsePathV2.Path {
		name := ""
		if seg.Entity != nil && seg.Entity.Properties != nil {
			name = seg.Entity.Properties.Name
		}
		segments = append(segments, name)
	}
	return "/" + strings.Join(segments, "/"), true
}

// extractLegacyBrowsePath returns the first legacy browse path verbatim.
func extractLegacyBrowsePath(r *Record) (string, bool) {
	if len(r.BrowsePaths) == 0 {
		return "", false
	}
	return r.BrowsePaths[0], true
}

func extractTopLevelName(r *Record) (string, bool) {
	if r.Name == "" {
		return "", false
	}
	return r.Name, true
}

func extractEditableName(r *Record) (string, bool) {
	if r.EditableProperties == nil || r.EditableProperties.Name == "" {
		return "", false
	}
	return r.EditableProperties.Name, true
}

func extractPropertiesName(r *Record) (string, bool) {
	if r.Properties == nil || r.Properties.Name == "" {
		return "", false
	}
	return r.Properties.Name, true
}

// extractNameFromURN is the last resort: the trailing segment of the URN.
// Handles both simple URNs ("urn:li:tag:PII" -> "PII") and tuple-form
// dataset URNs ("urn:li:dataset:(urn:li:dataPlatform:hive,db.tbl,PROD)" ->
// "db.tbl").
func extractNameFromURN(r *Record) (string, bool) {
	urn := r.URN
	if urn == "" {
		return "", false
	}
	if open := strings.Index(urn, "("); open >= 0 {
		inner := strings.TrimSuffix(urn[open+1:], ")")
		parts := strings.Split(inner, ",")
		if len(parts) >= 2 {
			return strings.TrimSpace(parts[1]), true
		}
		return strings.TrimSpace(parts[0]), true
	}
	if idx := strings.LastIndex(urn, ":"); idx >= 0 && idx < len(urn)-1 {
		return urn[idx+1:], true
	}
	return "", false
}
