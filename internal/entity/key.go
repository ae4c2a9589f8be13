package entity

import "strings"

// MatchKey builds the case-insensitive composite matching key for an
// identity tuple. Pure and total: every identity yields a key, including
// ones with empty path or name.
func MatchKey(id Identity) string {
	return strings.ToLower(id.Type) + ":" + strings.ToLower(id.BrowsePath) + ":" + strings.ToLower(id.Name)
}

// Blank reports whether the identity carries neither a browse path nor a
// name. Blank identities are never matched against each other: a key built
// only from the entity type would mass-match unrelated entities.
func (id Identity) Blank() bool {
	return id.BrowsePath == "" && id.Name == ""
}
