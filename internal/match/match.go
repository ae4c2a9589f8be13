// Package match pairs source entities with their target-environment
// counterparts using the derived identity key. Matching is a heuristic:
// collisions (two targets under one key) and misses are surfaced on the
// result, never silently dropped.
package match

import (
	"github.com/datahub-tools/metamigrate/internal/entity"
)

// Result is the correspondence decision for one source entity.
type Result struct {
	Source *entity.Record
	// Target is nil when no target entity shares the source's key.
	Target *entity.Record
	// Key is the identity key the lookup used.
	Key string
	// Collision is set when more than one target entity shared the key;
	// the first-indexed one was taken.
	Collision bool
	// Blank is set when the source entity had neither a browse path nor
	// a name. Blank entities are never matched, to avoid mass-matching
	// on a type-only key.
	Blank bool
}

// Matched reports whether the source was paired with a target.
func (r *Result) Matched() bool {
	return r.Target != nil
}

// Match builds an identity index over the target entities and resolves
// each source entity against it. One result per source entity, in source
// order. Runs in O(len(sources) + len(targets)).
func Match(sources, targets []entity.Record) []Result {
	index := make(map[string][]*entity.Record, len(targets))
	for i := range targets {
		t := &targets[i]
		id := entity.ExtractIdentity(t)
		if id.Blank() {
			// A blank target can only ever be found by a blank
			// source, and those never look up. Keep it out of the
			// index so it cannot inflate collision counts.
			continue
		}
		key := entity.MatchKey(id)
		index[key] = append(index[key], t)
	}

	results := make([]Result, 0, len(sources))
	for i := range sources {
		s := &sources[i]
		id := entity.ExtractIdentity(s)
		key := entity.MatchKey(id)

		if id.Blank() {
			results = append(results, Result{Source: s, Key: key, Blank: true})
			continue
		}

		candidates := index[key]
		if len(candidates) == 0 {
			results = append(results, Result{Source: s, Key: key})
			continue
		}
		results = append(results, Result{
			Source:    s,
			Target:    candidates[0],
			Key:       key,
			Collision: len(candidates) > 1,
		})
	}
	return results
}
