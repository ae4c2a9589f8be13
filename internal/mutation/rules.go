// Package mutation implements the rule engine that rewrites URNs and
// property strings from their source-environment form into their
// target-environment form.
//
// A rule set is loaded once per run, validated up front, and then applied as
// a plain value transformation: no hidden per-environment state, no lookups
// at apply time. Apply iterates to a fixed point, so applying the same rule
// set to an already-mutated value is a no-op.
package mutation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Category identifies which substitution table a rule came from. Categories
// are applied in a fixed order: platform instances, then custom properties,
// then environment mappings.
type Category string

const (
	CategoryPlatformInstance Category = "platform_instance_mapping"
	CategoryCustomProperty   Category = "custom_properties"
	CategoryEnvironment      Category = "environment_mapping"
)

// Rule is one literal substitution: every occurrence of Trigger in a
// value is replaced with Replacement.
type Rule struct {
	Category    Category
	Trigger     string
	Replacement string
}

// RuleSet is the ordered collection of substitutions for one target
// environment. Rules within a category keep the order they had in the
// rules file; later rules see the output of earlier ones.
type RuleSet struct {
	PlatformInstances []Rule
	CustomProperties  []Rule
	Environments      []Rule
}

// RuleError reports a malformed rule set. It is detected at load time,
// before any entity is processed.
type RuleError struct {
	Category Category
	Trigger  string
	Problem  string
}

func (e *RuleError) Error() string {
	if e.Trigger == "" {
		return fmt.Sprintf("invalid mutation rules (%s): %s", e.Category, e.Problem)
	}
	return fmt.Sprintf("invalid mutation rule %s[%q]: %s", e.Category, e.Trigger, e.Problem)
}

// Load reads, parses and validates a mutation rules file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mutations file: %w", err)
	}
	return Parse(data)
}

// Parse decodes rule set bytes, preserving the file order of each
// substitution table, and validates the result.
func Parse(data []byte) (*RuleSet, error) {
	tables, err := decodeRuleTables(data)
	if err != nil {
		return nil, err
	}

	rs := &RuleSet{}
	seen := map[Category]bool{}
	for _, table := range tables {
		if seen[table.category] {
			return nil, &RuleError{Category: table.category, Problem: "duplicate rule category"}
		}
		seen[table.category] = true
		switch table.category {
		case CategoryPlatformInstance:
			rs.PlatformInstances = table.rules
		case CategoryCustomProperty:
			rs.CustomProperties = table.rules
		case CategoryEnvironment:
			rs.Environments = table.rules
		default:
			return nil, &RuleError{Category: table.category, Problem: "unknown rule category"}
		}
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Empty reports whether the rule set contains no rules at all. An empty
// rule set is valid; Apply is then the identity function.
func (rs *RuleSet) Empty() bool {
	return len(rs.PlatformInstances) == 0 && len(rs.CustomProperties) == 0 && len(rs.Environments) == 0
}

// ordered returns all rules in application order.
func (rs *RuleSet) ordered() []Rule {
	out := make([]Rule, 0, len(rs.PlatformInstances)+len(rs.CustomProperties)+len(rs.Environments))
	out = append(out, rs.PlatformInstances...)
	out = append(out, rs.CustomProperties...)
	out = append(out, rs.Environments...)
	return out
}

// Validate checks the rule set for problems that would make application
// non-deterministic or obviously non-idempotent:
//
//   - empty triggers (would match everything),
//   - duplicate triggers within a category (ambiguous: which wins?),
//   - a replacement that contains any rule's trigger (every application
//     would mutate the value again).
//
// The last check catches rule sets that can never stabilize on their own.
// It is not sufficient for idempotence: a replacement can still form a
// trigger together with adjacent input text, which is why Apply iterates
// to a fixed point instead of trusting a single pass.
func (rs *RuleSet) Validate() error {
	all := rs.ordered()

	seen := map[Category]map[string]bool{}
	for _, r := range all {
		if r.Trigger == "" {
			return &RuleError{Category: r.Category, Problem: "empty trigger"}
		}
		if seen[r.Category] == nil {
			seen[r.Category] = map[string]bool{}
		}
		if seen[r.Category][r.Trigger] {
			return &RuleError{Category: r.Category, Trigger: r.Trigger, Problem: "duplicate trigger"}
		}
		seen[r.Category][r.Trigger] = true
	}

	for _, r := range all {
		if r.Trigger == r.Replacement {
			// Identity rules are pointless but harmless; skip the
			// re-trigger check so they do not fail validation.
			continue
		}
		for _, other := range all {
			if strings.Contains(r.Replacement, other.Trigger) {
				return &RuleError{
					Category: r.Category,
					Trigger:  r.Trigger,
					Problem: fmt.Sprintf("replacement %q re-triggers rule %s[%q]; rule set would not be idempotent",
						r.Replacement, other.Category, other.Trigger),
				}
			}
		}
	}
	return nil
}

// maxApplyPasses bounds the fixed-point iteration in Apply. Validated
// rule sets converge quickly in practice; the cap guards the pathological
// ones that keep shuffling a long value.
const maxApplyPasses = 10

// Apply transforms a value through every rule in order, repeating the full
// pass until a pass changes nothing. A replacement can combine with
// adjacent input text into a new trigger, so a single pass is not enough
// for idempotence. Apply never fails: a value no rule touches comes back
// unchanged.
func (rs *RuleSet) Apply(value string) string {
	out, _ := rs.ApplyStable(value)
	return out
}

// ApplyStable is Apply plus a convergence flag: false means the value was
// still changing when the pass cap was reached, so the result may not be
// final. Callers surface that to the operator as a warning.
func (rs *RuleSet) ApplyStable(value string) (string, bool) {
	rules := rs.ordered()
	for pass := 0; pass < maxApplyPasses; pass++ {
		next := value
		for _, r := range rules {
			next = strings.ReplaceAll(next, r.Trigger, r.Replacement)
		}
		if next == value {
			return value, true
		}
		value = next
	}
	return value, false
}

// ruleTable is one decoded substitution table with its file order intact.
type ruleTable struct {
	category Category
	rules    []Rule
}

// decodeRuleTables walks the JSON token stream instead of unmarshalling
// into maps, because rule application order is the file order and Go maps
// would destroy it.
func decodeRuleTables(data []byte) ([]ruleTable, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))

	tok, err := dec.Token()
	if err != nil {
		return nil, &RuleError{Problem: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &RuleError{Problem: "rules file must be a JSON object"}
	}

	var tables []ruleTable
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &RuleError{Problem: fmt.Sprintf("not valid JSON: %v", err)}
		}
		category := Category(keyTok.(string))

		rules, err := decodeRuleEntries(dec, category)
		if err != nil {
			return nil, err
		}
		tables = append(tables, ruleTable{category: category, rules: rules})
	}
	return tables, nil
}

func decodeRuleEntries(dec *json.Decoder, category Category) ([]Rule, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, &RuleError{Category: category, Problem: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &RuleError{Category: category, Problem: "rule table must be a JSON object of trigger -> replacement"}
	}

	var rules []Rule
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &RuleError{Category: category, Problem: fmt.Sprintf("not valid JSON: %v", err)}
		}
		valTok, err := dec.Token()
		if err != nil {
			return nil, &RuleError{Category: category, Problem: fmt.Sprintf("not valid JSON: %v", err)}
		}
		replacement, ok := valTok.(string)
		if !ok {
			return nil, &RuleError{Category: category, Trigger: keyTok.(string), Problem: "replacement must be a string"}
		}
		rules = append(rules, Rule{
			Category:    category,
			Trigger:     keyTok.(string),
			Replacement: replacement,
		})
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, &RuleError{Category: category, Problem: fmt.Sprintf("not valid JSON: %v", err)}
	}
	return rules, nil
}
