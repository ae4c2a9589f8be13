package mutation

import (
	"strings"
	"testing"
)

func TestParsePreservesFileOrder(t *testing.T) {
	rs, err := Parse([]byte(`{
		"custom_properties": {
			"zzz.": "first.",
			"aaa.": "second."
		}
	}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rs.CustomProperties) != 2 {
		t.Fatalf("got %d rules, want 2", len(rs.CustomProperties))
	}
	if rs.CustomProperties[0].Trigger != "zzz." || rs.CustomProperties[1].Trigger != "aaa." {
		t.Errorf("rule order not preserved: %+v", rs.CustomProperties)
	}
}

func TestApplyScenarios(t *testing.T) {
	tests := []struct {
		name  string
		rules string
		input string
		want  string
	}{
		{
			name:  "custom property prefix rewrite",
			rules: `{"custom_properties": {"DEV.": "PROD."}}`,
			input: "urn:li:dataset:(urn:li:dataPlatform:hive,DEV.sales,PROD)",
			want:  "urn:li:dataset:(urn:li:dataPlatform:hive,PROD.sales,PROD)",
		},
		{
			name:  "platform instance remap",
			rules: `{"platform_instance_mapping": {"dev_warehouse": "prod_warehouse"}}`,
			input: "urn:li:dataset:(urn:li:dataPlatform:hive,dev_warehouse.db.tbl,PROD)",
			want:  "urn:li:dataset:(urn:li:dataPlatform:hive,prod_warehouse.db.tbl,PROD)",
		},
		{
			name:  "environment token remap",
			rules: `{"environment_mapping": {"STAGING.": "LIVE."}}`,
			input: "STAGING.orders",
			want:  "LIVE.orders",
		},
		{
			name:  "unmapped value is untouched",
			rules: `{"custom_properties": {"DEV.": "PROD."}}`,
			input: "urn:li:tag:PII",
			want:  "urn:li:tag:PII",
		},
		{
			name:  "later rules see earlier output",
			rules: `{"custom_properties": {"alpha": "beta-stage", "beta-stage.x": "final"}}`,
			input: "alpha.x",
			want:  "final",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Parse([]byte(tt.rules))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := rs.Apply(tt.input); got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	rs, err := Parse([]byte(`{
		"platform_instance_mapping": {"dev_wh": "prod_wh"},
		"custom_properties": {"DEV.": "PROD."},
		"environment_mapping": {"STAGING.": "LIVE."}
	}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	inputs := []string{
		"urn:li:dataset:(urn:li:dataPlatform:hive,DEV.sales,PROD)",
		"STAGING.orders on dev_wh",
		"DEV.a joined with DEV.b",
		"urn:li:tag:untouched",
		"",
	}
	for _, in := range inputs {
		once := rs.Apply(in)
		twice := rs.Apply(once)
		if once != twice {
			t.Errorf("Apply not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestApplyIsIdempotentAcrossBoundaryConcatenation(t *testing.T) {
	// Replacing "a" with "x" next to a literal "y" in the input forms the
	// trigger "xy", which only a further pass can resolve.
	rs, err := Parse([]byte(`{"custom_properties": {"xy": "q", "a": "x"}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	once := rs.Apply("ay")
	if once != "q" {
		t.Errorf("Apply(%q) = %q, want %q", "ay", once, "q")
	}
	if twice := rs.Apply(once); twice != once {
		t.Errorf("Apply not idempotent: first %q, second %q", once, twice)
	}
}

func TestApplyStableReportsNonConvergence(t *testing.T) {
	// "ba" -> "ab" bubbles the "a" left one position per pass, so an input
	// with more leading "b"s than the pass cap cannot stabilize in time.
	rs, err := Parse([]byte(`{"custom_properties": {"ba": "ab"}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if out, stable := rs.ApplyStable("bba"); !stable || out != "abb" {
		t.Errorf("ApplyStable(%q) = %q, %v, want %q, true", "bba", out, stable, "abb")
	}

	long := strings.Repeat("b", 12) + "a"
	if _, stable := rs.ApplyStable(long); stable {
		t.Errorf("ApplyStable(%q) reported convergence despite the pass cap", long)
	}
}

func TestValidateRejectsBadRuleSets(t *testing.T) {
	tests := []struct {
		name    string
		rules   string
		wantMsg string
	}{
		{
			name:    "empty trigger",
			rules:   `{"custom_properties": {"": "x"}}`,
			wantMsg: "empty trigger",
		},
		{
			name:    "replacement re-triggers itself",
			rules:   `{"custom_properties": {"DEV.": "DEV.PROD."}}`,
			wantMsg: "not be idempotent",
		},
		{
			name:    "replacement re-triggers another rule",
			rules:   `{"custom_properties": {"a_env": "b_env"}, "environment_mapping": {"b_env": "c_env"}}`,
			wantMsg: "not be idempotent",
		},
		{
			name:    "duplicate category",
			rules:   `{"custom_properties": {"a": "b"}, "environment_mapping": {"c": "d"}, "custom_properties": {"e": "f"}}`,
			wantMsg: "duplicate rule category",
		},
		{
			name:    "unknown category",
			rules:   `{"rename_everything": {"a": "b"}}`,
			wantMsg: "unknown rule category",
		},
		{
			name:    "non-string replacement",
			rules:   `{"custom_properties": {"a": 1}}`,
			wantMsg: "must be a string",
		},
		{
			name:    "not an object",
			rules:   `["a"]`,
			wantMsg: "JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.rules))
			if err == nil {
				t.Fatal("expected rule error, got nil")
			}
			if _, ok := err.(*RuleError); !ok {
				t.Fatalf("expected *RuleError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateAllowsIdentityRule(t *testing.T) {
	if _, err := Parse([]byte(`{"custom_properties": {"PROD.": "PROD."}}`)); err != nil {
		t.Fatalf("identity rule should validate: %v", err)
	}
}

func TestEmptyRuleSet(t *testing.T) {
	rs, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !rs.Empty() {
		t.Error("expected empty rule set")
	}
	if got := rs.Apply("urn:li:tag:PII"); got != "urn:li:tag:PII" {
		t.Errorf("empty rule set mutated value: %q", got)
	}
}
