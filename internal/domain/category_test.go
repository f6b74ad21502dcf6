package domain

import "testing"

func TestCategory_IsValid(t *testing.T) {
	for _, c := range AllCategories {
		if !c.IsValid() {
			t.Errorf("expected %s to be valid", c)
		}
	}
	for _, c := range []Category{"", "tech", "Politics", "sport"} {
		if c.IsValid() {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

func TestGeoTag_IsValid(t *testing.T) {
	for _, g := range AllGeoTags {
		if !g.IsValid() {
			t.Errorf("expected %s to be valid", g)
		}
	}
	if GeoTag("us").IsValid() {
		t.Error("geo tags are case-sensitive")
	}
}

func TestClassification_Sources(t *testing.T) {
	out := SemanticOutput{NewsworthinessScore: 50, Category: CategoryEconomy, GeoTag: GeoUS, Confidence: 0.8}

	tests := []struct {
		name  string
		c     Classification
		want  ClassificationSource
		model string
	}{
		{"cache", CachedClassification{Row: SemanticCacheRow{ModelName: "gpt-4o-mini"}, Out: out}, SourceCache, "gpt-4o-mini"},
		{"llm", LLMClassification{Out: out, Model: "gemini-2.0-flash"}, SourceLLM, "gemini-2.0-flash"},
		{"heuristic", HeuristicClassification{Out: out}, SourceHeuristic, HeuristicModelName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.c.Source() != tt.want {
				t.Errorf("Source() = %s, want %s", tt.c.Source(), tt.want)
			}
			if tt.c.ModelName() != tt.model {
				t.Errorf("ModelName() = %s, want %s", tt.c.ModelName(), tt.model)
			}
			if tt.c.Output() != out {
				t.Errorf("Output() mismatch")
			}
		})
	}
}

func TestMarket_LastActivity(t *testing.T) {
	m := Market{ID: "1", Question: "q"}
	if m.LastActivity() != nil {
		t.Fatal("expected nil when no timestamps")
	}
}
