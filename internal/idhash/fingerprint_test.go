package idhash

import (
	"testing"
	"time"

	"prediction-feed/internal/domain"
)

func baseMarket() *domain.Market {
	return &domain.Market{
		ID:          "m-1",
		Question:    "Will the Senate pass the budget bill?",
		Description: strPtr("Resolves YES if the bill passes."),
		Tags:        []string{"Politics", "US"},
	}
}

func TestComputeFingerprint_Determinism(t *testing.T) {
	m := baseMarket()

	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		results[i] = ComputeFingerprint(m, "v1")
	}

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Errorf("Determinism failed: results[%d]=%s != results[0]=%s", i, results[i], results[0])
		}
	}
}

func TestComputeFingerprint_Normalization(t *testing.T) {
	a := baseMarket()
	b := baseMarket()
	b.Question = "WILL THE SENATE PASS THE BUDGET BILL?"
	b.Tags = []string{"us", "politics"}

	if ComputeFingerprint(a, "v1") != ComputeFingerprint(b, "v1") {
		t.Error("case and tag order should not change the fingerprint")
	}

	// Market id and numeric fields are not semantic inputs.
	c := baseMarket()
	c.ID = "m-2"
	vol := 1e6
	c.Volume = &vol
	if ComputeFingerprint(a, "v1") != ComputeFingerprint(c, "v1") {
		t.Error("id and volume should not change the fingerprint")
	}
}

func TestComputeFingerprint_DifferentInputs(t *testing.T) {
	base := ComputeFingerprint(baseMarket(), "v1")

	tests := []struct {
		name   string
		mutate func(m *domain.Market) string
	}{
		{"prompt version", func(m *domain.Market) string { return ComputeFingerprint(m, "v2") }},
		{"question", func(m *domain.Market) string {
			m.Question = "Will the House pass the budget bill?"
			return ComputeFingerprint(m, "v1")
		}},
		{"description", func(m *domain.Market) string {
			m.Description = strPtr("Resolves NO otherwise.")
			return ComputeFingerprint(m, "v1")
		}},
		{"missing description", func(m *domain.Market) string {
			m.Description = nil
			return ComputeFingerprint(m, "v1")
		}},
		{"added tag", func(m *domain.Market) string {
			m.Tags = append(m.Tags, "Congress")
			return ComputeFingerprint(m, "v1")
		}},
		{"changed tag", func(m *domain.Market) string {
			m.Tags = []string{"Politics", "EU"}
			return ComputeFingerprint(m, "v1")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.mutate(baseMarket())
			if got == base {
				t.Errorf("changing %s should produce a different fingerprint", tt.name)
			}
		})
	}
}

func TestComputeFingerprint_SeparatorsInValues(t *testing.T) {
	tests := []struct {
		name string
		a, b func(m *domain.Market)
	}{
		{
			name: "comma inside a tag",
			a:    func(m *domain.Market) { m.Tags = []string{"a,b"} },
			b:    func(m *domain.Market) { m.Tags = []string{"a", "b"} },
		},
		{
			name: "pipe moved between question and description",
			a: func(m *domain.Market) {
				m.Question = "will x|happen"
				m.Description = strPtr("soon")
			},
			b: func(m *domain.Market) {
				m.Question = "will x"
				m.Description = strPtr("happen|soon")
			},
		},
		{
			name: "empty tag versus no tag",
			a:    func(m *domain.Market) { m.Tags = []string{""} },
			b:    func(m *domain.Market) { m.Tags = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := baseMarket(), baseMarket()
			tt.a(a)
			tt.b(b)
			if ComputeFingerprint(a, "v1") == ComputeFingerprint(b, "v1") {
				t.Errorf("%s: fingerprints collide", tt.name)
			}
		})
	}
}

func TestComputeRunID(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 678_000_000, time.FixedZone("X", 3600))

	got := ComputeRunID(ts)
	want := "2026-01-02T02-04-05-678Z"
	if got != want {
		t.Errorf("ComputeRunID() = %s, want %s", got, want)
	}
}

func strPtr(s string) *string {
	return &s
}
