package semantic

import (
	"testing"
	"time"

	"prediction-feed/internal/domain"
)

func TestLexicon_WordBoundaries(t *testing.T) {
	lex := DefaultLexicon()

	tests := []struct {
		corpus  string
		keyword string
		want    bool
	}{
		{"will openai ship gpt-6?", "openai", true},
		{"he said yes", "ai", false},
		{"new ai model", "ai", true},
		{"the   prime\tminister resigns", "prime minister", true},
		{"primeminister", "prime minister", false},
		{"f1 season opener", "f1", true},
	}

	for _, tt := range tests {
		if got := lex.Has(tt.corpus, tt.keyword); got != tt.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tt.corpus, tt.keyword, got, tt.want)
		}
	}
}

func TestLexicon_DetectCategory(t *testing.T) {
	lex := DefaultLexicon()

	cat, kws := lex.DetectCategory("will the senate vote on the election bill?")
	if cat != domain.CategoryPolitics {
		t.Fatalf("expected politics, got %s", cat)
	}
	if len(kws) != 3 {
		t.Errorf("expected 3 politics keywords, got %v", kws)
	}

	cat, kws = lex.DetectCategory("will it snow in paris?")
	if cat != domain.CategoryOther || len(kws) != 0 {
		t.Errorf("expected other with no keywords, got %s %v", cat, kws)
	}
}

func TestLexicon_ExclusionAndGeo(t *testing.T) {
	lex := DefaultLexicon()

	token, ok := lex.ExclusionToken("will the super bowl be watched by 100m?")
	if !ok || token != "super bowl" {
		t.Errorf("expected super bowl exclusion, got %q %v", token, ok)
	}
	if _, ok := lex.ExclusionToken("will inflation exceed 3%?"); ok {
		t.Errorf("unexpected exclusion")
	}

	if g := lex.DetectGeo("will israel and iran agree a ceasefire?"); g != domain.GeoMiddleEast {
		t.Errorf("expected MiddleEast, got %s", g)
	}
	if g := lex.DetectGeo("will it snow?"); g != domain.GeoWorld {
		t.Errorf("expected World, got %s", g)
	}
}

func TestHeuristic_Classify(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	h := NewHeuristic(DefaultLexicon(), func() time.Time { return now })

	end := now.Add(5 * 24 * time.Hour)
	m := &domain.Market{
		ID:           "1",
		Question:     "Will the Federal Reserve cut the interest rate?",
		Volume:       ptr(300_000.0),
		Liquidity:    ptr(20_000.0),
		OpenInterest: ptr(1_000.0),
		EndDate:      &end,
	}

	out := h.Classify(m)
	// volume, liquidity, deep volume, deadline
	if out.NewsworthinessScore != 20+16*4 {
		t.Errorf("expected score 84, got %d", out.NewsworthinessScore)
	}
	if out.Category != domain.CategoryEconomy {
		t.Errorf("expected economy, got %s", out.Category)
	}
	if out.GeoTag != domain.GeoUS {
		t.Errorf("expected US, got %s", out.GeoTag)
	}
	if out.IsMeme || out.Confidence != heuristicConfidence {
		t.Errorf("unexpected meme/confidence: %+v", out)
	}

	meme := h.Classify(&domain.Market{ID: "2", Question: "Will DOGE hit $1?", Tags: []string{"meme"}})
	if !meme.IsMeme || meme.NewsworthinessScore != 20 {
		t.Errorf("expected meme with base score, got %+v", meme)
	}
}

func TestPriorityScore_Ordering(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	lex := DefaultLexicon()

	expired := now.Add(-24 * time.Hour)
	soon := now.Add(2 * 24 * time.Hour)

	liquid := &domain.Market{ID: "b", Question: "x", Volume: ptr(1e6), Liquidity: ptr(1e5)}
	thin := &domain.Market{ID: "a", Question: "x", Volume: ptr(10.0)}
	closing := &domain.Market{ID: "c", Question: "x", Volume: ptr(10.0), EndDate: &soon}
	dead := &domain.Market{ID: "d", Question: "x", Volume: ptr(10.0), EndDate: &expired}
	twin := &domain.Market{ID: "0", Question: "x", Volume: ptr(10.0)}

	queue := []*domain.Market{dead, thin, closing, liquid, twin}
	sortByPriority(queue, lex, now)

	want := []string{"b", "c", "0", "a", "d"}
	for i, id := range want {
		if queue[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, queue[i].ID, id)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
