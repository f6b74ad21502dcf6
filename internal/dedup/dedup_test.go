package dedup

import (
	"strings"
	"testing"

	"prediction-feed/internal/domain"
)

func curated(id, question string, cat domain.Category) domain.CuratedFeedItem {
	return domain.CuratedFeedItem{
		Market:         domain.Market{ID: id, Question: question},
		IsCurated:      true,
		DecisionReason: domain.ReasonIncluded,
		Score:          domain.ScoreBreakdown{Category: cat},
	}
}

var defaultOpts = Options{Enabled: true, SimilarityThreshold: 0.6, MinSharedTokens: 3, MaxPerCluster: 1}

func TestTokenize(t *testing.T) {
	got := Tokenize("Will the Democrats win the Senate races in 2026?")
	for _, want := range []string{"democrat", "win", "senate", "race", "2026"} {
		if _, ok := got[want]; !ok {
			t.Errorf("missing token %q in %v", want, got)
		}
	}
	for _, stop := range []string{"will", "the", "in"} {
		if _, ok := got[stop]; ok {
			t.Errorf("stopword %q should be dropped", stop)
		}
	}

	if _, ok := Tokenize("policies")["policy"]; !ok {
		t.Errorf("expected ies plural to stem to y")
	}
	if _, ok := Tokenize("congress")["congress"]; !ok {
		t.Errorf("double s must not be trimmed")
	}
}

func TestApply_DemotesLowerRankedDuplicate(t *testing.T) {
	// 4 shared of 5 total tokens: Jaccard 0.8.
	items := []domain.CuratedFeedItem{
		curated("top", "Will Smith win Ohio Senate?", domain.CategoryPolitics),
		curated("dup", "Will Smith win Ohio Senate primary?", domain.CategoryPolitics),
	}

	res := Apply(items, defaultOpts)
	if len(res.Curated) != 1 || res.Curated[0].ID != "top" {
		t.Fatalf("expected only top to survive, got %+v", res.Curated)
	}
	if len(res.Demoted) != 1 {
		t.Fatalf("expected one demoted item, got %d", len(res.Demoted))
	}
	d := res.Demoted[0]
	if d.ID != "dup" || d.IsCurated || d.DecisionReason != "excluded_topic_duplicate_of_top" {
		t.Errorf("unexpected demotion: %+v", d)
	}
}

func TestApply_CategoryIsolation(t *testing.T) {
	items := []domain.CuratedFeedItem{
		curated("a", "Will oil prices exceed 100 dollars in March?", domain.CategoryEconomy),
		curated("b", "Will oil prices exceed 100 dollars in March?", domain.CategoryClimateEnergy),
	}

	res := Apply(items, defaultOpts)
	if len(res.Curated) != 2 || len(res.Demoted) != 0 {
		t.Errorf("different categories must not cluster: %+v", res)
	}
}

func TestApply_MaxPerClusterCap(t *testing.T) {
	q := "Will Fed cut interest rates in March meeting?"
	items := []domain.CuratedFeedItem{
		curated("1", q, domain.CategoryEconomy),
		curated("2", q, domain.CategoryEconomy),
		curated("3", q, domain.CategoryEconomy),
		curated("4", q, domain.CategoryEconomy),
	}
	opts := defaultOpts
	opts.MaxPerCluster = 2

	res := Apply(items, opts)
	if len(res.Curated) != 2 || res.Curated[0].ID != "1" || res.Curated[1].ID != "2" {
		t.Fatalf("expected 1 and 2 to survive, got %+v", res.Curated)
	}
	for _, d := range res.Demoted {
		if !strings.HasSuffix(d.DecisionReason, "_of_1") {
			t.Errorf("%s: reason should reference anchor 1, got %s", d.ID, d.DecisionReason)
		}
	}
}

func TestApply_MinSharedTokens(t *testing.T) {
	// Identical two-token questions reach Jaccard 1 but share fewer than 3 tokens.
	items := []domain.CuratedFeedItem{
		curated("a", "Recession 2026?", domain.CategoryEconomy),
		curated("b", "Recession 2026?", domain.CategoryEconomy),
	}

	res := Apply(items, defaultOpts)
	if len(res.Demoted) != 0 {
		t.Errorf("expected no demotion below min shared tokens, got %+v", res.Demoted)
	}
}

func TestApply_Disabled(t *testing.T) {
	items := []domain.CuratedFeedItem{
		curated("a", "Will Smith win the Ohio Senate primary?", domain.CategoryPolitics),
		curated("b", "Will Smith win the Ohio Senate primary?", domain.CategoryPolitics),
	}
	res := Apply(items, Options{})
	if len(res.Curated) != 2 {
		t.Errorf("disabled dedup must keep everything")
	}
}

func TestApply_PicksMostSimilarCluster(t *testing.T) {
	items := []domain.CuratedFeedItem{
		curated("x", "Germany France Italy elections?", domain.CategoryGeopolitics),
		curated("y", "Germany France Spain defense pact?", domain.CategoryGeopolitics),
		curated("z", "Germany France Italy Spain defense pact?", domain.CategoryGeopolitics),
	}
	// z matches x (3/7) and y (5/6); y is closer.
	opts := Options{Enabled: true, SimilarityThreshold: 0.4, MinSharedTokens: 3, MaxPerCluster: 1}

	res := Apply(items, opts)
	if len(res.Demoted) != 1 || res.Demoted[0].ID != "z" {
		t.Fatalf("expected z demoted, got %+v", res.Demoted)
	}
	if res.Demoted[0].DecisionReason != "excluded_topic_duplicate_of_y" {
		t.Errorf("z should join the closer cluster y, got %s", res.Demoted[0].DecisionReason)
	}
}
