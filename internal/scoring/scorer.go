// Package scoring turns classified markets into curated and rejected feed items.
package scoring

import (
	"math"
	"sort"
	"time"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/semantic"
)

// DefaultCivicThreshold is the minimum civic score for curation.
const DefaultCivicThreshold = 2

// Weights parameterize the front-page score.
type Weights struct {
	W1     float64 // newsworthiness/100
	W2     float64 // ln(volume+1)
	W3     float64 // ln(liquidity+1)
	Lambda float64 // per hour since last update
}

// Options configures a Scorer.
type Options struct {
	Lexicon        *semantic.Lexicon
	CivicThreshold int
	NewsFloors     map[domain.Category]int
	Weights        Weights
}

// Result splits scored items by decision. Both lists are in rank order.
type Result struct {
	Curated  []domain.CuratedFeedItem
	Rejected []domain.CuratedFeedItem
}

// Scorer decides curation and computes front-page scores.
type Scorer struct {
	opts Options
}

// NewScorer creates a scorer.
func NewScorer(opts Options) *Scorer {
	if opts.Lexicon == nil {
		opts.Lexicon = semantic.DefaultLexicon()
	}
	if opts.CivicThreshold <= 0 {
		opts.CivicThreshold = DefaultCivicThreshold
	}
	return &Scorer{opts: opts}
}

// Score scores every market. previous holds the prior snapshot's front-page
// scores by id and drives trend delta.
func (s *Scorer) Score(markets []domain.Market, byID map[string]domain.Classification, previous map[string]float64, now time.Time) Result {
	fallback := semantic.NewHeuristic(s.opts.Lexicon, func() time.Time { return now })

	var res Result
	for i := range markets {
		m := &markets[i]

		cls, ok := byID[m.ID]
		if !ok {
			cls = domain.HeuristicClassification{Out: fallback.Classify(m)}
		}

		item := s.scoreOne(m, cls, now)
		if prev, ok := previous[m.ID]; ok {
			item.TrendDelta = item.FrontPageScore - prev
		}

		if item.IsCurated {
			res.Curated = append(res.Curated, item)
		} else {
			res.Rejected = append(res.Rejected, item)
		}
	}

	SortByRank(res.Curated)
	SortByRank(res.Rejected)
	return res
}

func (s *Scorer) scoreOne(m *domain.Market, cls domain.Classification, now time.Time) domain.CuratedFeedItem {
	out := cls.Output()
	corpus := semantic.Corpus(m)
	category := out.Category
	if !category.IsValid() {
		category = domain.CategoryOther
	}

	keywords := s.categoryKeywords(corpus, category)
	civic := CivicScore(category, len(keywords))
	news := max(1, min(100, out.NewsworthinessScore))

	breakdown := domain.ScoreBreakdown{
		CivicScore:          civic,
		NewsworthinessScore: news,
		Category:            category,
		ReasonCodes:         reasonCodes(m, category, keywords, cls.Source(), now),
	}

	item := domain.CuratedFeedItem{
		Market:         *m,
		GeoTag:         out.GeoTag,
		Score:          breakdown,
		FrontPageScore: FrontPageScore(s.opts.Weights, news, m, now),
		Source:         cls.Source(),
	}
	if !item.GeoTag.IsValid() {
		item.GeoTag = domain.GeoWorld
	}

	item.DecisionReason = s.decide(corpus, out.IsMeme, breakdown)
	item.IsCurated = item.DecisionReason == domain.ReasonIncluded
	return item
}

// decide applies, in order: strict exclusion, meme, civic threshold, news floor.
func (s *Scorer) decide(corpus string, isMeme bool, b domain.ScoreBreakdown) string {
	if token, ok := s.opts.Lexicon.ExclusionToken(corpus); ok {
		return domain.ReasonExcludedPrefix + semantic.ReasonToken(token)
	}
	if isMeme {
		return domain.ReasonExcludedMeme
	}
	if b.CivicScore < s.opts.CivicThreshold {
		return domain.ReasonExcludedBelowCivic
	}
	if b.NewsworthinessScore < s.opts.NewsFloors[b.Category] {
		return domain.ReasonExcludedNewsFloorPfx + b.Category.String()
	}
	return domain.ReasonIncluded
}

func (s *Scorer) categoryKeywords(corpus string, category domain.Category) []string {
	var matched []string
	for _, c := range s.opts.Lexicon.Categories {
		if c.Category != category {
			continue
		}
		for _, kw := range c.Keywords {
			if s.opts.Lexicon.Has(corpus, kw) {
				matched = append(matched, kw)
			}
		}
	}
	return matched
}

// CivicScore is 1 plus the matched keyword count for a recognized category, else 0.
func CivicScore(category domain.Category, matchedKeywords int) int {
	if category == domain.CategoryOther {
		return 0
	}
	return 1 + matchedKeywords
}

// FrontPageScore combines newsworthiness, log volume and log liquidity, minus
// a linear decay per hour since the market last changed. The decay is unbounded.
func FrontPageScore(w Weights, newsworthiness int, m *domain.Market, now time.Time) float64 {
	return w.W1*(float64(newsworthiness)/100) +
		w.W2*semantic.LogSize(m.VolumeOrZero()) +
		w.W3*semantic.LogSize(m.LiquidityOrZero()) -
		w.Lambda*HoursSinceUpdate(m, now)
}

// HoursSinceUpdate uses updatedAt, then createdAt, then 0.
func HoursSinceUpdate(m *domain.Market, now time.Time) float64 {
	last := m.LastActivity()
	if last == nil {
		return 0
	}
	return math.Max(0, now.Sub(*last).Hours())
}

// SortByRank orders by front-page score descending, ties by id ascending.
func SortByRank(items []domain.CuratedFeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].FrontPageScore != items[j].FrontPageScore {
			return items[i].FrontPageScore > items[j].FrontPageScore
		}
		return items[i].ID < items[j].ID
	})
}

func reasonCodes(m *domain.Market, category domain.Category, keywords []string, source domain.ClassificationSource, now time.Time) []string {
	codes := make([]string, 0, 5)
	if category != domain.CategoryOther {
		codes = append(codes, "category_"+category.String())
		for i, kw := range keywords {
			if i == 2 {
				break
			}
			codes = append(codes, "keyword_"+semantic.ReasonToken(kw))
		}
	}
	if semantic.NewsSignals(m, now) >= 2 {
		codes = append(codes, "news_signal_volume_or_liquidity")
	}
	codes = append(codes, "semantic_"+source.String())
	return codes
}
