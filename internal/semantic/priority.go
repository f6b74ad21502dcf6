package semantic

import (
	"math"
	"sort"
	"time"

	"prediction-feed/internal/domain"
)

const (
	priorityVolumeWeight    = 1.0
	priorityLiquidityWeight = 0.8
	priorityCategoryBonus   = 2.0
	priorityKeywordBonus    = 0.5
	priorityRecencyBonus    = 3.0
	priorityRecencyDays     = 180
	priorityDeadlineDays    = 14
	priorityExpiredPenalty  = -3.0
)

// PriorityScore ranks cache misses for LLM budget.
// Liquid, civic, recently active and soon-resolving markets go first.
func PriorityScore(m *domain.Market, lexicon *Lexicon, now time.Time) float64 {
	score := priorityVolumeWeight*LogSize(m.VolumeOrZero()) +
		priorityLiquidityWeight*LogSize(m.LiquidityOrZero())

	category, keywords := lexicon.DetectCategory(Corpus(m))
	if category != domain.CategoryOther {
		score += priorityCategoryBonus + priorityKeywordBonus*float64(len(keywords))
	}

	if last := m.LastActivity(); last != nil {
		days := now.Sub(*last).Hours() / 24
		score += priorityRecencyBonus * math.Max(0, 1-days/priorityRecencyDays)
	}

	if days, ok := daysUntilEnd(m, now); ok {
		switch {
		case days < 0:
			score += priorityExpiredPenalty
		case days <= priorityDeadlineDays:
			score += 2*(1-days/priorityDeadlineDays) + 1
		}
	}

	return score
}

// LogSize is ln(v+1) with negative v read as zero, so bad upstream sizes
// cannot produce NaN scores.
func LogSize(v float64) float64 {
	return math.Log(math.Max(0, v) + 1)
}

// sortByPriority orders markets by descending priority, ties by id ascending.
func sortByPriority(markets []*domain.Market, lexicon *Lexicon, now time.Time) {
	scores := make(map[string]float64, len(markets))
	for _, m := range markets {
		scores[m.ID] = PriorityScore(m, lexicon, now)
	}
	sort.SliceStable(markets, func(i, j int) bool {
		si, sj := scores[markets[i].ID], scores[markets[j].ID]
		if si != sj {
			return si > sj
		}
		return markets[i].ID < markets[j].ID
	})
}
