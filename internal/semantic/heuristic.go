package semantic

import (
	"time"

	"prediction-feed/internal/domain"
)

// Heuristic thresholds.
const (
	signalVolume       = 25_000
	signalLiquidity    = 10_000
	signalOpenInterest = 5_000
	signalDeepVolume   = 250_000
	signalDeepLiquid   = 50_000
	signalDeadlineDays = 14

	heuristicBase       = 20
	heuristicPerSignal  = 16
	heuristicConfidence = 0.35
)

// NewsSignals counts volume, liquidity, open interest and deadline signals (0..5).
func NewsSignals(m *domain.Market, now time.Time) int {
	signals := 0
	vol, liq := m.VolumeOrZero(), m.LiquidityOrZero()

	if vol >= signalVolume {
		signals++
	}
	if liq >= signalLiquidity {
		signals++
	}
	if m.OpenInterestOrZero() >= signalOpenInterest {
		signals++
	}
	if vol >= signalDeepVolume || liq >= signalDeepLiquid {
		signals++
	}
	if days, ok := daysUntilEnd(m, now); ok && days >= 0 && days <= signalDeadlineDays {
		signals++
	}
	return signals
}

// Heuristic is the deterministic fallback classifier.
type Heuristic struct {
	lexicon *Lexicon
	now     func() time.Time
}

// NewHeuristic creates a heuristic classifier.
func NewHeuristic(lexicon *Lexicon, now func() time.Time) *Heuristic {
	if now == nil {
		now = time.Now
	}
	return &Heuristic{lexicon: lexicon, now: now}
}

// Classify never fails.
func (h *Heuristic) Classify(m *domain.Market) domain.SemanticOutput {
	corpus := Corpus(m)
	_, meme := h.lexicon.ExclusionToken(corpus)
	category, _ := h.lexicon.DetectCategory(corpus)

	score := heuristicBase + heuristicPerSignal*NewsSignals(m, h.now())

	return domain.SemanticOutput{
		IsMeme:              meme,
		NewsworthinessScore: clampScore(score),
		Category:            category,
		GeoTag:              h.lexicon.DetectGeo(corpus),
		Confidence:          heuristicConfidence,
	}
}

func clampScore(v int) int {
	return max(1, min(100, v))
}

func daysUntilEnd(m *domain.Market, now time.Time) (float64, bool) {
	if m.EndDate == nil {
		return 0, false
	}
	return m.EndDate.Sub(now).Hours() / 24, true
}
