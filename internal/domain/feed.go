package domain

// ScoreBreakdown holds the sub-scores behind a curation decision.
type ScoreBreakdown struct {
	CivicScore          int
	NewsworthinessScore int
	Category            Category
	ReasonCodes         []string
}

// CuratedFeedItem is one market in a snapshot, curated or rejected.
type CuratedFeedItem struct {
	Market
	IsCurated      bool
	DecisionReason string
	GeoTag         GeoTag
	Score          ScoreBreakdown
	FrontPageScore float64
	TrendDelta     float64
	Source         ClassificationSource
}

// Decision reason codes.
const (
	ReasonIncluded             = "included_civic_and_news_threshold_met"
	ReasonExcludedMeme         = "excluded_meme"
	ReasonExcludedBelowCivic   = "excluded_below_civic_threshold"
	ReasonExcludedNewsFloorPfx = "excluded_below_news_floor_"
	ReasonTopicDuplicatePfx    = "excluded_topic_duplicate_of_"
	ReasonExcludedPrefix       = "excluded_"
)
