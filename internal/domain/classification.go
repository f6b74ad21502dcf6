package domain

// ClassificationSource identifies where a classification came from.
type ClassificationSource string

const (
	SourceLLM       ClassificationSource = "llm"
	SourceHeuristic ClassificationSource = "heuristic"
	SourceCache     ClassificationSource = "cache"
)

// String returns the string representation of ClassificationSource.
func (s ClassificationSource) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s ClassificationSource) IsValid() bool {
	return s == SourceLLM || s == SourceHeuristic || s == SourceCache
}

// SemanticOutput is the schema-validated editorial judgement for one market.
type SemanticOutput struct {
	IsMeme              bool     `json:"is_meme"`
	NewsworthinessScore int      `json:"newsworthiness_score"` // 1..100
	Category            Category `json:"category"`
	GeoTag              GeoTag   `json:"geo_tag"`
	Confidence          float64  `json:"confidence"` // 0..1
}

// Classification is the per-market result of semantic classification.
// Implementations: CachedClassification, LLMClassification, HeuristicClassification.
type Classification interface {
	Output() SemanticOutput
	Source() ClassificationSource
	ModelName() string
	PromptVersion() string
	classification()
}

// CachedClassification was served from the semantic cache.
type CachedClassification struct {
	Row SemanticCacheRow
	Out SemanticOutput
}

func (c CachedClassification) Output() SemanticOutput {
	return c.Out
}

func (c CachedClassification) Source() ClassificationSource {
	return SourceCache
}

func (c CachedClassification) ModelName() string {
	return c.Row.ModelName
}

func (c CachedClassification) PromptVersion() string {
	return c.Row.PromptVersion
}

func (CachedClassification) classification() {}

// LLMClassification was produced by a provider call in this run.
type LLMClassification struct {
	Out     SemanticOutput
	Model   string
	Version string
}

func (c LLMClassification) Output() SemanticOutput {
	return c.Out
}

func (c LLMClassification) Source() ClassificationSource {
	return SourceLLM
}

func (c LLMClassification) ModelName() string {
	return c.Model
}

func (c LLMClassification) PromptVersion() string {
	return c.Version
}

func (LLMClassification) classification() {}

// HeuristicClassification was produced by the deterministic fallback.
type HeuristicClassification struct {
	Out     SemanticOutput
	Version string
}

// HeuristicModelName is recorded as model name for heuristic results.
const HeuristicModelName = "heuristic"

func (c HeuristicClassification) Output() SemanticOutput {
	return c.Out
}

func (c HeuristicClassification) Source() ClassificationSource {
	return SourceHeuristic
}

func (c HeuristicClassification) ModelName() string {
	return HeuristicModelName
}

func (c HeuristicClassification) PromptVersion() string {
	return c.Version
}

func (HeuristicClassification) classification() {}

// SemanticCacheRow is one persisted classification, keyed by market id.
// A row is only valid for a market whose current fingerprint and prompt version match.
type SemanticCacheRow struct {
	MarketID      string
	PromptVersion string
	Fingerprint   string
	ModelName     string
	RawJSON       string // serialized SemanticOutput
	UpdatedAt     int64  // Unix milliseconds
}
