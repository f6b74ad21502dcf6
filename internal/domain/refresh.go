package domain

import "time"

// RefreshSummary is the immutable record of one pipeline execution.
type RefreshSummary struct {
	RunID             string          `json:"runId"`
	FetchedAt         time.Time       `json:"fetchedAt"`
	PagesFetched      int             `json:"pagesFetched"`
	RawCount          int             `json:"rawCount"`
	DroppedByBouncer  int             `json:"droppedByBouncer"`
	NormalizedCount   int             `json:"normalizedCount"`
	DroppedCount      int             `json:"droppedCount"`
	CuratedCount      int             `json:"curatedCount"`
	RejectedCount     int             `json:"rejectedCount"`
	DedupDemotedCount int             `json:"dedupDemotedCount"`
	Semantic          SemanticMetrics `json:"semantic"`
	Failover          FailoverSummary `json:"failover"`
	Firehose          FirehoseSummary `json:"firehose"`
	Timings           StageTimings    `json:"timings"`
}

// SemanticMetrics aggregates classifier counters for one run.
type SemanticMetrics struct {
	PromptVersion      string `json:"promptVersion"`
	Provider           string `json:"provider"`
	Model              string `json:"model"`
	LLMEnabled         bool   `json:"llmEnabled"`
	LLMAvailable       bool   `json:"llmAvailable"`
	CacheHits          int    `json:"cacheHits"`
	CacheMisses        int    `json:"cacheMisses"`
	LLMAttempts        int    `json:"llmAttempts"`
	LLMEvaluated       int    `json:"llmEvaluated"`
	LLMFailures        int    `json:"llmFailures"`
	HeuristicEvaluated int    `json:"heuristicEvaluated"`
	StrictExcluded     int    `json:"strictExcluded"`
	CacheWrites        int    `json:"cacheWrites"`
}

// FailoverSummary is the failover state after a run.
type FailoverSummary struct {
	Enabled               bool       `json:"enabled"`
	ConsecutiveFailures   int        `json:"consecutiveFailures"`
	CooldownRunsRemaining int        `json:"cooldownRunsRemaining"`
	LastTriggeredAt       *time.Time `json:"lastTriggeredAt,omitempty"`
	LastReason            *string    `json:"lastReason,omitempty"`
	TriggeredThisRun      bool       `json:"triggeredThisRun"`
}

// FirehoseSummary reports live-price augmentation for a run.
type FirehoseSummary struct {
	Enabled        bool `json:"enabled"`
	UpdatesApplied int  `json:"updatesApplied"`
}

// StageTimings holds wall-clock stage durations in milliseconds.
type StageTimings struct {
	TotalMs     int64 `json:"totalMs"`
	FetchMs     int64 `json:"fetchMs"`
	NormalizeMs int64 `json:"normalizeMs"`
	ClassifyMs  int64 `json:"classifyMs"`
	ScoreMs     int64 `json:"scoreMs"`
	DedupMs     int64 `json:"dedupMs"`
	PersistMs   int64 `json:"persistMs"`
}

// IngestionRun is the per-run ingestion counts row.
type IngestionRun struct {
	RunID           string
	FetchedAt       time.Time
	PagesFetched    int
	RawCount        int
	NormalizedCount int
	DroppedCount    int
}
