package sqlite

import "time"

type curatedFeedRow struct {
	MarketID            string `gorm:"primaryKey"`
	RunID               string `gorm:"not null"`
	Question            string `gorm:"not null"`
	Description         *string
	URL                 string `gorm:"not null"`
	Probability         *float64
	EndDate             *time.Time
	Liquidity           *float64
	Volume              *float64
	OpenInterest        *float64
	TagsJSON            string `gorm:"not null"`
	Category            string `gorm:"not null"`
	GeoTag              string `gorm:"not null"`
	CivicScore          int
	NewsworthinessScore int
	IsCurated           bool `gorm:"index:idx_curated_feed_rank,priority:1"`
	DecisionReason      string
	ReasonCodesJSON     string `gorm:"not null"`
	FrontPageScore      float64 `gorm:"index:idx_curated_feed_rank,priority:2"`
	TrendDelta          float64
	Source              string
	CreatedAt           *time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt           *time.Time `gorm:"autoUpdateTime:false"`
}

func (curatedFeedRow) TableName() string { return "curated_feed" }

type semanticCacheRow struct {
	MarketID      string `gorm:"primaryKey"`
	PromptVersion string `gorm:"not null"`
	Fingerprint   string `gorm:"not null"`
	ModelName     string `gorm:"not null"`
	RawJSON       string `gorm:"not null"`
	UpdatedAtMs   int64  `gorm:"not null"`
}

func (semanticCacheRow) TableName() string { return "semantic_market_cache" }

type failoverStateRow struct {
	ID                    int `gorm:"primaryKey;autoIncrement:false"`
	ConsecutiveFailures   int
	CooldownRunsRemaining int
	LastTriggeredAt       *time.Time
	LastReason            *string
	UpdatedAt             time.Time
}

func (failoverStateRow) TableName() string { return "semantic_failover_state" }

type ingestionRunRow struct {
	RunID           string `gorm:"primaryKey"`
	FetchedAt       time.Time
	PagesFetched    int
	RawCount        int
	NormalizedCount int
	DroppedCount    int
	CreatedAt       time.Time
}

func (ingestionRunRow) TableName() string { return "ingestion_runs" }

type latestStateRow struct {
	ID        int    `gorm:"primaryKey;autoIncrement:false"`
	RunID     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (latestStateRow) TableName() string { return "latest_state" }

type semanticRefreshRunRow struct {
	RunID              string `gorm:"primaryKey"`
	FetchedAt          time.Time
	PromptVersion      string
	Provider           string
	Model              string
	LLMEnabled         bool
	LLMAvailable       bool
	CacheHits          int
	CacheMisses        int
	LLMAttempts        int
	LLMEvaluated       int
	LLMFailures        int
	HeuristicEvaluated int
	StrictExcluded     int
	CacheWrites        int
	SummaryJSON        string
	CreatedAt          time.Time
}

func (semanticRefreshRunRow) TableName() string { return "semantic_refresh_runs" }
