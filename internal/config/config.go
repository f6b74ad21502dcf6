// Package config loads refresh pipeline settings from the environment.
//
// Every numeric value has a default and a valid range. Unparsable values fall
// back to the default and out-of-range values are clamped; neither fails startup.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"prediction-feed/internal/domain"
)

// Default upstream endpoints.
const (
	DefaultPolymarketBaseURL = "https://gamma-api.polymarket.com"
	DefaultFirehoseURL       = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	DefaultPromptVersion     = "v1"
)

// Config is the full refresh configuration.
type Config struct {
	Fetch    FetchConfig
	Bouncer  BouncerConfig
	LLM      LLMConfig
	Failover FailoverConfig
	Ranking  RankingConfig
	Dedup    DedupConfig
	Firehose FirehoseConfig
	Infra    InfraConfig
}

// FetchConfig controls listing pagination and retries.
type FetchConfig struct {
	BaseURL      string
	LimitPerPage int
	MaxPages     int
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
}

// BouncerConfig holds pre-acceptance thresholds.
type BouncerConfig struct {
	MinVolume        float64
	MinLiquidity     float64
	MinHoursToEnd    float64
	MaxMarketAgeDays float64
}

// LLMConfig selects and parameterizes the semantic provider.
type LLMConfig struct {
	Enabled       bool
	Provider      string // openai | anthropic | gemini
	Model         string
	BaseURL       string
	APIKey        string
	PromptVersion string
	MaxMarkets    int
	Timeout       time.Duration
	NewsFloors    map[domain.Category]int
}

// FailoverConfig controls the LLM failover state machine.
type FailoverConfig struct {
	Enabled          bool
	FailureThreshold int
	CooldownRuns     int
}

// RankingConfig holds front-page score weights.
type RankingConfig struct {
	W1     float64 // newsworthiness
	W2     float64 // ln(volume+1)
	W3     float64 // ln(liquidity+1)
	Lambda float64 // per-hour decay
}

// DedupConfig controls topic clustering.
type DedupConfig struct {
	Enabled             bool
	SimilarityThreshold float64
	MinSharedTokens     int
	MaxPerCluster       int
}

// FirehoseConfig controls live price augmentation.
type FirehoseConfig struct {
	Enabled    bool
	URL        string
	StaleAfter time.Duration
}

// InfraConfig holds backing service locations.
type InfraConfig struct {
	PostgresDSN     string
	SQLitePath      string
	ClickhouseDSN   string
	RedisURL        string
	AdminToken      string
	RefreshInterval time.Duration
	LeaseTTL        time.Duration
}

// DefaultNewsFloors returns the per-category newsworthiness floors.
func DefaultNewsFloors() map[domain.Category]int {
	return map[domain.Category]int{
		domain.CategoryPolitics:      40,
		domain.CategoryEconomy:       40,
		domain.CategoryPolicy:        40,
		domain.CategoryGeopolitics:   40,
		domain.CategoryPublicHealth:  40,
		domain.CategoryClimateEnergy: 40,
		domain.CategoryTechAI:        40,
		domain.CategorySports:        75,
		domain.CategoryEntertainment: 75,
		domain.CategoryOther:         55,
	}
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		Fetch: FetchConfig{
			BaseURL:      DefaultPolymarketBaseURL,
			LimitPerPage: 100,
			MaxPages:     8,
			Timeout:      12 * time.Second,
			Retries:      2,
			RetryBackoff: 400 * time.Millisecond,
		},
		Bouncer: BouncerConfig{
			MinVolume:        10000,
			MinLiquidity:     5000,
			MinHoursToEnd:    24,
			MaxMarketAgeDays: 365,
		},
		LLM: LLMConfig{
			Enabled:       false,
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			PromptVersion: DefaultPromptVersion,
			MaxMarkets:    150,
			Timeout:       20 * time.Second,
			NewsFloors:    DefaultNewsFloors(),
		},
		Failover: FailoverConfig{
			Enabled:          true,
			FailureThreshold: 3,
			CooldownRuns:     3,
		},
		Ranking: RankingConfig{
			W1:     1.0,
			W2:     0.15,
			W3:     0.1,
			Lambda: 0.01,
		},
		Dedup: DedupConfig{
			Enabled:             true,
			SimilarityThreshold: 0.6,
			MinSharedTokens:     3,
			MaxPerCluster:       1,
		},
		Firehose: FirehoseConfig{
			Enabled:    false,
			URL:        DefaultFirehoseURL,
			StaleAfter: 90 * time.Second,
		},
		Infra: InfraConfig{
			RefreshInterval: 15 * time.Minute,
			LeaseTTL:        10 * time.Minute,
		},
	}
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) Config {
	d := Default()
	e := env{get: getenv}

	cfg := Config{
		Fetch: FetchConfig{
			BaseURL:      strings.TrimRight(e.str("POLYMARKET_BASE_URL", d.Fetch.BaseURL), "/"),
			LimitPerPage: e.intInRange("COASENSUS_INGEST_LIMIT_PER_PAGE", d.Fetch.LimitPerPage, 1, 500),
			MaxPages:     e.intInRange("COASENSUS_INGEST_MAX_PAGES", d.Fetch.MaxPages, 1, 30),
			Timeout:      e.millis("COASENSUS_INGEST_TIMEOUT_MS", d.Fetch.Timeout, 1000, 60000),
			Retries:      e.intInRange("COASENSUS_INGEST_RETRIES", d.Fetch.Retries, 0, 8),
			RetryBackoff: e.millis("COASENSUS_INGEST_RETRY_BACKOFF_MS", d.Fetch.RetryBackoff, 0, 10000),
		},
		Bouncer: BouncerConfig{
			MinVolume:        e.floatInRange("COASENSUS_BOUNCER_MIN_VOLUME", d.Bouncer.MinVolume, 0, 1e12),
			MinLiquidity:     e.floatInRange("COASENSUS_BOUNCER_MIN_LIQUIDITY", d.Bouncer.MinLiquidity, 0, 1e12),
			MinHoursToEnd:    e.floatInRange("COASENSUS_BOUNCER_MIN_HOURS_TO_END", d.Bouncer.MinHoursToEnd, 0, 24*365),
			MaxMarketAgeDays: e.floatInRange("COASENSUS_BOUNCER_MAX_MARKET_AGE_DAYS", d.Bouncer.MaxMarketAgeDays, 1, 3650),
		},
		LLM: LLMConfig{
			Enabled:       e.boolean("COASENSUS_LLM_ENABLED", d.LLM.Enabled),
			Provider:      strings.ToLower(e.str("COASENSUS_LLM_PROVIDER", d.LLM.Provider)),
			Model:         e.str("COASENSUS_LLM_MODEL", d.LLM.Model),
			BaseURL:       e.str("COASENSUS_LLM_BASE_URL", ""),
			APIKey:        e.str("COASENSUS_LLM_API_KEY", ""),
			PromptVersion: e.str("COASENSUS_LLM_PROMPT_VERSION", d.LLM.PromptVersion),
			MaxMarkets:    e.intInRange("COASENSUS_LLM_MAX_MARKETS_PER_RUN", d.LLM.MaxMarkets, 0, 2000),
			Timeout:       e.millis("COASENSUS_LLM_TIMEOUT_MS", d.LLM.Timeout, 1000, 120000),
			NewsFloors:    make(map[domain.Category]int, len(d.LLM.NewsFloors)),
		},
		Failover: FailoverConfig{
			Enabled:          e.boolean("COASENSUS_LLM_FAILOVER_ENABLED", d.Failover.Enabled),
			FailureThreshold: e.intInRange("COASENSUS_LLM_FAILOVER_FAILURE_STREAK", d.Failover.FailureThreshold, 1, 20),
			CooldownRuns:     e.intInRange("COASENSUS_LLM_FAILOVER_COOLDOWN_RUNS", d.Failover.CooldownRuns, 1, 100),
		},
		Ranking: RankingConfig{
			W1:     e.floatInRange("COASENSUS_FRONTPAGE_W1", d.Ranking.W1, 0, 100),
			W2:     e.floatInRange("COASENSUS_FRONTPAGE_W2", d.Ranking.W2, 0, 100),
			W3:     e.floatInRange("COASENSUS_FRONTPAGE_W3", d.Ranking.W3, 0, 100),
			Lambda: e.floatInRange("COASENSUS_FRONTPAGE_LAMBDA", d.Ranking.Lambda, 0, 10),
		},
		Dedup: DedupConfig{
			Enabled:             e.boolean("COASENSUS_TOPIC_DEDUP_ENABLED", d.Dedup.Enabled),
			SimilarityThreshold: e.floatInRange("COASENSUS_TOPIC_DEDUP_SIMILARITY", d.Dedup.SimilarityThreshold, 0, 1),
			MinSharedTokens:     e.intInRange("COASENSUS_TOPIC_DEDUP_MIN_SHARED_TOKENS", d.Dedup.MinSharedTokens, 1, 20),
			MaxPerCluster:       e.intInRange("COASENSUS_TOPIC_DEDUP_MAX_PER_CLUSTER", d.Dedup.MaxPerCluster, 1, 50),
		},
		Firehose: FirehoseConfig{
			Enabled:    e.boolean("COASENSUS_FIREHOSE_ENABLED", d.Firehose.Enabled),
			URL:        e.str("COASENSUS_FIREHOSE_URL", d.Firehose.URL),
			StaleAfter: e.millis("COASENSUS_FIREHOSE_STALE_MS", d.Firehose.StaleAfter, 1000, 3600000),
		},
		Infra: InfraConfig{
			PostgresDSN:     e.str("POSTGRES_DSN", ""),
			SQLitePath:      e.str("SQLITE_PATH", ""),
			ClickhouseDSN:   e.str("CLICKHOUSE_DSN", ""),
			RedisURL:        e.str("REDIS_URL", ""),
			AdminToken:      e.str("COASENSUS_ADMIN_REFRESH_TOKEN", ""),
			RefreshInterval: e.duration("COASENSUS_REFRESH_INTERVAL", d.Infra.RefreshInterval, time.Minute, 24*time.Hour),
			LeaseTTL:        e.duration("COASENSUS_LEASE_TTL", d.Infra.LeaseTTL, 10*time.Second, 2*time.Hour),
		},
	}

	for category, floor := range d.LLM.NewsFloors {
		name := "COASENSUS_LLM_NEWS_FLOOR_" + strings.ToUpper(string(category))
		cfg.LLM.NewsFloors[category] = e.intInRange(name, floor, 1, 100)
	}

	return cfg
}

// NewsFloor returns the floor for a category, defaulting to the "other" floor.
func (c LLMConfig) NewsFloor(category domain.Category) int {
	if floor, ok := c.NewsFloors[category]; ok {
		return floor
	}
	if floor, ok := c.NewsFloors[domain.CategoryOther]; ok {
		return floor
	}
	return 1
}

type env struct {
	get func(string) string
}

func (e env) str(name, fallback string) string {
	v := strings.TrimSpace(e.get(name))
	if v == "" {
		return fallback
	}
	return v
}

func (e env) boolean(name string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(e.get(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func (e env) intInRange(name string, fallback, min, max int) int {
	raw := strings.TrimSpace(e.get(name))
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return int(clamp(math.Floor(f), float64(min), float64(max)))
}

func (e env) floatInRange(name string, fallback, min, max float64) float64 {
	raw := strings.TrimSpace(e.get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return clamp(v, min, max)
}

func (e env) millis(name string, fallback time.Duration, minMs, maxMs int) time.Duration {
	ms := e.intInRange(name, int(fallback/time.Millisecond), minMs, maxMs)
	return time.Duration(ms) * time.Millisecond
}

func (e env) duration(name string, fallback, min, max time.Duration) time.Duration {
	raw := strings.TrimSpace(e.get(name))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return clamp(d, min, max)
}

func clamp[T int | float64 | time.Duration](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
