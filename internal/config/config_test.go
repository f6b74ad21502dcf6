package config

import (
	"testing"
	"time"

	"prediction-feed/internal/domain"
)

func lookup(values map[string]string) func(string) string {
	return func(name string) string {
		return values[name]
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv(lookup(nil))
	def := Default()

	if cfg.Fetch != def.Fetch {
		t.Errorf("fetch config = %+v, want %+v", cfg.Fetch, def.Fetch)
	}
	if cfg.Failover != def.Failover {
		t.Errorf("failover config = %+v, want %+v", cfg.Failover, def.Failover)
	}
	if cfg.Ranking != def.Ranking {
		t.Errorf("ranking config = %+v, want %+v", cfg.Ranking, def.Ranking)
	}
	if cfg.LLM.Enabled {
		t.Error("LLM should be disabled by default")
	}
	if got := cfg.LLM.NewsFloor(domain.CategorySports); got != 75 {
		t.Errorf("sports floor = %d, want 75", got)
	}
}

func TestFromEnv_Clamping(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "limit above max is clamped",
			env:  map[string]string{"COASENSUS_INGEST_LIMIT_PER_PAGE": "9000"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Fetch.LimitPerPage != 500 {
					t.Errorf("LimitPerPage = %d, want 500", cfg.Fetch.LimitPerPage)
				}
			},
		},
		{
			name: "timeout below min is clamped",
			env:  map[string]string{"COASENSUS_INGEST_TIMEOUT_MS": "5"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Fetch.Timeout != time.Second {
					t.Errorf("Timeout = %v, want 1s", cfg.Fetch.Timeout)
				}
			},
		},
		{
			name: "unparsable value falls back",
			env:  map[string]string{"COASENSUS_INGEST_RETRIES": "many"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Fetch.Retries != 2 {
					t.Errorf("Retries = %d, want 2", cfg.Fetch.Retries)
				}
			},
		},
		{
			name: "fractional int is floored",
			env:  map[string]string{"COASENSUS_INGEST_MAX_PAGES": "4.9"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Fetch.MaxPages != 4 {
					t.Errorf("MaxPages = %d, want 4", cfg.Fetch.MaxPages)
				}
			},
		},
		{
			name: "similarity clamped to unit interval",
			env:  map[string]string{"COASENSUS_TOPIC_DEDUP_SIMILARITY": "1.7"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Dedup.SimilarityThreshold != 1 {
					t.Errorf("SimilarityThreshold = %v, want 1", cfg.Dedup.SimilarityThreshold)
				}
			},
		},
		{
			name: "trailing slash trimmed from base url",
			env:  map[string]string{"POLYMARKET_BASE_URL": "https://example.test/"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Fetch.BaseURL != "https://example.test" {
					t.Errorf("BaseURL = %s", cfg.Fetch.BaseURL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, FromEnv(lookup(tt.env)))
		})
	}
}

func TestFromEnv_LLMAndFloors(t *testing.T) {
	cfg := FromEnv(lookup(map[string]string{
		"COASENSUS_LLM_ENABLED":                 "true",
		"COASENSUS_LLM_PROVIDER":                "Gemini",
		"COASENSUS_LLM_MAX_MARKETS_PER_RUN":     "0",
		"COASENSUS_LLM_NEWS_FLOOR_SPORTS":       "90",
		"COASENSUS_LLM_FAILOVER_ENABLED":        "off",
		"COASENSUS_LLM_FAILOVER_FAILURE_STREAK": "5",
	}))

	if !cfg.LLM.Enabled {
		t.Error("expected LLM enabled")
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("Provider = %s, want gemini", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxMarkets != 0 {
		t.Errorf("MaxMarkets = %d, want 0", cfg.LLM.MaxMarkets)
	}
	if cfg.LLM.NewsFloor(domain.CategorySports) != 90 {
		t.Errorf("sports floor = %d, want 90", cfg.LLM.NewsFloor(domain.CategorySports))
	}
	if cfg.Failover.Enabled {
		t.Error("expected failover disabled")
	}
	if cfg.Failover.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.Failover.FailureThreshold)
	}
}

func TestLoad_ReadsProcessEnv(t *testing.T) {
	t.Setenv("COASENSUS_FRONTPAGE_LAMBDA", "0.5")

	cfg := Load()
	if cfg.Ranking.Lambda != 0.5 {
		t.Errorf("Lambda = %v, want 0.5", cfg.Ranking.Lambda)
	}
}
