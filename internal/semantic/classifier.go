package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/idhash"
	"prediction-feed/internal/storage"
)

// Options configures a Classifier.
type Options struct {
	Lexicon       *Lexicon
	Provider      Provider // nil disables the LLM arm
	LLMEnabled    bool
	PromptVersion string
	MaxLLMMarkets int
	Failover      FailoverPolicy

	Cache         storage.SemanticCacheStore
	FailoverStore storage.FailoverStateStore

	Logger *slog.Logger
	Now    func() time.Time
}

// Result is the classification of one batch.
type Result struct {
	ByID     map[string]domain.Classification
	Metrics  domain.SemanticMetrics
	Failover domain.FailoverSummary
}

// Classifier resolves a classification for every market.
type Classifier struct {
	opts      Options
	heuristic *Heuristic
	logger    *slog.Logger
	now       func() time.Time
}

// NewClassifier creates a classifier.
func NewClassifier(opts Options) *Classifier {
	if opts.Lexicon == nil {
		opts.Lexicon = DefaultLexicon()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Classifier{
		opts:      opts,
		heuristic: NewHeuristic(opts.Lexicon, now),
		logger:    logger,
		now:       now,
	}
}

// Lexicon returns the keyword table used by the classifier.
func (c *Classifier) Lexicon() *Lexicon {
	return c.opts.Lexicon
}

// Classify returns one classification per market id.
// Provider failures fall back to the heuristic and never fail the batch;
// only context cancellation does.
func (c *Classifier) Classify(ctx context.Context, markets []domain.Market) (*Result, error) {
	now := c.now()
	pv := c.opts.PromptVersion

	res := &Result{
		ByID: make(map[string]domain.Classification, len(markets)),
		Metrics: domain.SemanticMetrics{
			PromptVersion: pv,
			LLMEnabled:    c.opts.LLMEnabled,
		},
	}
	if c.opts.Provider != nil {
		res.Metrics.Provider = c.opts.Provider.Name()
		res.Metrics.Model = c.opts.Provider.Model()
	}

	ids := make([]string, len(markets))
	for i := range markets {
		ids[i] = markets[i].ID
	}
	cached, err := c.opts.Cache.Load(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("load semantic cache: %w", err)
		}
		c.logger.Warn("semantic cache unavailable, classifying all markets", "error", err)
		cached = nil
	}

	fingerprints := make(map[string]string, len(markets))
	var queue []*domain.Market
	var writes []domain.SemanticCacheRow

	for i := range markets {
		m := &markets[i]
		fp := idhash.ComputeFingerprint(m, pv)
		fingerprints[m.ID] = fp

		if row, ok := cached[m.ID]; ok && row.PromptVersion == pv && row.Fingerprint == fp {
			if out, err := ParseOutputText(row.RawJSON); err == nil {
				res.ByID[m.ID] = domain.CachedClassification{Row: row, Out: out}
				res.Metrics.CacheHits++
				continue
			}
		}

		if _, strict := c.opts.Lexicon.ExclusionToken(Corpus(m)); strict {
			cls := c.classifyHeuristic(m)
			res.ByID[m.ID] = cls
			res.Metrics.StrictExcluded++
			res.Metrics.HeuristicEvaluated++
			writes = append(writes, cacheRow(m.ID, fp, cls, now))
			continue
		}

		queue = append(queue, m)
	}
	res.Metrics.CacheMisses = len(markets) - res.Metrics.CacheHits

	state, err := c.loadFailoverState(ctx)
	if err != nil {
		return nil, err
	}
	if !c.opts.Failover.Enabled {
		state = domain.FailoverState{}
	}

	available := c.opts.LLMEnabled && c.opts.Provider != nil && c.opts.Failover.Available(state)
	res.Metrics.LLMAvailable = available

	sortByPriority(queue, c.opts.Lexicon, now)

	var outcome RunOutcome
	for _, m := range queue {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("classify: %w", err)
		}

		var cls domain.Classification
		if available && outcome.Attempts < c.opts.MaxLLMMarkets {
			outcome.Attempts++
			out, err := c.opts.Provider.Classify(ctx, BuildPrompt(m, pv))
			if err != nil {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("classify: %w", ctx.Err())
				}
				outcome.Failures++
				outcome.LastError = err.Error()
				c.logger.Debug("llm classification failed", "market_id", m.ID, "error", err)
				cls = c.classifyHeuristic(m)
				res.Metrics.HeuristicEvaluated++
			} else {
				cls = domain.LLMClassification{Out: out, Model: c.opts.Provider.Model(), Version: pv}
				res.Metrics.LLMEvaluated++
			}
		} else {
			cls = c.classifyHeuristic(m)
			res.Metrics.HeuristicEvaluated++
		}

		res.ByID[m.ID] = cls
		writes = append(writes, cacheRow(m.ID, fingerprints[m.ID], cls, now))
	}
	res.Metrics.LLMAttempts = outcome.Attempts
	res.Metrics.LLMFailures = outcome.Failures

	next, triggered := c.opts.Failover.Next(state, outcome, now)
	if err := c.opts.FailoverStore.Save(ctx, next); err != nil {
		c.logger.Warn("failed to save failover state", "error", err)
	}
	if triggered {
		c.logger.Warn("llm failover triggered",
			"cooldown_runs", next.CooldownRunsRemaining,
			"reason", *next.LastReason,
		)
	}
	res.Failover = domain.FailoverSummary{
		Enabled:               c.opts.Failover.Enabled,
		ConsecutiveFailures:   next.ConsecutiveFailures,
		CooldownRunsRemaining: next.CooldownRunsRemaining,
		LastTriggeredAt:       next.LastTriggeredAt,
		LastReason:            next.LastReason,
		TriggeredThisRun:      triggered,
	}

	if len(writes) > 0 {
		if err := c.opts.Cache.Upsert(ctx, writes); err != nil {
			c.logger.Warn("failed to write semantic cache", "rows", len(writes), "error", err)
		} else {
			res.Metrics.CacheWrites = len(writes)
		}
	}

	return res, nil
}

func (c *Classifier) classifyHeuristic(m *domain.Market) domain.Classification {
	return domain.HeuristicClassification{
		Out:     c.heuristic.Classify(m),
		Version: c.opts.PromptVersion,
	}
}

func (c *Classifier) loadFailoverState(ctx context.Context) (domain.FailoverState, error) {
	state, err := c.opts.FailoverStore.Get(ctx)
	switch {
	case err == nil:
		return state, nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.FailoverState{}, nil
	case ctx.Err() != nil:
		return domain.FailoverState{}, fmt.Errorf("load failover state: %w", err)
	default:
		c.logger.Warn("failover state unavailable, assuming healthy", "error", err)
		return domain.FailoverState{}, nil
	}
}

func cacheRow(marketID, fingerprint string, cls domain.Classification, now time.Time) domain.SemanticCacheRow {
	// SemanticOutput has only plain fields; Marshal cannot fail.
	raw, _ := json.Marshal(cls.Output())
	return domain.SemanticCacheRow{
		MarketID:      marketID,
		PromptVersion: cls.PromptVersion(),
		Fingerprint:   fingerprint,
		ModelName:     cls.ModelName(),
		RawJSON:       string(raw),
		UpdatedAt:     now.UnixMilli(),
	}
}
