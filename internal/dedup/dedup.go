package dedup

import (
	"prediction-feed/internal/domain"
)

// Options controls clustering.
type Options struct {
	Enabled             bool
	SimilarityThreshold float64
	MinSharedTokens     int
	MaxPerCluster       int
}

// Result holds survivors in their original order and the demoted items.
type Result struct {
	Curated []domain.CuratedFeedItem
	Demoted []domain.CuratedFeedItem
}

type cluster struct {
	anchorID string
	category domain.Category
	tokens   map[string]struct{}
	accepted int
}

// Apply walks items in rank order. An item joins the most similar cluster of
// its category when both the shared-token and Jaccard thresholds hold; a full
// cluster demotes it with a reason naming the anchor. Survivors are never
// re-ranked.
func Apply(items []domain.CuratedFeedItem, opts Options) Result {
	if !opts.Enabled {
		return Result{Curated: items}
	}
	maxPer := max(1, opts.MaxPerCluster)

	var clusters []*cluster
	res := Result{Curated: make([]domain.CuratedFeedItem, 0, len(items))}

	for _, item := range items {
		tokens := Tokenize(item.Question)

		var best *cluster
		bestSim := -1.0
		for _, c := range clusters {
			if c.category != item.Score.Category {
				continue
			}
			shared, sim := similarity(tokens, c.tokens)
			if shared < opts.MinSharedTokens || sim < opts.SimilarityThreshold {
				continue
			}
			if sim > bestSim {
				best, bestSim = c, sim
			}
		}

		if best == nil {
			clusters = append(clusters, &cluster{
				anchorID: item.ID,
				category: item.Score.Category,
				tokens:   tokens,
				accepted: 1,
			})
			res.Curated = append(res.Curated, item)
			continue
		}

		if best.accepted < maxPer {
			best.accepted++
			res.Curated = append(res.Curated, item)
			continue
		}

		item.IsCurated = false
		item.DecisionReason = domain.ReasonTopicDuplicatePfx + best.anchorID
		res.Demoted = append(res.Demoted, item)
	}

	return res
}
