package storage

import (
	"sort"

	"prediction-feed/internal/domain"
)

// SortSnapshot orders items the way List returns them: curated first, then
// front-page score descending, then id ascending.
func SortSnapshot(items []domain.CuratedFeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsCurated != b.IsCurated {
			return a.IsCurated
		}
		if a.FrontPageScore != b.FrontPageScore {
			return a.FrontPageScore > b.FrontPageScore
		}
		return a.ID < b.ID
	})
}
