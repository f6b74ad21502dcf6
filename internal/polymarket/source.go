// Package polymarket fetches prediction-market listings from the Gamma API
// and streams live prices from the CLOB websocket.
package polymarket

import (
	"context"
	"time"

	"prediction-feed/internal/domain"
)

// MarketSource defines the listing fetch interface.
type MarketSource interface {
	// FetchActiveMarkets pages through active listings, deduplicating by id
	// and applying the bouncer filter.
	FetchActiveMarkets(ctx context.Context, opts FetchOptions) (*FetchResult, error)
}

// FetchOptions controls one fetch phase.
type FetchOptions struct {
	LimitPerPage int
	MaxPages     int
	Bouncer      Bouncer
}

// FetchResult is the outcome of a fetch phase.
type FetchResult struct {
	Markets          []domain.RawListing
	PagesFetched     int
	RawCount         int // records returned by the API before filtering
	DroppedByBouncer int
	FetchedAt        time.Time
}
