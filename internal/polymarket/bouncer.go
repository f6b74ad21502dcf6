package polymarket

import (
	"net/url"
	"strconv"
	"time"

	"prediction-feed/internal/domain"
)

// Bouncer is the pre-acceptance filter applied to every fetched listing.
// A zero threshold disables that check.
type Bouncer struct {
	MinVolume        float64
	MinLiquidity     float64
	MinHoursToEnd    float64
	MaxMarketAgeDays float64
}

// Accept reports whether a listing passes the bouncer at time now.
// Inactive, closed or archived listings never pass.
func (b Bouncer) Accept(r domain.RawListing, now time.Time) bool {
	if active, ok := r.Bool("active"); ok && !active {
		return false
	}
	if closed, ok := r.Bool("closed"); ok && closed {
		return false
	}
	if archived, ok := r.Bool("archived"); ok && archived {
		return false
	}

	if b.MinVolume > 0 {
		volume, _ := r.Number("volume", "volumeNum")
		if volume < b.MinVolume {
			return false
		}
	}
	if b.MinLiquidity > 0 {
		liquidity, _ := r.Number("liquidity", "liquidityNum")
		if liquidity < b.MinLiquidity {
			return false
		}
	}
	if b.MinHoursToEnd > 0 {
		if end, ok := r.Time("endDate", "end_date", "resolutionDate"); ok {
			if end.Before(now.Add(hours(b.MinHoursToEnd))) {
				return false
			}
		}
	}
	if b.MaxMarketAgeDays > 0 {
		if start, ok := r.Time("startDate", "createdAt", "start_date"); ok {
			if start.Before(now.Add(-hours(b.MaxMarketAgeDays * 24))) {
				return false
			}
		}
	}

	return true
}

// apply adds the server-side equivalents of the bouncer thresholds.
func (b Bouncer) apply(q url.Values, now time.Time) {
	if b.MinVolume > 0 {
		q.Set("volume_num_min", strconv.FormatFloat(b.MinVolume, 'f', -1, 64))
	}
	if b.MinLiquidity > 0 {
		q.Set("liquidity_num_min", strconv.FormatFloat(b.MinLiquidity, 'f', -1, 64))
	}
	if b.MaxMarketAgeDays > 0 {
		q.Set("start_date_min", now.Add(-hours(b.MaxMarketAgeDays*24)).UTC().Format(time.RFC3339))
	}
	if b.MinHoursToEnd > 0 {
		q.Set("end_date_min", now.Add(hours(b.MinHoursToEnd)).UTC().Format(time.RFC3339))
	}
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
