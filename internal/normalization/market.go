package normalization

import (
	"errors"
	"fmt"
	"time"

	"prediction-feed/internal/domain"
)

// ErrValidation is returned (wrapped) when a listing cannot become a Market.
var ErrValidation = errors.New("validation failed")

// ValidationError describes why a single listing was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid listing: %s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Result is the outcome of normalizing a batch of listings.
type Result struct {
	Markets []domain.Market
	Dropped int
}

// Normalize maps one raw listing into a Market.
// id and question are mandatory; everything else is best effort.
func Normalize(raw domain.RawListing) (domain.Market, error) {
	if raw == nil {
		return domain.Market{}, &ValidationError{Field: "payload", Reason: "is empty"}
	}

	id := raw.ID()
	if id == "" {
		return domain.Market{}, &ValidationError{Field: "id", Reason: "is missing"}
	}

	question, ok := raw.String("question", "title")
	if !ok {
		return domain.Market{}, &ValidationError{Field: "question", Reason: "is missing"}
	}

	events := raw.Objects("events")

	m := domain.Market{
		ID:           id,
		Question:     question,
		Description:  description(raw),
		URL:          marketURL(raw, events, id),
		Probability:  probability(raw),
		EndDate:      optionalTime(raw, "endDate", "end_date", "resolutionDate"),
		Liquidity:    optionalNumber(raw, "liquidity", "liquidityNum"),
		Volume:       optionalNumber(raw, "volume", "volumeNum"),
		OpenInterest: optionalNumber(raw, "openInterest", "open_interest"),
		Tags:         mergeTags(raw, events),
		CreatedAt:    optionalTime(raw, "createdAt", "startDate"),
		UpdatedAt:    optionalTime(raw, "updatedAt"),
	}

	if m.OpenInterest == nil && len(events) > 0 {
		m.OpenInterest = optionalNumber(events[0], "openInterest")
	}

	return m, nil
}

// NormalizeAll normalizes a batch, counting and dropping invalid listings.
// A bad listing never aborts the batch.
func NormalizeAll(raws []domain.RawListing) Result {
	res := Result{Markets: make([]domain.Market, 0, len(raws))}
	for _, raw := range raws {
		m, err := Normalize(raw)
		if err != nil {
			res.Dropped++
			continue
		}
		res.Markets = append(res.Markets, m)
	}
	return res
}

func optionalNumber(raw domain.RawListing, keys ...string) *float64 {
	v, ok := raw.Number(keys...)
	if !ok {
		return nil
	}
	return &v
}

func optionalTime(raw domain.RawListing, keys ...string) *time.Time {
	t, ok := raw.Time(keys...)
	if !ok {
		return nil
	}
	return &t
}
