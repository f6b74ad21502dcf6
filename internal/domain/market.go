package domain

import "time"

// Market is the canonical form of a listing after normalization.
type Market struct {
	ID           string
	Question     string
	Description  *string
	URL          string
	Probability  *float64 // 0..1
	EndDate      *time.Time
	Liquidity    *float64
	Volume       *float64
	OpenInterest *float64
	Tags         []string
	CreatedAt    *time.Time
	UpdatedAt    *time.Time
}

// DescriptionText returns the description or "" when absent.
func (m *Market) DescriptionText() string {
	if m.Description == nil {
		return ""
	}
	return *m.Description
}

// VolumeOrZero returns volume, treating a missing value as zero.
func (m *Market) VolumeOrZero() float64 {
	return valueOrZero(m.Volume)
}

// LiquidityOrZero returns liquidity, treating a missing value as zero.
func (m *Market) LiquidityOrZero() float64 {
	return valueOrZero(m.Liquidity)
}

// OpenInterestOrZero returns open interest, treating a missing value as zero.
func (m *Market) OpenInterestOrZero() float64 {
	return valueOrZero(m.OpenInterest)
}

// LastActivity returns UpdatedAt, falling back to CreatedAt.
func (m *Market) LastActivity() *time.Time {
	if m.UpdatedAt != nil {
		return m.UpdatedAt
	}
	return m.CreatedAt
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
