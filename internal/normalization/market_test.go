package normalization

import (
	"encoding/json"
	"errors"
	"testing"

	"prediction-feed/internal/domain"
)

func decode(t *testing.T, s string) domain.RawListing {
	t.Helper()
	var raw domain.RawListing
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return raw
}

func TestNormalize_RequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing id", `{"question":"Will it rain?"}`, "id"},
		{"blank id", `{"id":"  ","question":"Will it rain?"}`, "id"},
		{"missing question", `{"id":"1"}`, "question"},
		{"blank title", `{"id":"1","title":" "}`, "question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(decode(t, tt.raw))
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestNormalize_FieldAliases(t *testing.T) {
	raw := decode(t, `{
		"marketId": 42,
		"title": "Will the Fed cut rates?",
		"end_date": "2026-03-01T00:00:00Z",
		"liquidityNum": "5000.5",
		"volumeNum": 120000,
		"events": [{"slug": "fed-march", "openInterest": "700", "tags": [{"label": "Economy"}, "Fed"]}],
		"tags": "Fed, Rates",
		"startDate": "2025-12-01",
		"updatedAt": "2026-01-15T10:00:00Z"
	}`)

	m, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if m.ID != "42" || m.Question != "Will the Fed cut rates?" {
		t.Errorf("unexpected id/question: %q %q", m.ID, m.Question)
	}
	if m.URL != "https://polymarket.com/event/fed-march" {
		t.Errorf("unexpected url %q", m.URL)
	}
	if m.Liquidity == nil || *m.Liquidity != 5000.5 {
		t.Errorf("unexpected liquidity %v", m.Liquidity)
	}
	if m.Volume == nil || *m.Volume != 120000 {
		t.Errorf("unexpected volume %v", m.Volume)
	}
	if m.OpenInterest == nil || *m.OpenInterest != 700 {
		t.Errorf("expected open interest from first event, got %v", m.OpenInterest)
	}
	if m.EndDate == nil || m.EndDate.Format("2006-01-02") != "2026-03-01" {
		t.Errorf("unexpected end date %v", m.EndDate)
	}
	if m.CreatedAt == nil || m.UpdatedAt == nil {
		t.Errorf("expected created and updated timestamps")
	}

	want := []string{"Fed", "Rates", "Economy"}
	if len(m.Tags) != len(want) {
		t.Fatalf("expected tags %v, got %v", want, m.Tags)
	}
	for i := range want {
		if m.Tags[i] != want[i] {
			t.Errorf("tag %d: expected %q, got %q", i, want[i], m.Tags[i])
		}
	}
}

func TestNormalize_URLPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "canonical explicit url forced to https",
			raw:  `{"id":"1","question":"q","url":"http://polymarket.com/event/x","slug":"y"}`,
			want: "https://polymarket.com/event/x",
		},
		{
			name: "subdomain accepted",
			raw:  `{"id":"1","question":"q","url":"https://www.polymarket.com/event/x"}`,
			want: "https://www.polymarket.com/event/x",
		},
		{
			name: "foreign host discarded",
			raw:  `{"id":"1","question":"q","url":"https://evil.example/polymarket.com","slug":"y"}`,
			want: "https://polymarket.com/event/y",
		},
		{
			name: "lookalike host discarded",
			raw:  `{"id":"1","question":"q","url":"https://notpolymarket.com/x"}`,
			want: "https://polymarket.com/market/1",
		},
		{
			name: "event slug before listing slug",
			raw:  `{"id":"1","question":"q","slug":"listing","events":[{"slug":"event"}]}`,
			want: "https://polymarket.com/event/event",
		},
		{
			name: "synthetic fallback",
			raw:  `{"id":"abc","question":"q"}`,
			want: "https://polymarket.com/market/abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Normalize(decode(t, tt.raw))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if m.URL != tt.want {
				t.Errorf("expected %q, got %q", tt.want, m.URL)
			}
		})
	}
}

func TestNormalize_Probability(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"yes outcome from encoded arrays", `{"outcomes":"[\"No\",\"Yes\"]","outcomePrices":"[\"0.3\",\"0.7\"]"}`, ptr(0.7)},
		{"first price without yes", `{"outcomes":["Up","Down"],"outcomePrices":[0.55,0.45]}`, ptr(0.55)},
		{"mismatched lengths use first price", `{"outcomes":["Yes"],"outcomePrices":[0.2,0.8]}`, ptr(0.2)},
		{"percent last trade", `{"lastTradePrice":"64"}`, ptr(0.64)},
		{"bid ask midpoint", `{"bestBid":0.4,"bestAsk":0.5}`, ptr(0.45)},
		{"price when last trade absent", `{"price":"0.31"}`, ptr(0.31)},
		{"invalid last trade does not fall back to price", `{"lastTradePrice":"n/a","price":0.9}`, nil},
		{"invalid last trade falls to midpoint", `{"lastTradePrice":"n/a","price":0.9,"bestBid":0.2,"bestAsk":0.4}`, ptr(0.3)},
		{"null last trade uses price", `{"lastTradePrice":null,"price":0.12}`, ptr(0.12)},
		{"out of range", `{"price":250}`, nil},
		{"absent", `{}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, tt.raw)
			raw["id"] = "1"
			raw["question"] = "q"

			m, err := Normalize(raw)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			switch {
			case tt.want == nil && m.Probability != nil:
				t.Errorf("expected nil probability, got %v", *m.Probability)
			case tt.want != nil && m.Probability == nil:
				t.Errorf("expected %v, got nil", *tt.want)
			case tt.want != nil && *m.Probability != *tt.want:
				t.Errorf("expected %v, got %v", *tt.want, *m.Probability)
			}
		})
	}
}

func TestNormalize_HTMLDescription(t *testing.T) {
	m, err := Normalize(decode(t, `{"id":"1","question":"q","description":"<p>Resolves <b>YES</b> if\n the bill passes.</p>"}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if m.Description == nil || *m.Description != "Resolves YES if the bill passes." {
		t.Errorf("unexpected description %v", m.Description)
	}

	m, _ = Normalize(decode(t, `{"id":"1","question":"q","description":"   "}`))
	if m.Description != nil {
		t.Errorf("expected nil description for blank input")
	}
}

func TestNormalizeAll_CountsDropped(t *testing.T) {
	raws := []domain.RawListing{
		decode(t, `{"id":"1","question":"a"}`),
		decode(t, `{"id":"2"}`),
		nil,
		decode(t, `{"id":"3","question":"c"}`),
	}

	res := NormalizeAll(raws)
	if len(res.Markets) != 2 || res.Dropped != 2 {
		t.Fatalf("expected 2 markets and 2 dropped, got %d and %d", len(res.Markets), res.Dropped)
	}
	if res.Markets[0].ID != "1" || res.Markets[1].ID != "3" {
		t.Errorf("unexpected order: %s, %s", res.Markets[0].ID, res.Markets[1].ID)
	}
}

func ptr[T any](v T) *T {
	return &v
}
