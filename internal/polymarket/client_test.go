package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func listing(id string, volume, liquidity float64) map[string]any {
	return map[string]any{
		"id":        id,
		"question":  "Question " + id,
		"volume":    volume,
		"liquidity": liquidity,
		"endDate":   fixedNow.Add(30 * 24 * time.Hour).Format(time.RFC3339),
		"startDate": fixedNow.Add(-10 * 24 * time.Hour).Format(time.RFC3339),
	}
}

// pagedServer serves pages keyed by offset.
func pagedServer(t *testing.T, pages map[int][]map[string]any, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path != "/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		page := pages[offset]
		if page == nil {
			page = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
}

func TestHTTPClient_FetchActiveMarkets_DedupAcrossPages(t *testing.T) {
	pages := map[int][]map[string]any{
		0: {listing("a", 1, 1), listing("b", 1, 1)},
		2: {listing("b", 2, 2), listing("c", 1, 1)},
		4: {listing("a", 3, 3)},
	}
	server := pagedServer(t, pages, nil)
	defer server.Close()

	client := NewHTTPClient(server.URL, WithClock(func() time.Time { return fixedNow }))
	result, err := client.FetchActiveMarkets(context.Background(), FetchOptions{LimitPerPage: 2, MaxPages: 5})
	if err != nil {
		t.Fatalf("FetchActiveMarkets: %v", err)
	}

	if result.PagesFetched != 3 {
		t.Errorf("expected 3 pages (third is short), got %d", result.PagesFetched)
	}

	var ids []string
	for _, m := range result.Markets {
		ids = append(ids, m.ID())
	}
	if fmt.Sprint(ids) != "[a b c]" {
		t.Errorf("expected [a b c], got %v", ids)
	}

	// First occurrence wins.
	if v, _ := result.Markets[1].Number("volume"); v != 1 {
		t.Errorf("expected first occurrence of b (volume 1), got volume %v", v)
	}
}

func TestHTTPClient_FetchActiveMarkets_StopsAtMaxPages(t *testing.T) {
	var hits atomic.Int32
	pages := map[int][]map[string]any{
		0: {listing("a", 1, 1)},
		1: {listing("b", 1, 1)},
		2: {listing("c", 1, 1)},
	}
	server := pagedServer(t, pages, &hits)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	result, err := client.FetchActiveMarkets(context.Background(), FetchOptions{LimitPerPage: 1, MaxPages: 2})
	if err != nil {
		t.Fatalf("FetchActiveMarkets: %v", err)
	}
	if hits.Load() != 2 || result.PagesFetched != 2 {
		t.Errorf("expected 2 requests, got %d (pages %d)", hits.Load(), result.PagesFetched)
	}
	if len(result.Markets) != 2 {
		t.Errorf("expected 2 markets, got %d", len(result.Markets))
	}
}

func TestHTTPClient_FetchActiveMarkets_Bouncer(t *testing.T) {
	soon := listing("ends-soon", 50000, 50000)
	soon["endDate"] = fixedNow.Add(2 * time.Hour).Format(time.RFC3339)
	old := listing("too-old", 50000, 50000)
	old["startDate"] = fixedNow.Add(-400 * 24 * time.Hour).Format(time.RFC3339)
	closed := listing("closed", 50000, 50000)
	closed["closed"] = true

	pages := map[int][]map[string]any{
		0: {
			listing("ok", 50000, 20000),
			listing("low-volume", 9999, 20000),
			listing("low-liquidity", 50000, 10),
			soon,
			old,
			closed,
		},
	}

	var query atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		json.NewEncoder(w).Encode(pages[0])
	}))
	defer server.Close()

	bouncer := Bouncer{MinVolume: 10000, MinLiquidity: 5000, MinHoursToEnd: 24, MaxMarketAgeDays: 365}
	client := NewHTTPClient(server.URL, WithClock(func() time.Time { return fixedNow }))
	result, err := client.FetchActiveMarkets(context.Background(), FetchOptions{LimitPerPage: 100, MaxPages: 1, Bouncer: bouncer})
	if err != nil {
		t.Fatalf("FetchActiveMarkets: %v", err)
	}

	if len(result.Markets) != 1 || result.Markets[0].ID() != "ok" {
		t.Fatalf("expected only 'ok' to pass, got %d markets", len(result.Markets))
	}
	if result.DroppedByBouncer != 5 {
		t.Errorf("expected 5 bounced, got %d", result.DroppedByBouncer)
	}
	if result.RawCount != 6 {
		t.Errorf("expected raw count 6, got %d", result.RawCount)
	}

	q := query.Load().(url.Values)
	if q["volume_num_min"][0] != "10000" || q["liquidity_num_min"][0] != "5000" {
		t.Errorf("bouncer thresholds not forwarded: %v", q)
	}
	if q["active"][0] != "true" || q["closed"][0] != "false" || q["archived"][0] != "false" {
		t.Errorf("status filters missing: %v", q)
	}
}

func TestBouncer_NeverAdmitsBelowMinimums(t *testing.T) {
	thresholds := []Bouncer{
		{MinVolume: 1},
		{MinVolume: 100, MinLiquidity: 100},
		{MinVolume: 1e6, MinLiquidity: 1},
		{MinLiquidity: 25000},
	}
	values := []float64{0, 0.5, 1, 99, 100, 24999, 25000, 1e6, 2e6}

	for _, b := range thresholds {
		for _, vol := range values {
			for _, liq := range values {
				r := listing("x", vol, liq)
				accepted := b.Accept(r, fixedNow)
				below := vol < b.MinVolume || liq < b.MinLiquidity
				if below && accepted {
					t.Errorf("bouncer %+v accepted volume=%v liquidity=%v", b, vol, liq)
				}
			}
		}
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{listing("a", 1, 1)})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithRetries(2),
		WithRetryBackoff(5*time.Millisecond),
	)

	result, err := client.FetchActiveMarkets(context.Background(), FetchOptions{LimitPerPage: 10, MaxPages: 1})
	if err != nil {
		t.Fatalf("FetchActiveMarkets: %v", err)
	}
	if len(result.Markets) != 1 {
		t.Errorf("expected 1 market, got %d", len(result.Markets))
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Write([]byte(`{"error":"not a list"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithRetries(1),
		WithRetryBackoff(time.Millisecond),
	)

	_, err := client.FetchActiveMarkets(context.Background(), FetchOptions{LimitPerPage: 10, MaxPages: 3})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if !errors.Is(err, ErrNotArray) {
		t.Errorf("expected ErrNotArray in chain, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected retries+1 = 2 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchActiveMarkets(ctx, FetchOptions{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
