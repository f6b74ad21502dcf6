package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prediction-feed/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newStreamServer accepts one connection, reads the subscription and replays frames.
func newStreamServer(t *testing.T, frames []string, subs chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		if subs != nil {
			subs <- string(msg)
		}

		for _, f := range frames {
			if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func testFirehoseConfig(serverURL string) *FirehoseConfig {
	cfg := DefaultFirehoseConfig()
	cfg.URL = "ws" + strings.TrimPrefix(serverURL, "http")
	cfg.SubscriptionMessage = []byte(`{"type":"market"}`)
	return &cfg
}

func TestFirehose_SubscribesAndRecordsPrices(t *testing.T) {
	subs := make(chan string, 1)
	server := newStreamServer(t, []string{
		`{"market":"m1","price":"0.42"}`,
		`[{"event_type":"book","asset_id":"x","data":{"market_id":"m2","best_bid":0.30,"best_ask":0.40}}]`,
		`not json`,
	}, subs)
	defer server.Close()

	fh, err := NewFirehose(context.Background(), testFirehoseConfig(server.URL), nil)
	require.NoError(t, err)
	defer fh.Close()

	select {
	case msg := <-subs:
		assert.Equal(t, `{"type":"market"}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not received")
	}

	require.Eventually(t, func() bool {
		return fh.Stats().Messages == 3
	}, 2*time.Second, 10*time.Millisecond)

	u, ok := fh.Latest("m1")
	require.True(t, ok)
	assert.InDelta(t, 0.42, u.Price, 1e-9)

	u, ok = fh.Latest("m2")
	require.True(t, ok)
	assert.InDelta(t, 0.35, u.Price, 1e-9)

	assert.Equal(t, int64(1), fh.Stats().ParseFailures)
}

func TestFirehose_AugmentSkipsStalePrices(t *testing.T) {
	server := newStreamServer(t, []string{
		`{"market":"fresh","price":0.9}`,
		`{"market":"old","price":0.1}`,
	}, nil)
	defer server.Close()

	fh, err := NewFirehose(context.Background(), testFirehoseConfig(server.URL), nil)
	require.NoError(t, err)
	defer fh.Close()

	require.Eventually(t, func() bool {
		_, a := fh.Latest("fresh")
		_, b := fh.Latest("old")
		return a && b
	}, 2*time.Second, 10*time.Millisecond)

	now := time.Now()
	fh.pricesMu.Lock()
	fh.prices["fresh"] = PriceUpdate{MarketID: "fresh", Price: 0.9, ReceivedAt: now.Add(-10 * time.Second)}
	fh.prices["old"] = PriceUpdate{MarketID: "old", Price: 0.1, ReceivedAt: now.Add(-5 * time.Minute)}
	fh.pricesMu.Unlock()
	fh.now = func() time.Time { return now }

	prior := 0.5
	markets := []domain.Market{
		{ID: "fresh", Probability: &prior},
		{ID: "old", Probability: &prior},
		{ID: "absent"},
	}

	applied := fh.Augment(markets)
	assert.Equal(t, 1, applied)
	require.NotNil(t, markets[0].Probability)
	assert.InDelta(t, 0.9, *markets[0].Probability, 1e-9)
	require.NotNil(t, markets[0].UpdatedAt)
	assert.InDelta(t, 0.5, *markets[1].Probability, 1e-9)
	assert.Nil(t, markets[2].Probability)
	assert.Equal(t, int64(1), fh.Stats().UpdatesApplied)
}

func TestFirehose_CloseIsIdempotent(t *testing.T) {
	server := newStreamServer(t, nil, nil)
	defer server.Close()

	fh, err := NewFirehose(context.Background(), testFirehoseConfig(server.URL), nil)
	require.NoError(t, err)

	require.NoError(t, fh.Close())
	require.NoError(t, fh.Close())
	assert.True(t, fh.closed.Load())
}

func TestNewFirehose_DialError(t *testing.T) {
	cfg := DefaultFirehoseConfig()
	cfg.URL = "ws://127.0.0.1:1/ws"

	_, err := NewFirehose(context.Background(), &cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial")
}

func TestExtractPriceUpdates(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    map[string]float64
	}{
		{
			name:    "trade price",
			payload: map[string]any{"conditionId": "c1", "lastTradePrice": 0.61},
			want:    map[string]float64{"c1": 0.61},
		},
		{
			name:    "bare id needs a price",
			payload: map[string]any{"id": "x", "note": "hello"},
			want:    map[string]float64{},
		},
		{
			name:    "bare id with price",
			payload: map[string]any{"id": "x", "p": "0.2"},
			want:    map[string]float64{"x": 0.2},
		},
		{
			name:    "out of range price ignored",
			payload: map[string]any{"market": "m", "price": 4.0},
			want:    map[string]float64{},
		},
		{
			name: "last update wins per market",
			payload: []any{
				map[string]any{"market": "m", "price": 0.1},
				map[string]any{"market": "m", "price": 0.2},
			},
			want: map[string]float64{"m": 0.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(map[string]float64)
			for _, u := range extractPriceUpdates(tt.payload) {
				got[u.MarketID] = u.Price
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
