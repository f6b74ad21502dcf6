package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"prediction-feed/internal/domain"
)

// DefaultFirehoseURL is the CLOB market channel.
const DefaultFirehoseURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

var (
	marketIDKeys = []string{"market", "market_id", "marketId", "condition_id", "conditionId", "token_id", "tokenId"}
	priceKeys    = []string{"last_trade_price", "lastTradePrice", "price", "p"}
	bidKeys      = []string{"best_bid", "bestBid", "bid"}
	askKeys      = []string{"best_ask", "bestAsk", "ask"}
)

// FirehoseConfig configures the live price stream.
type FirehoseConfig struct {
	// URL is the websocket endpoint.
	URL string
	// SubscriptionMessage is sent after every (re)connect when non-empty.
	SubscriptionMessage []byte
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// StaleAfter bounds the age of a price used for augmentation.
	StaleAfter time.Duration
}

// DefaultFirehoseConfig returns default firehose configuration.
func DefaultFirehoseConfig() FirehoseConfig {
	return FirehoseConfig{
		URL:               DefaultFirehoseURL,
		ReconnectDelay:    800 * time.Millisecond,
		MaxReconnectDelay: 15 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		StaleAfter:        90 * time.Second,
	}
}

// PriceUpdate is the latest observed price for one market.
type PriceUpdate struct {
	MarketID   string
	Price      float64
	ReceivedAt time.Time
}

// FirehoseStats counts stream activity since start.
type FirehoseStats struct {
	Messages             int64 `json:"messages"`
	ParseFailures        int64 `json:"parseFailures"`
	UpdatesApplied       int64 `json:"updatesApplied"`
	UnknownMarketUpdates int64 `json:"unknownMarketUpdates"`
	Reconnects           int64 `json:"reconnects"`
}

// Firehose keeps the latest price per market from the websocket stream.
// It is a best-effort freshness input; a dead stream only means no augmentation.
type Firehose struct {
	config FirehoseConfig
	logger *slog.Logger
	now    func() time.Time

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	prices   map[string]PriceUpdate
	known    map[string]struct{}
	pricesMu sync.RWMutex

	messages      atomic.Int64
	parseFailures atomic.Int64
	applied       atomic.Int64
	unknown       atomic.Int64
	reconnects    atomic.Int64

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewFirehose connects to the stream and starts the read and ping loops.
func NewFirehose(ctx context.Context, config *FirehoseConfig, logger *slog.Logger) (*Firehose, error) {
	cfg := DefaultFirehoseConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := &Firehose{
		config: cfg,
		logger: logger,
		now:    time.Now,
		prices: make(map[string]PriceUpdate),
		known:  make(map[string]struct{}),
		done:   make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect dials the endpoint and sends the subscription message.
func (f *Firehose) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.config.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	if len(f.config.SubscriptionMessage) > 0 {
		conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, f.config.SubscriptionMessage); err != nil {
			conn.Close()
			return fmt.Errorf("write subscription: %w", err)
		}
	}

	f.conn = conn
	return nil
}

// Close stops the stream.
func (f *Firehose) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

// Stats returns a copy of the stream counters.
func (f *Firehose) Stats() FirehoseStats {
	return FirehoseStats{
		Messages:             f.messages.Load(),
		ParseFailures:        f.parseFailures.Load(),
		UpdatesApplied:       f.applied.Load(),
		UnknownMarketUpdates: f.unknown.Load(),
		Reconnects:           f.reconnects.Load(),
	}
}

// Latest returns the latest price for a market, if any.
func (f *Firehose) Latest(marketID string) (PriceUpdate, bool) {
	f.pricesMu.RLock()
	defer f.pricesMu.RUnlock()
	u, ok := f.prices[marketID]
	return u, ok
}

// Augment overwrites Probability and UpdatedAt of markets that have a price
// fresher than StaleAfter. Returns the number of markets updated.
func (f *Firehose) Augment(markets []domain.Market) int {
	now := f.now()

	f.pricesMu.Lock()
	defer f.pricesMu.Unlock()

	f.known = make(map[string]struct{}, len(markets))
	applied := 0
	for i := range markets {
		m := &markets[i]
		f.known[m.ID] = struct{}{}

		u, ok := f.prices[m.ID]
		if !ok || now.Sub(u.ReceivedAt) > f.config.StaleAfter {
			continue
		}
		p := u.Price
		at := u.ReceivedAt.UTC()
		m.Probability = &p
		m.UpdatedAt = &at
		applied++
	}

	f.applied.Add(int64(applied))
	return applied
}

// readLoop reads messages and records prices.
func (f *Firehose) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

// reconnect waits, redials and resubscribes.
func (f *Firehose) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	f.reconnects.Add(1)
	if err := f.connect(ctx); err != nil {
		f.logger.Warn("firehose reconnect failed", "error", err, "delay", delay)
		return
	}
	f.logger.Info("firehose reconnected")
}

// handleMessage parses one frame and records any price updates in it.
func (f *Firehose) handleMessage(message []byte) {
	f.messages.Add(1)

	var payload any
	if err := json.Unmarshal(message, &payload); err != nil {
		f.parseFailures.Add(1)
		return
	}

	updates := extractPriceUpdates(payload)
	if len(updates) == 0 {
		return
	}

	now := f.now()

	f.pricesMu.Lock()
	defer f.pricesMu.Unlock()

	for _, u := range updates {
		if len(f.known) > 0 {
			if _, ok := f.known[u.MarketID]; !ok {
				f.unknown.Add(1)
			}
		}
		u.ReceivedAt = now
		f.prices[u.MarketID] = u
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (f *Firehose) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				// A failed ping surfaces as a read error and triggers reconnect.
				_ = f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}

// extractPriceUpdates walks a payload and returns one update per market id.
// A bare "id" key only identifies a market when a price field is present.
func extractPriceUpdates(payload any) []PriceUpdate {
	var records []domain.RawListing
	collectRecords(payload, 0, &records)

	byID := make(map[string]int)
	var updates []PriceUpdate

	for _, r := range records {
		price, hasPrice := recordPrice(r)

		id, ok := r.String(marketIDKeys...)
		if !ok && hasPrice {
			id, ok = r.String("id")
		}
		if !ok || !hasPrice {
			continue
		}

		u := PriceUpdate{MarketID: id, Price: price}
		if idx, seen := byID[id]; seen {
			updates[idx] = u
			continue
		}
		byID[id] = len(updates)
		updates = append(updates, u)
	}

	return updates
}

// recordPrice picks the trade price, else the bid/ask midpoint.
func recordPrice(r domain.RawListing) (float64, bool) {
	if p, ok := r.Number(priceKeys...); ok {
		if v, ok := unitProbability(p); ok {
			return v, true
		}
	}
	bid, okBid := r.Number(bidKeys...)
	ask, okAsk := r.Number(askKeys...)
	if okBid && okAsk {
		return unitProbability((bid + ask) / 2)
	}
	return 0, false
}

func unitProbability(v float64) (float64, bool) {
	if v < 0 || v > 1 {
		return 0, false
	}
	return math.Round(v*1e6) / 1e6, true
}

func collectRecords(v any, depth int, out *[]domain.RawListing) {
	if depth > 6 {
		return
	}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectRecords(item, depth+1, out)
		}
	case map[string]any:
		*out = append(*out, domain.RawListing(t))
		for _, nested := range t {
			collectRecords(nested, depth+1, out)
		}
	}
}
