package feed

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/marketpulse/corelens/internal/types"
)

// defaultReconnectBackoffSeq is spec §6's documented sequence.
var defaultReconnectBackoffSeq = []int{1, 2, 5, 15, 30}

// depthTradesMessage is the wire envelope the subscriber decodes:
// a tagged union of a depth snapshot or a trade print.
type depthTradesMessage struct {
	Type   string            `json:"type"`
	Bids   []types.OrderLevel `json:"bids,omitempty"`
	Asks   []types.OrderLevel `json:"asks,omitempty"`
	Price  float64           `json:"price,omitempty"`
	Volume float64           `json:"volume,omitempty"`
	Side   string            `json:"side,omitempty"`
	TS     int64             `json:"ts,omitempty"`
}

// Subscriber maintains a live order-book snapshot and a bounded trades
// buffer over a single gorilla/websocket connection, reconnecting with
// the configured backoff sequence on any read/dial failure.
type Subscriber struct {
	url            string
	tradesBuffer   int
	backoffSeqSec  []int

	mu     sync.Mutex
	book   types.OrderBook
	haveBook bool
	trades types.Trades
}

// NewSubscriber builds a Subscriber for the given websocket URL.
// tradesBuffer bounds the retained trade count (spec §6 ws_trades_buffer).
// A nil/empty backoffSeqSec falls back to the spec default.
func NewSubscriber(wsURL string, tradesBuffer int, backoffSeqSec []int) *Subscriber {
	if len(backoffSeqSec) == 0 {
		backoffSeqSec = defaultReconnectBackoffSeq
	}
	if tradesBuffer <= 0 {
		tradesBuffer = 500
	}
	return &Subscriber{url: wsURL, tradesBuffer: tradesBuffer, backoffSeqSec: backoffSeqSec}
}

// Run dials and reads until ctx is cancelled, reconnecting on failure
// per the configured backoff sequence. Intended to run as one of the
// supervisor's long-running tasks (spec §9); never blocks the ticker.
func (s *Subscriber) Run(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := s.dial(ctx)
		if err != nil {
			s.sleepBackoff(ctx, attempt)
			attempt++
			log.Warn().Err(err).Int("attempt", attempt).Msg("feed subscriber reconnect")
			continue
		}
		attempt = 0
		s.readLoop(ctx, conn)
		conn.Close()
		s.sleepBackoff(ctx, attempt)
		attempt++
	}
}

func (s *Subscriber) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, err
	}
	var dialer websocket.Dialer
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Error().Err(err).Msg("feed subscriber read error; reconnecting")
			return
		}
		s.handle(data)
	}
}

func (s *Subscriber) handle(data []byte) {
	var msg depthTradesMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Msg("feed subscriber malformed message")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Type {
	case "depth":
		s.book = types.NewOrderBook(msg.Bids, msg.Asks, time.Now())
		s.haveBook = true
	case "trade":
		side := types.SideBuy
		if msg.Side == string(types.SideSell) {
			side = types.SideSell
		}
		s.trades = append(s.trades, types.Trade{Price: msg.Price, Volume: msg.Volume, Side: side, Timestamp: msg.TS})
		if len(s.trades) > s.tradesBuffer {
			s.trades = s.trades[len(s.trades)-s.tradesBuffer:]
		}
	}
}

func (s *Subscriber) sleepBackoff(ctx context.Context, attempt int) {
	idx := attempt
	if idx >= len(s.backoffSeqSec) {
		idx = len(s.backoffSeqSec) - 1
	}
	d := time.Duration(s.backoffSeqSec[idx]) * time.Second
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// GetOrderBookSnapshot implements DepthSource.
func (s *Subscriber) GetOrderBookSnapshot() (types.OrderBook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book, s.haveBook
}

// GetTradesSnapshot implements TradesSource.
func (s *Subscriber) GetTradesSnapshot() types.Trades {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(types.Trades, len(s.trades))
	copy(out, s.trades)
	return out
}
