package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/marketpulse/corelens/internal/types"
)

// RESTConfig tunes the REST OHLCV client's resilience wrapping.
type RESTConfig struct {
	BaseURL          string
	RateLimitPerSec  float64
	RateLimitBurst   int
	BreakerName      string
}

// candleDTO is the wire shape returned by the venue's candle endpoint.
type candleDTO struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}

// RESTClient fetches OHLCV/HTF candles over HTTP, rate-limited and
// circuit-broken, grounded on the teacher's infra/breakers +
// internal/net/ratelimit pairing.
type RESTClient struct {
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

// NewRESTClient builds a REST client. A zero RateLimitPerSec disables
// rate limiting (useful for tests against an httptest server).
func NewRESTClient(cfg RESTConfig) *RESTClient {
	limit := rate.Inf
	burst := cfg.RateLimitBurst
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
		if burst <= 0 {
			burst = 1
		}
	}

	st := gobreaker.Settings{Name: cfg.BreakerName}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}

	return &RESTClient{
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		baseURL: cfg.BaseURL,
	}
}

// FetchOHLCV implements OHLCVSource.
func (c *RESTClient) FetchOHLCV(ctx context.Context, timeframe string, limit int) (types.OHLCV, time.Time, error) {
	candles, err := c.fetchCandles(ctx, timeframe, limit)
	if err != nil {
		return nil, time.Time{}, err
	}
	return candles, time.Now(), nil
}

// FetchHTFCandles implements OHLCVSource's higher-timeframe leg.
func (c *RESTClient) FetchHTFCandles(ctx context.Context, timeframe string, limit int) (types.OHLCV, error) {
	return c.fetchCandles(ctx, timeframe, limit)
}

func (c *RESTClient) fetchCandles(ctx context.Context, timeframe string, limit int) (types.OHLCV, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/candles?timeframe=%s&limit=%d", c.baseURL, timeframe, limit)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("feed: unexpected status %d", resp.StatusCode)
		}
		var dtos []candleDTO
		if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
			return nil, err
		}
		return dtos, nil
	})
	if err != nil {
		return nil, err
	}

	dtos := result.([]candleDTO)
	out := make(types.OHLCV, len(dtos))
	for i, d := range dtos {
		out[i] = types.Candle{Open: d.Open, High: d.High, Low: d.Low, Close: d.Close, Volume: d.Volume, Timestamp: d.Timestamp}
	}
	return out, nil
}
