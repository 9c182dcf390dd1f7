package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marketpulse/corelens/internal/types"
)

func TestRESTClientFetchOHLCV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]candleDTO{
			{Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10, Timestamp: 1000},
			{Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12, Timestamp: 2000},
		})
	}))
	defer srv.Close()

	client := NewRESTClient(RESTConfig{BaseURL: srv.URL, BreakerName: "test"})
	candles, fetchedAt, err := client.FetchOHLCV(context.Background(), "1m", 2)

	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.False(t, fetchedAt.IsZero())
	require.Equal(t, 101.5, candles[1].Close)
}

func TestRESTClientPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRESTClient(RESTConfig{BaseURL: srv.URL, BreakerName: "test-errors"})
	_, _, err := client.FetchOHLCV(context.Background(), "1m", 2)

	require.Error(t, err)
}

func TestSubscriberHandleUpdatesBookAndTrades(t *testing.T) {
	s := NewSubscriber("ws://example.invalid", 3, nil)

	s.handle([]byte(`{"type":"depth","bids":[{"price":99,"size":5}],"asks":[{"price":101,"size":4}]}`))
	book, ok := s.GetOrderBookSnapshot()
	require.True(t, ok)
	require.Equal(t, 99.0, book.Bids[0].Price)

	for i := 0; i < 5; i++ {
		s.handle([]byte(`{"type":"trade","price":100,"volume":1,"side":"buy","ts":1}`))
	}
	trades := s.GetTradesSnapshot()
	require.Len(t, trades, 3)
	for _, tr := range trades {
		require.Equal(t, types.SideBuy, tr.Side)
	}
}
