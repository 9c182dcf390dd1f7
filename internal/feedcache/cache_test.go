package feedcache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	redismock "github.com/go-redis/redismock/v9"

	"github.com/marketpulse/corelens/internal/types"
)

func TestCacheGetHitDecodesCandles(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, time.Minute)

	candles := types.OHLCV{{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, Timestamp: 1000}}
	raw, err := json.Marshal(candles)
	require.NoError(t, err)

	key := Key("BTC-PERP", "1h", 50)
	mock.ExpectGet(key).SetVal(string(raw))

	out, ok := c.GetOHLCV(context.Background(), key)
	require.True(t, ok)
	require.Equal(t, candles, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheGetMissReturnsFalse(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, time.Minute)

	key := Key("BTC-PERP", "1h", 50)
	mock.ExpectGet(key).SetErr(redis.Nil)

	_, ok := c.GetOHLCV(context.Background(), key)
	require.False(t, ok)
}

func TestCacheSetWritesWithTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client, 30*time.Second)

	candles := types.OHLCV{{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, Timestamp: 1000}}
	raw, err := json.Marshal(candles)
	require.NoError(t, err)

	key := Key("BTC-PERP", "1h", 50)
	mock.ExpectSet(key, raw, 30*time.Second).SetVal("OK")

	require.NoError(t, c.SetOHLCV(context.Background(), key, candles))
	require.NoError(t, mock.ExpectationsWereMet())
}
