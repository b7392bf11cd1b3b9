package oracle

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
	"github.com/alanyoungcy/roundkeeper/internal/logging"
)

const testFeed = "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"

func TestToCents(t *testing.T) {
	tests := []struct {
		mantissa string
		expo     int32
		want     int64
	}{
		{"13196000000", -8, 13196},
		{"14500000000", -8, 14500},
		{"13196499999", -8, 13196},
		{"13196500000", -8, 13197},
		{"-13196500000", -8, -13197},
		{"5", 0, 500},
		{"123456", -5, 123},
		{"0", -8, 0},
	}
	for _, tt := range tests {
		got, err := ToCents(tt.mantissa, tt.expo)
		require.NoError(t, err, tt.mantissa)
		assert.Equal(t, tt.want, got, "%s e%d", tt.mantissa, tt.expo)
	}
}

func TestToCentsRejectsGarbage(t *testing.T) {
	_, err := ToCents("abc", -8)
	assert.Error(t, err)
	_, err = ToCents("1.5", -8)
	assert.Error(t, err)
	_, err = ToCents("1", 30)
	assert.Error(t, err)
	_, err = ToCents("13196000000", math.MaxInt32)
	assert.Error(t, err)
	_, err = ToCents("13196000000", -2_000_000_000)
	assert.Error(t, err)
	_, err = ToCents("13196000000", 31)
	assert.Error(t, err)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *HermesClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHermesClient(Config{BaseURL: srv.URL + "/", FeedID: testFeed, Timeout: 2 * time.Second}, logging.Discard())
}

func TestFetchPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, latestPricePath, r.URL.Path)
		assert.Equal(t, testFeed, r.URL.Query().Get("ids[]"))
		assert.Equal(t, "true", r.URL.Query().Get("parsed"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"binary":{"encoding":"hex","data":[]},"parsed":[{"id":"ef0d","price":{"price":"13196000000","conf":"1000","expo":-8,"publish_time":1700000000}}]}`))
	})

	cents, err := client.FetchPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(13196), cents)
}

func TestFetchPriceFailuresAreOracleUnavailable(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"malformed json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"parsed":`))
		},
		"empty parsed": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"parsed":[]}`))
		},
		"missing expo": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"parsed":[{"price":{"price":"13196000000"}}]}`))
		},
		"missing price": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"parsed":[{"price":{"expo":-8}}]}`))
		},
		"bad mantissa": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"parsed":[{"price":{"price":"n/a","expo":-8}}]}`))
		},
		"absurd expo": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"parsed":[{"price":{"price":"13196000000","expo":2147483647}}]}`))
		},
	}
	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, handler)
			_, err := client.FetchPrice(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
		})
	}
}

func TestFetchPriceDoesNotRetryOrCache(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"parsed":[{"price":{"price":"14000000000","expo":-8}}]}`))
	})

	_, err := client.FetchPrice(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	cents, err := client.FetchPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(14000), cents)

	_, err = client.FetchPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPriceNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewHermesClient(Config{BaseURL: srv.URL, FeedID: testFeed, Timeout: time.Second}, logging.Discard())

	_, err := client.FetchPrice(context.Background())
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
}
