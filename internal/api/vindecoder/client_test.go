package vindecoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/DecodeVinValues/1HGCM82633A004352"):
			w.Write([]byte(`{"Count":1,"Results":[{"VIN":"1HGCM82633A004352","Make":"HONDA","Model":"Accord","ModelYear":"2003","BodyClass":"Coupe","ErrorCode":"0"}]}`))
		case strings.Contains(r.URL.Path, "/DecodeVinValues/BROKEN00000"):
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(`{"Count":1,"Results":[{"Make":"","Model":"","ModelYear":"","ErrorCode":"11"}]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDecodeFound(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(Config{BaseURL: srv.URL, RatePerSec: 100}, nil, nil)

	got, err := c.Decode(context.Background(), "1HGCM82633A004352")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Honda", got.Make)
	assert.Equal(t, "Accord", got.Model)
	assert.Equal(t, 2003, got.Year)
	assert.Equal(t, "Coupe", got.BodyType)
}

func TestDecodeNotFoundReturnsNil(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(Config{BaseURL: srv.URL, RatePerSec: 100}, nil, nil)

	got, err := c.Decode(context.Background(), "ZZZZZZZZZZ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeUpstreamError(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(Config{BaseURL: srv.URL, RatePerSec: 100}, nil, nil)

	_, err := c.Decode(context.Background(), "BROKEN00000")
	assert.Error(t, err)
}

func TestDecodeUsesCache(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	cache := &memCache{data: map[string]string{}}
	c := NewClient(Config{BaseURL: srv.URL, RatePerSec: 100, CacheTTL: time.Hour}, cache, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Decode(ctx, "1HGCM82633A004352")
		require.NoError(t, err)
		assert.Equal(t, "Accord", got.Model)
	}
	for i := 0; i < 2; i++ {
		got, err := c.Decode(ctx, "ZZZZZZZZZZ")
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestDecodeRespectsContext(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)
	c := NewClient(Config{BaseURL: srv.URL, RatePerSec: 0.001}, nil, nil)
	ctx := context.Background()

	_, err := c.Decode(ctx, "1HGCM82633A004352")
	require.NoError(t, err)

	// 令牌已用完，下一次必须等待
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = c.Decode(short, "1HGCM82633A004352")
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Honda", displayName("HONDA"))
	assert.Equal(t, "Land Rover", displayName("LAND ROVER"))
	assert.Equal(t, "", displayName("  "))
}
