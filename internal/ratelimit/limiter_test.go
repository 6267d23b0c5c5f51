package ratelimit

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incosense/incosense/internal/pkg/logger"
)

func setupLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, limit, window), mr
}

func TestAllow_FixedWindow(t *testing.T) {
	l, mr := setupLimiter(t, 2, time.Minute)
	ctx := context.Background()

	res, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	res, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)

	// Other clients have their own window.
	res, err = l.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"203.0.113.7"))

	mr.FastForward(time.Minute)
	res, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window expired")
}

func TestMiddleware(t *testing.T) {
	l, _ := setupLimiter(t, 1, 30*time.Second)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
		req.RemoteAddr = "203.0.113.7:52100"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := send()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "30", second.Header().Get("Retry-After"))
}

func TestMiddleware_FailOpen(t *testing.T) {
	l, mr := setupLimiter(t, 1, time.Minute)
	var buf bytes.Buffer
	l.WithLogger(logger.New(&buf, logger.INFO))
	mr.Close()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subscriptions", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, buf.String(), "rate limiter unavailable")
}

func TestNewFromURL_Invalid(t *testing.T) {
	_, _, err := NewFromURL(context.Background(), "::not a url", 1, time.Minute)
	assert.Error(t, err)
}

func TestMiddleware_IgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	l, _ := setupLimiter(t, 2, time.Minute)
	h := CapturePeer(middleware.RealIP(l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))))

	created := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
		req.RemoteAddr = "203.0.113.7:52100"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
	assert.Equal(t, 2, created)
}

func TestClientKey(t *testing.T) {
	proxies, err := ParseCIDRs([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct peer", "203.0.113.7:1234", "", "203.0.113.7"},
		{"untrusted peer ignores header", "203.0.113.7:1234", "198.51.100.9", "203.0.113.7"},
		{"trusted proxy uses last hop", "10.1.2.3:1234", "198.51.100.9", "198.51.100.9"},
		{"spoofed leftmost entry skipped", "10.1.2.3:1234", "1.1.1.1, 198.51.100.9", "198.51.100.9"},
		{"chain of trusted proxies", "192.0.2.10:80", "198.51.100.9, 10.9.9.9", "198.51.100.9"},
		{"garbage hop stops the walk", "10.1.2.3:1234", "198.51.100.9, junk", "10.1.2.3"},
		{"trusted proxy without header", "10.1.2.3:1234", "", "10.1.2.3"},
	}
	l := New(nil, 1, time.Minute).WithTrustedProxies(proxies)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/subscriptions", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, l.clientKey(req))
		})
	}
}

func TestParseCIDRs_Invalid(t *testing.T) {
	_, err := ParseCIDRs([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = ParseCIDRs([]string{"not-an-ip"})
	assert.Error(t, err)
}
