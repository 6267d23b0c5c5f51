package httpretry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incosense/incosense/internal/pkg/logger"
)

func quietClient(opts ...Option) *Client {
	base := []Option{
		WithBackoff(time.Millisecond, 2*time.Millisecond),
		WithLogger(logger.New(io.Discard, logger.ERROR)),
	}
	return New(nil, append(base, opts...)...)
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader([]byte(`{"a":1}`)))
	require.NoError(t, err)

	resp, err := quietClient().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []string{`{"a":1}`, `{"a":1}`, `{"a":1}`}, bodies, "body is replayed on retry")
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := quietClient().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ReturnsFinalRetryableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := quietClient(WithMaxRetries(1)).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream down", string(body))
}

type errDoer struct{ calls int }

func (d *errDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	return nil, errors.New("connection refused")
}

func TestDo_NetworkErrors(t *testing.T) {
	d := &errDoer{}
	c := New(d, WithBackoff(time.Millisecond, time.Millisecond), WithLogger(logger.New(io.Discard, logger.ERROR)))

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	_, err := c.Do(req)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection refused"))
	assert.Equal(t, 3, d.calls)
}

func TestDo_CancelledContext(t *testing.T) {
	d := &errDoer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", nil)
	_, err := New(d).Do(req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, d.calls)
}
