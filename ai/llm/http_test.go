package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(retries int) Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = retries
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	return cfg
}

func TestHTTPClientPost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success returns body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		c := NewHTTPClient(fastRetryConfig(0))
		body, err := c.Post(ctx, "test", srv.URL, []byte(`{}`), map[string]string{"Authorization": "Bearer k"}, false)
		require.NoError(t, err)
		defer func() { _ = body.Close() }()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(data))
	})

	t.Run("retries 429 then succeeds", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c := NewHTTPClient(fastRetryConfig(2))
		body, err := c.Post(ctx, "test", srv.URL, nil, nil, false)
		require.NoError(t, err)
		_ = body.Close()
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry 400", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer srv.Close()

		c := NewHTTPClient(fastRetryConfig(3))
		_, err := c.Post(ctx, "test", srv.URL, nil, nil, false)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.False(t, apiErr.Retryable)
	})

	t.Run("gives up after retries exhausted", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewHTTPClient(fastRetryConfig(2))
		_, err := c.Post(ctx, "test", srv.URL, nil, nil, false)
		require.Error(t, err)
		assert.Equal(t, int32(3), calls.Load())

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.True(t, apiErr.Retryable)
	})
}

func TestHTTPClientGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	c := NewHTTPClient(DefaultConfig())
	status, body, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, status)
	assert.Equal(t, "short and stout", string(body))
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	c := &HTTPClient{initialInterval: 100 * time.Millisecond, maxInterval: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, c.backoff(1))
	assert.Equal(t, 200*time.Millisecond, c.backoff(2))
	assert.Equal(t, 300*time.Millisecond, c.backoff(3))
	assert.Equal(t, 300*time.Millisecond, c.backoff(4))
}
