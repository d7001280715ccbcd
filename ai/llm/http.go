package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPClient performs backend HTTP requests with retry logic.
// Uses plain net/http instead of resty so that streamed response bodies
// are closed correctly across retries (resty + SetDoNotParseResponse
// leaks file descriptors).
type HTTPClient struct {
	client          *http.Client
	streamClient    *http.Client
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewHTTPClient creates an HTTP client for a backend. Each backend gets
// its own transport to avoid sharing connection state across providers.
func NewHTTPClient(cfg Config) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &HTTPClient{
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		// No timeout for streaming; long generations are cancelled via
		// context instead.
		streamClient:    &http.Client{Transport: transport},
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
	}
}

// Post sends a JSON POST and returns the response body for the caller
// to decode or stream. Retries network errors, 429 and 5xx for
// non-streaming requests; streaming requests are never retried once
// the body starts flowing.
func (c *HTTPClient) Post(ctx context.Context, provider, url string, body []byte, headers map[string]string, streaming bool) (io.ReadCloser, error) {
	client := c.client
	retries := c.maxRetries
	if streaming {
		client = c.streamClient
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			slog.Warn("LLM: request failed, retrying", "provider", provider, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, nil
		}

		errBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		apiErr := NewAPIError(provider, resp.StatusCode, string(errBody))
		if !apiErr.Retryable {
			return nil, apiErr
		}
		lastErr = apiErr
	}

	return nil, lastErr
}

// Get performs a GET and reports whether the response status was 2xx.
// Used by availability probes; the body is returned for probes that
// need to inspect it.
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body, nil
}

func (c *HTTPClient) backoff(attempt int) time.Duration {
	d := c.initialInterval
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if d > c.maxInterval {
		d = c.maxInterval
	}
	return d
}
