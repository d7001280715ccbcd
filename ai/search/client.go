package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// ClientConfig configures the search index client.
type ClientConfig struct {
	// BaseURL is the root of the index JSON API.
	BaseURL string
	// Timeout bounds each search request.
	Timeout time.Duration
}

// Client queries the search index over its JSON API.
type Client struct {
	rest *resty.Client
}

// NewClient creates a search index client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("search: base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rest := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{rest: rest}, nil
}

type searchResponse struct {
	RecordCount int        `json:"record_count"`
	Data        []Document `json:"data"`
}

// Search runs a Lucene query against the JSON API.
func (c *Client) Search(ctx context.Context, query string, maxDocs int) ([]Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	start := time.Now()
	var out searchResponse
	// Decode as JSON regardless of the Content-Type the index reports,
	// so a misconfigured index cannot read as zero results.
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("num", strconv.Itoa(maxDocs)).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/json")
	if err != nil {
		return nil, errors.Wrapf(err, "search request failed: query=%s", query)
	}
	if resp.IsError() {
		return nil, errors.Errorf("search request failed: query=%s status=%d", query, resp.StatusCode())
	}

	slog.Debug("search: query completed", "query", query,
		"resultCount", len(out.Data), "elapsed", time.Since(start))
	return out.Data, nil
}

// FetchByIDs fetches full documents by doc id, requesting the given
// fields. Ids not present in the index are silently absent from the
// result.
func (c *Client) FetchByIDs(ctx context.Context, docIDs []string, fields []string) ([]Document, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}

	clauses := make([]string, len(docIDs))
	for i, id := range docIDs {
		clauses[i] = fmt.Sprintf("doc_id:%q", id)
	}

	start := time.Now()
	var out searchResponse
	req := c.rest.R().
		SetContext(ctx).
		SetQueryParam("q", strings.Join(clauses, " OR ")).
		SetQueryParam("num", strconv.Itoa(len(docIDs))).
		SetResult(&out).
		ForceContentType("application/json")
	if len(fields) > 0 {
		req.SetQueryParam("fields", strings.Join(fields, ","))
	}
	resp, err := req.Get("/json")
	if err != nil {
		return nil, errors.Wrapf(err, "fetch request failed: docIds=%v", docIDs)
	}
	if resp.IsError() {
		return nil, errors.Errorf("fetch request failed: docIds=%v status=%d", docIDs, resp.StatusCode())
	}

	slog.Debug("search: fetch completed", "docIdCount", len(docIDs),
		"fetchedCount", len(out.Data), "elapsed", time.Since(start))
	return out.Data, nil
}

var _ Searcher = (*Client)(nil)
