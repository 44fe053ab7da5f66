// Package search is a client for an Elasticsearch-compatible _search
// endpoint. It implements linkage.SearchClient.
package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/incident.report/internal/errors"
	"github.com/banshee-data/incident.report/internal/httputil"
	"github.com/banshee-data/incident.report/internal/linkage"
)

type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c httputil.HTTPClient) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// NewClient creates a client for the cluster at baseURL, e.g.
// "http://localhost:9200".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf(errors.KindValidation, "invalid search url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httputil.NewStandardClient(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  *float64       `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search POSTs query to {index}/_search with the given size and returns the
// hits in ranked order. Fields already present in query are kept; size is
// always overridden.
func (c *Client) Search(ctx context.Context, index string, query map[string]any, size int) ([]linkage.Hit, error) {
	if index == "" {
		return nil, errors.New(errors.KindValidation, "search index is empty")
	}
	body := make(map[string]any, len(query)+1)
	for k, v := range query {
		body[k] = v
	}
	body["size"] = size

	var resp searchResponse
	endpoint := c.baseURL + "/" + url.PathEscape(index) + "/_search"
	if err := httputil.DoJSON(ctx, c.http, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}

	hits := make([]linkage.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		if h.ID == "" {
			continue
		}
		hit := linkage.Hit{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		if hit.Source == nil {
			hit.Source = map[string]any{}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
