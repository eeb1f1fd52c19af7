package enrich

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lensview/insight/pkg/websearch"
)

// searchCache deduplicates web searches within one pipeline run. It is
// created per run and discarded with it; results are never shared across
// requests. Concurrent identical queries share a single in-flight call.
type searchCache struct {
	client websearch.Client
	group  singleflight.Group

	mu      sync.Mutex
	results map[string]*websearch.SearchResponse
}

func newSearchCache(client websearch.Client) *searchCache {
	return &searchCache{
		client:  client,
		results: make(map[string]*websearch.SearchResponse),
	}
}

// normalizeQuery collapses case and whitespace so trivially equal queries
// share one cache entry.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Search returns the cached response for an equivalent query, or performs
// the search and caches it. Errors are not cached; a later identical query
// retries.
func (c *searchCache) Search(ctx context.Context, query string) (*websearch.SearchResponse, error) {
	key := normalizeQuery(query)

	c.mu.Lock()
	if cached, ok := c.results[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := c.client.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.results[key] = resp
		c.mu.Unlock()
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*websearch.SearchResponse), nil
}
