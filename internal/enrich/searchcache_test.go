package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lensview/insight/pkg/websearch"
)

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	resp    *websearch.SearchResponse
	err     error
}

func (f *fakeSearch) Search(_ context.Context, query string) (*websearch.SearchResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &websearch.SearchResponse{}, nil
}

func (f *fakeSearch) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func TestSearchCache_DeduplicatesEquivalentQueries(t *testing.T) {
	client := &fakeSearch{resp: &websearch.SearchResponse{Answer: "yes"}}
	cache := newSearchCache(client)

	first, err := cache.Search(context.Background(), "  Is RAIL the Future? ")
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Search(context.Background(), "is rail the future?")
	if err != nil {
		t.Fatal(err)
	}

	if client.calls() != 1 {
		t.Errorf("equivalent queries must share one call, got %d", client.calls())
	}
	if first != second {
		t.Error("cached response should be returned verbatim")
	}
}

func TestSearchCache_DistinctQueriesMiss(t *testing.T) {
	client := &fakeSearch{}
	cache := newSearchCache(client)

	cache.Search(context.Background(), "query one")
	cache.Search(context.Background(), "query two")

	if client.calls() != 2 {
		t.Errorf("got %d calls", client.calls())
	}
}

func TestSearchCache_ErrorsAreNotCached(t *testing.T) {
	client := &fakeSearch{err: errors.New("upstream down")}
	cache := newSearchCache(client)

	if _, err := cache.Search(context.Background(), "flaky"); err == nil {
		t.Fatal("expected error")
	}

	client.err = nil
	if _, err := cache.Search(context.Background(), "flaky"); err != nil {
		t.Fatalf("retry after failure should hit the client again: %v", err)
	}
	if client.calls() != 2 {
		t.Errorf("got %d calls", client.calls())
	}
}
