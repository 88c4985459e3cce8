package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// listServer serves the platform list envelope for foods, counting hits.
func listServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"data": {
				"foods": [{"id": "f-%s", "name": "item on page %s"}],
				"pagination": {"current_page": %s, "total_pages": 3, "total": 3, "per_page": 1}
			}
		}`, page, page, page)
	}))
}

func TestFetcher_CachesByRequestKey(t *testing.T) {
	var hits atomic.Int32
	server := listServer(t, &hits)
	defer server.Close()

	f := NewFetcher(NewTransport(server.URL, nil))
	req := PageRequest{Resource: "foods", Page: 1, PageSize: 1}

	first, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	second, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("cached fetch failed: %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("expected 1 HTTP call for repeated key, got %d", hits.Load())
	}
	if first != second {
		t.Error("cached fetch did not return the same response")
	}

	// A different page is a different key
	req.Page = 2
	if _, err := f.Fetch(context.Background(), req); err != nil {
		t.Fatalf("fetch page 2 failed: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 HTTP calls, got %d", hits.Load())
	}
}

func TestFetcher_FilterNormalization(t *testing.T) {
	// Empty filter values must not change the cache key
	a := PageRequest{Resource: "foods", Page: 1, PageSize: 10, Filters: map[string]string{"search": ""}}
	b := PageRequest{Resource: "foods", Page: 1, PageSize: 10}
	if a.Key() != b.Key() {
		t.Errorf("empty filter changed key: %q vs %q", a.Key(), b.Key())
	}

	c := PageRequest{Resource: "foods", Page: 1, PageSize: 10, Filters: map[string]string{"search": "pad", "status": "active"}}
	d := PageRequest{Resource: "foods", Page: 1, PageSize: 10, Filters: map[string]string{"status": "active", "search": "pad"}}
	if c.Key() != d.Key() {
		t.Errorf("filter map order changed key: %q vs %q", c.Key(), d.Key())
	}
	if a.Key() == c.Key() {
		t.Error("distinct filters produced the same key")
	}
}

func TestFetcher_DeduplicatesConcurrentRequests(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": {"foods": [], "pagination": {"current_page": 1, "total_pages": 0, "total": 0, "per_page": 10}}}`)
	}))
	defer server.Close()

	f := NewFetcher(NewTransport(server.URL, nil))
	req := PageRequest{Resource: "foods", Page: 1, PageSize: 10}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.Fetch(context.Background(), req)
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("waiter %d failed: %v", i, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 HTTP call for 5 concurrent fetches, got %d", hits.Load())
	}
}

func TestFetcher_InvalidateForcesRefetch(t *testing.T) {
	var hits atomic.Int32
	server := listServer(t, &hits)
	defer server.Close()

	f := NewFetcher(NewTransport(server.URL, nil))
	req := PageRequest{Resource: "foods", Page: 1, PageSize: 1}

	if _, err := f.Fetch(context.Background(), req); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	f.Invalidate(req)
	if _, err := f.Fetch(context.Background(), req); err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 HTTP calls after invalidate, got %d", hits.Load())
	}
}

func TestFetcher_InvalidateResource(t *testing.T) {
	var hits atomic.Int32
	server := listServer(t, &hits)
	defer server.Close()

	f := NewFetcher(NewTransport(server.URL, nil))
	page1 := PageRequest{Resource: "foods", Page: 1, PageSize: 1}
	page2 := PageRequest{Resource: "foods", Page: 2, PageSize: 1}

	f.Fetch(context.Background(), page1)
	f.Fetch(context.Background(), page2)
	f.InvalidateResource("foods")
	f.Fetch(context.Background(), page1)
	f.Fetch(context.Background(), page2)

	if hits.Load() != 4 {
		t.Errorf("expected 4 HTTP calls after resource invalidation, got %d", hits.Load())
	}
}

func TestFetcher_ValidatesRequest(t *testing.T) {
	f := NewFetcher(NewTransport("http://unused.invalid", nil))

	tests := []struct {
		name string
		req  PageRequest
	}{
		{"missing resource", PageRequest{Page: 1, PageSize: 10}},
		{"zero page", PageRequest{Resource: "foods", Page: 0, PageSize: 10}},
		{"zero page size", PageRequest{Resource: "foods", Page: 1, PageSize: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.Fetch(context.Background(), tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFetcher_ErrorResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/foods":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad filter"})
		}
	}))
	defer server.Close()

	f := NewFetcher(NewTransport(server.URL, nil))

	_, err := f.Fetch(context.Background(), PageRequest{Resource: "foods", Page: 1, PageSize: 10})
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}

	_, err = f.Fetch(context.Background(), PageRequest{Resource: "restaurants", Page: 1, PageSize: 10})
	var api *APIError
	if !errors.As(err, &api) || api.Status != http.StatusBadRequest || api.Message != "bad filter" {
		t.Errorf("expected 400 APIError with message, got %v", err)
	}

	// Failures are not cached
	if StatusOf(err) != http.StatusBadRequest {
		t.Errorf("StatusOf = %d, want 400", StatusOf(err))
	}
}
