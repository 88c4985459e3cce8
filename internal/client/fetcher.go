package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Fetcher wraps keyed, cached requests to paginated list endpoints.
//
// Responses are cached by the full PageRequest tuple and considered fresh
// until the key changes or the entry is invalidated — there is no
// revalidation on focus or reconnect; list views favor stability over
// staleness-correction. Identical concurrent requests for one key are
// deduplicated into a single in-flight HTTP call whose result settles all
// waiters.
type Fetcher struct {
	transport *Transport

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*PageResponse
}

// NewFetcher creates a Fetcher over the given transport.
func NewFetcher(transport *Transport) *Fetcher {
	return &Fetcher{
		transport: transport,
		cache:     make(map[string]*PageResponse),
	}
}

// Fetch returns the page identified by req, from cache when present.
// The returned response is shared across callers and must be treated as
// read-only.
func (f *Fetcher) Fetch(ctx context.Context, req PageRequest) (*PageResponse, error) {
	if req.Resource == "" {
		return nil, fmt.Errorf("page request missing resource")
	}
	if req.Page < 1 {
		return nil, fmt.Errorf("page number must be >= 1, got %d", req.Page)
	}
	if req.PageSize < 1 {
		return nil, fmt.Errorf("page size must be > 0, got %d", req.PageSize)
	}

	key := req.Key()

	f.mu.RLock()
	cached, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		log.Debug().Str("key", key).Msg("page cache hit")
		return cached, nil
	}

	// Collapse concurrent misses for the same key into one HTTP call;
	// last settle wins for all waiters
	v, err, _ := f.group.Do(key, func() (any, error) {
		resp, err := f.fetchPage(ctx, req)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.cache[key] = resp
		f.mu.Unlock()
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PageResponse), nil
}

// Invalidate drops the cached entry for one request, forcing the next
// Fetch to hit the network.
func (f *Fetcher) Invalidate(req PageRequest) {
	f.mu.Lock()
	delete(f.cache, req.Key())
	f.mu.Unlock()
}

// InvalidateResource drops every cached page of one resource. Mutation
// paths call this so the next list read reflects the write.
func (f *Fetcher) InvalidateResource(resource string) {
	prefix := resource + "|"
	f.mu.Lock()
	for key := range f.cache {
		if strings.HasPrefix(key, prefix) {
			delete(f.cache, key)
		}
	}
	f.mu.Unlock()
}

// Reset drops the entire cache.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.cache = make(map[string]*PageResponse)
	f.mu.Unlock()
}

// fetchPage performs the HTTP GET for one page and decodes the list
// envelope.
func (f *Fetcher) fetchPage(ctx context.Context, req PageRequest) (*PageResponse, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(req.Page))
	params.Set("limit", strconv.Itoa(req.PageSize))
	for _, k := range sortedFilterKeys(req.Filters) {
		params.Set(k, req.Filters[k])
	}

	reqURL := fmt.Sprintf("%s/v1/%s?%s", f.transport.BaseURL(), req.Resource, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.transport.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read list response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound{Resource: req.Resource}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFromBody(resp.StatusCode, body)
	}

	return decodeListEnvelope(body, req.Resource)
}

// apiErrorFromBody builds an APIError, pulling the server's message out of
// the body when it has one.
func apiErrorFromBody(status int, body []byte) *APIError {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(body, &errResp) == nil {
		msg = errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
	}
	return &APIError{Status: status, Message: msg}
}
