// Package feed implements the client-side infinite-scroll machinery: an
// accumulator that concatenates successive pages into one growing list, and
// a trigger that fires load-more as the view approaches the end of content.
//
// Both are plain state machines with explicit transitions, independent of
// any rendering loop, so they can be unit-tested by driving transitions and
// asserting the resulting state.
package feed

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/savorhq/savor-go/internal/client"
)

// PageFetcher is the page source for an Accumulator.
type PageFetcher interface {
	Fetch(ctx context.Context, req client.PageRequest) (*client.PageResponse, error)
}

// Snapshot is a point-in-time copy of the accumulated list state, handed to
// views for rendering.
type Snapshot struct {
	Items         []map[string]any
	CurrentPage   int
	Pagination    client.PaginationMeta
	IsLoading     bool
	IsLoadingMore bool
	HasMore       bool
	Err           error
}

// Accumulator concatenates successive pages of one filtered collection into
// a growing list.
//
// Items are append-only under a fixed filter set; changing filters (or the
// page size) synchronously clears the list and restarts at page 1. A filter
// change while a fetch is in flight bumps an internal generation counter;
// the stale fetch compares its captured generation on completion and
// discards its result instead of appending under the wrong filters
// (compare-and-discard, no network cancellation).
//
// One Accumulator is owned by the view that created it. The methods are
// mutex-guarded only because fetch completions arrive on other goroutines.
type Accumulator struct {
	fetcher  PageFetcher
	resource string

	mu          sync.Mutex
	generation  uint64
	pageSize    int
	filters     map[string]string
	items       []map[string]any
	currentPage int
	pagination  client.PaginationMeta
	loading     bool
	loadingMore bool
	err         error
}

// NewAccumulator creates an accumulator for one resource collection.
func NewAccumulator(fetcher PageFetcher, resource string, pageSize int) *Accumulator {
	return &Accumulator{
		fetcher:  fetcher,
		resource: resource,
		pageSize: pageSize,
		filters:  map[string]string{},
	}
}

// Reset synchronously clears the accumulated list and installs a new filter
// set, so the view never renders stale items under new filters. Any fetch
// still in flight for the previous filters will be discarded when it
// settles. The new page 1 is not requested here; call Load next.
func (a *Accumulator) Reset(filters map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked(filters, a.pageSize)
}

// SetPageSize changes the page size. Accumulated pages assume a fixed size,
// so this is a full reset under the current filters.
func (a *Accumulator) SetPageSize(pageSize int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pageSize == a.pageSize {
		return
	}
	a.resetLocked(a.filters, pageSize)
}

func (a *Accumulator) resetLocked(filters map[string]string, pageSize int) {
	a.generation++
	a.pageSize = pageSize
	a.filters = copyFilters(filters)
	a.items = nil
	a.currentPage = 0
	a.pagination = client.PaginationMeta{}
	a.loading = false
	a.loadingMore = false
	a.err = nil
}

// Load fetches page 1 for the current filter set, replacing any previously
// accumulated items. Duplicate calls while a load is pending are no-ops.
func (a *Accumulator) Load(ctx context.Context) error {
	a.mu.Lock()
	if a.loading || a.loadingMore {
		a.mu.Unlock()
		return nil
	}
	a.loading = true
	gen := a.generation
	req := a.requestLocked(1)
	a.mu.Unlock()

	resp, err := a.fetcher.Fetch(ctx, req)

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		// Filters changed while in flight: discard
		log.Debug().Str("resource", a.resource).Msg("discarding stale page 1 response")
		return nil
	}
	a.loading = false
	if err != nil {
		a.err = err
		return err
	}
	a.err = nil
	a.items = append([]map[string]any(nil), resp.Items...)
	a.currentPage = settledPage(resp.Pagination, 1)
	a.pagination = resp.Pagination
	return nil
}

// LoadMore fetches the next page and appends its items in server order.
//
// It is a no-op when the list is exhausted or a fetch is already pending,
// so rapid duplicate calls issue exactly one request. On failure the
// current page does not advance, so the next call retries the same page;
// the error is recorded for the view and also returned.
func (a *Accumulator) LoadMore(ctx context.Context) error {
	a.mu.Lock()
	if !a.hasMoreLocked() || a.loading || a.loadingMore {
		a.mu.Unlock()
		return nil
	}
	a.loadingMore = true
	gen := a.generation
	page := a.currentPage + 1
	req := a.requestLocked(page)
	a.mu.Unlock()

	resp, err := a.fetcher.Fetch(ctx, req)

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		log.Debug().
			Str("resource", a.resource).
			Int("page", page).
			Msg("discarding stale load-more response")
		return nil
	}
	a.loadingMore = false
	if err != nil {
		a.err = err
		return err
	}
	a.err = nil
	a.items = append(a.items, resp.Items...)
	a.currentPage = settledPage(resp.Pagination, page)
	a.pagination = resp.Pagination
	return nil
}

// HasMore reports whether pages remain: currentPage < totalPages. A server
// report of zero total pages means an empty result set and no more pages.
func (a *Accumulator) HasMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasMoreLocked()
}

// Snapshot returns a copy of the current state for rendering. The items
// slice is shared; views must treat it as read-only.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Items:         a.items,
		CurrentPage:   a.currentPage,
		Pagination:    a.pagination,
		IsLoading:     a.loading,
		IsLoadingMore: a.loadingMore,
		HasMore:       a.hasMoreLocked(),
		Err:           a.err,
	}
}

func (a *Accumulator) hasMoreLocked() bool {
	if a.currentPage == 0 {
		// Nothing loaded yet; page 1 is Load's job, not LoadMore's
		return false
	}
	return a.currentPage < a.pagination.TotalPages
}

func (a *Accumulator) requestLocked(page int) client.PageRequest {
	return client.PageRequest{
		Resource: a.resource,
		Page:     page,
		PageSize: a.pageSize,
		Filters:  copyFilters(a.filters),
	}
}

// settledPage prefers the server-reported current page, falling back to the
// requested page when the server omits it.
func settledPage(meta client.PaginationMeta, requested int) int {
	if meta.CurrentPage > 0 {
		return meta.CurrentPage
	}
	return requested
}

func copyFilters(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
