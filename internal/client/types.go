package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PageRequest identifies one fetch unit of a paginated collection.
// Equality on (Resource, Page, PageSize, Filters) determines the cache
// and dedup key.
type PageRequest struct {
	Resource string
	Page     int
	PageSize int
	// Filters holds already-normalized query filters. An empty string value
	// means "no filter" — callers must not use absent-vs-empty distinctions,
	// so cache keys stay stable.
	Filters map[string]string
}

// Key returns the canonical cache/dedup key for the request. Filter keys
// are sorted and empty values dropped so equivalent requests collapse to
// the same entry.
func (r PageRequest) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%d", r.Resource, r.Page, r.PageSize)
	for _, k := range sortedFilterKeys(r.Filters) {
		fmt.Fprintf(&b, "|%s=%s", k, r.Filters[k])
	}
	return b.String()
}

// FilterKey returns the key of the filter set alone (resource, page size and
// filters, no page number). Two requests with the same FilterKey belong to
// the same accumulated list.
func (r PageRequest) FilterKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d", r.Resource, r.PageSize)
	for _, k := range sortedFilterKeys(r.Filters) {
		fmt.Fprintf(&b, "|%s=%s", k, r.Filters[k])
	}
	return b.String()
}

func sortedFilterKeys(filters map[string]string) []string {
	keys := make([]string, 0, len(filters))
	for k, v := range filters {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PaginationMeta is the server-authoritative pagination block of a list
// response. The client never recomputes totals from loaded items.
type PaginationMeta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
}

// PageResponse is one server-paginated slice of a collection.
type PageResponse struct {
	Items      []map[string]any
	Pagination PaginationMeta
}

// listEnvelope is the wire shape of list endpoints:
//
//	{"data": {"<resource>": [...], "pagination": {...}}}
type listEnvelope struct {
	Data map[string]json.RawMessage `json:"data"`
}

// itemEnvelope is the wire shape of detail and mutation endpoints:
//
//	{"data": {...}}
type itemEnvelope struct {
	Data map[string]any `json:"data"`
}

// decodeListEnvelope extracts the items array and pagination block for the
// given resource from a list response body.
func decodeListEnvelope(body []byte, resource string) (*PageResponse, error) {
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed list response: %w", err)
	}
	raw, ok := env.Data[resource]
	if !ok {
		return nil, fmt.Errorf("list response missing %q array", resource)
	}
	resp := &PageResponse{}
	if err := json.Unmarshal(raw, &resp.Items); err != nil {
		return nil, fmt.Errorf("malformed %q array: %w", resource, err)
	}
	if pag, ok := env.Data["pagination"]; ok {
		if err := json.Unmarshal(pag, &resp.Pagination); err != nil {
			return nil, fmt.Errorf("malformed pagination block: %w", err)
		}
	}
	return resp, nil
}

// As converts a generic item map into a concrete entity type via a JSON
// round trip. Convenience for views that want typed fields.
func As[T any](item map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(item)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Food is a menu item owned by a restaurant.
type Food struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Price        float64  `json:"price"`
	Category     string   `json:"category,omitempty"`
	Status       string   `json:"status,omitempty"`
	RestaurantID string   `json:"restaurant_id,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Restaurant is a listed venue.
type Restaurant struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address,omitempty"`
	Status   string   `json:"status,omitempty"`
	Category string   `json:"category,omitempty"`
	Cuisines []string `json:"cuisines,omitempty"`
	Rating   float64  `json:"rating,omitempty"`
}

// User is an account visible to admins.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}
