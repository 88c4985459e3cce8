package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/savorhq/savor-go/internal/changeset"
)

// ResourceClient provides CRUD operations for one collection endpoint
// (foods, restaurants or users). List reads go through the shared Fetcher;
// mutations invalidate the resource's cached pages on success.
type ResourceClient struct {
	transport *Transport
	fetcher   *Fetcher
	resource  string
}

// API bundles the resource clients for the platform's collections over one
// transport and one shared page cache.
type API struct {
	Fetcher     *Fetcher
	Foods       *ResourceClient
	Restaurants *ResourceClient
	Users       *ResourceClient

	transport *Transport
}

// New creates the API client set for the given base URL and session.
func New(baseURL string, session SessionContext) *API {
	transport := NewTransport(baseURL, session)
	fetcher := NewFetcher(transport)
	return &API{
		Fetcher:     fetcher,
		transport:   transport,
		Foods:       NewResourceClient(transport, fetcher, "foods"),
		Restaurants: NewResourceClient(transport, fetcher, "restaurants"),
		Users:       NewResourceClient(transport, fetcher, "users"),
	}
}

// NewResourceClient creates a client for a single resource collection.
func NewResourceClient(transport *Transport, fetcher *Fetcher, resource string) *ResourceClient {
	return &ResourceClient{
		transport: transport,
		fetcher:   fetcher,
		resource:  resource,
	}
}

// Resource returns the collection name this client targets.
func (c *ResourceClient) Resource() string {
	return c.resource
}

// List fetches one page of the collection through the cached Fetcher.
func (c *ResourceClient) List(ctx context.Context, page, pageSize int, filters map[string]string) (*PageResponse, error) {
	return c.fetcher.Fetch(ctx, PageRequest{
		Resource: c.resource,
		Page:     page,
		PageSize: pageSize,
		Filters:  filters,
	})
}

// Get retrieves a single entity by id. Returns ErrNotFound if it does not
// exist.
func (c *ResourceClient) Get(ctx context.Context, id string) (map[string]any, error) {
	reqURL := fmt.Sprintf("%s/v1/%s/%s", c.transport.BaseURL(), c.resource, id)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}
	return c.doItem(ctx, req, id, http.StatusOK)
}

// Create creates a new entity and invalidates the resource's cached pages.
func (c *ResourceClient) Create(ctx context.Context, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/%s", c.transport.BaseURL(), c.resource)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	item, err := c.doItem(ctx, req, "", http.StatusCreated, http.StatusOK)
	if err != nil {
		return nil, err
	}
	c.fetcher.InvalidateResource(c.resource)
	return item, nil
}

// Update sends a partial PUT carrying only the changed fields. An empty
// change set short-circuits to ErrNoChanges without touching the network —
// callers report "no changes" to the user instead of issuing a no-op write.
func (c *ResourceClient) Update(ctx context.Context, id string, changes changeset.ChangeSet) (map[string]any, error) {
	if changes.IsEmpty() {
		log.Debug().Str("resource", c.resource).Str("id", id).Msg("empty change set, skipping update")
		return nil, ErrNoChanges
	}

	body, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change set: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/%s/%s", c.transport.BaseURL(), c.resource, id)
	req, err := http.NewRequestWithContext(ctx, "PUT", reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	item, err := c.doItem(ctx, req, id, http.StatusOK)
	if err != nil {
		return nil, err
	}
	c.fetcher.InvalidateResource(c.resource)
	return item, nil
}

// Delete removes an entity and invalidates the resource's cached pages.
func (c *ResourceClient) Delete(ctx context.Context, id string) error {
	reqURL := fmt.Sprintf("%s/v1/%s/%s", c.transport.BaseURL(), c.resource, id)
	req, err := http.NewRequestWithContext(ctx, "DELETE", reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		c.fetcher.InvalidateResource(c.resource)
		return nil
	case http.StatusNotFound:
		return ErrNotFound{Resource: c.resource, ID: id}
	default:
		body, _ := io.ReadAll(resp.Body)
		return apiErrorFromBody(resp.StatusCode, body)
	}
}

// doItem executes a request whose success body is an item envelope.
func (c *ResourceClient) doItem(ctx context.Context, req *http.Request, id string, okStatuses ...int) (map[string]any, error) {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound{Resource: c.resource, ID: id}
	}
	ok := false
	for _, s := range okStatuses {
		if resp.StatusCode == s {
			ok = true
			break
		}
	}
	if !ok {
		return nil, apiErrorFromBody(resp.StatusCode, body)
	}

	var env itemEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed item response: %w", err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("item response missing data object")
	}
	return env.Data, nil
}
