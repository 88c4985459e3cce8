package client

import (
	"errors"
	"fmt"
)

// ErrNoChanges is returned by Update when the change set is empty. It is a
// distinct "nothing to do" outcome, not a failure: no request was issued and
// callers should tell the user there was nothing to submit.
var ErrNoChanges = errors.New("no changes to submit")

// APIError is a non-2xx response from the API. Status carries the HTTP
// status code; Message carries the server's error message when the body
// had one. Transport-level failures (no response obtained) are returned
// as plain wrapped errors without an APIError.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.Status)
}

// ErrNotFound reports that a requested entity does not exist. 404s are
// terminal: they are never retried and list views render them as an empty
// or error state rather than a transient fault.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: not found", e.Resource)
	}
	return fmt.Sprintf("%s %s: not found", e.Resource, e.ID)
}

// IsNotFound reports whether err is an ErrNotFound or a 404 APIError.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	if errors.As(err, &nf) {
		return true
	}
	var api *APIError
	return errors.As(err, &api) && api.Status == 404
}

// StatusOf returns the HTTP status carried by err, or 0 for transport-level
// failures that never obtained a response.
func StatusOf(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		return api.Status
	}
	var nf ErrNotFound
	if errors.As(err, &nf) {
		return 404
	}
	return 0
}
