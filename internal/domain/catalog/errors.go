package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ValidationError lists required fields that are missing or invalid. It is
// detected locally, before any request is sent.
type ValidationError struct {
	// Fields maps a field path (e.g. "name", "variants.0.colorId") to the
	// reason it was rejected.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = p + ": " + e.Fields[p]
	}
	return "invalid draft: " + strings.Join(parts, "; ")
}

// Add records a rejected field.
func (e *ValidationError) Add(path, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[path] = reason
}

// Empty reports whether no field was rejected.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// TransportError indicates the request never completed (network failure,
// unreachable server, aborted connection).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError indicates the backend answered with a non-success status.
type RejectedError struct {
	Op      string
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: rejected with status %d: %s", e.Op, e.Status, e.Message)
}

// ResourceError indicates local preview content could not be resolved for
// upload, e.g. the handle expired or was released.
type ResourceError struct {
	Handle string
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("preview %s: %v", e.Handle, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
