package draft

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrDiscarded is returned by mutations on a discarded draft.
	ErrDiscarded = errors.New("draft discarded")
	// ErrVariantNotFound is returned when no variant has the given key.
	ErrVariantNotFound = errors.New("variant not found")
	// ErrImageGone is returned when a pending image left the draft before
	// it could be uploaded.
	ErrImageGone = errors.New("image no longer pending in draft")
)

// IndexError reports an out-of-range variant or image position.
type IndexError struct {
	What  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.What, e.Index, e.Len)
}

// FieldError reports a rejected setField call.
type FieldError struct {
	Path   string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("set %s=%q: %s", e.Path, e.Value, e.Reason)
}
