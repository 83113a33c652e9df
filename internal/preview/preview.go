// Package preview keeps the content of images that were selected locally but
// not uploaded yet. Each preview is addressed by a blob: handle and must be
// released once the image leaves the draft.
package preview

import (
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

var (
	// ErrUnknownHandle is returned for handles that were never created or
	// have already been released.
	ErrUnknownHandle = errors.New("unknown preview handle")
	// ErrExpired is returned when the preview outlived the store's max age.
	ErrExpired = errors.New("preview expired")
)

type entry struct {
	owner     string
	file      catalog.File
	createdAt time.Time
}

// Store is an in-memory preview registry. It is safe for concurrent use.
type Store struct {
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a Store. A zero maxAge keeps previews until released.
func New(maxAge time.Duration) *Store {
	return &Store{
		maxAge:  maxAge,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Create registers file content on behalf of owner and returns its handle.
func (s *Store) Create(owner string, f catalog.File) (string, error) {
	if len(f.Data) == 0 {
		return "", errors.Errorf("preview %q: empty content", f.Name)
	}
	if f.ContentType == "" {
		f.ContentType = mimetype.Detect(f.Data).String()
	}

	handle := catalog.PreviewScheme + uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[handle] = entry{
		owner:     owner,
		file:      f,
		createdAt: s.now(),
	}
	return handle, nil
}

// Open resolves a handle back to its content.
func (s *Store) Open(handle string) (catalog.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[handle]
	if !ok {
		return catalog.File{}, ErrUnknownHandle
	}
	if s.maxAge > 0 && s.now().Sub(e.createdAt) > s.maxAge {
		delete(s.entries, handle)
		return catalog.File{}, ErrExpired
	}
	return e.file, nil
}

// Release frees a single preview. Releasing an unknown handle is a no-op.
func (s *Store) Release(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, handle)
}

// ReleaseOwner frees every preview created on behalf of owner and returns
// how many were released.
func (s *Store) ReleaseOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for h, e := range s.entries {
		if e.owner == owner {
			delete(s.entries, h)
			n++
		}
	}
	return n
}

// Len returns the number of live previews.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
