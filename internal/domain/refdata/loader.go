// Package refdata loads the category, brand and color option lists.
package refdata

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

// Loader fetches the three reference lists and caches them until
// Invalidate is called.
type Loader struct {
	src catalog.ReferenceReader
	lg  *zap.Logger

	mu     sync.Mutex
	cached *catalog.ReferenceData
}

// NewLoader creates a Loader reading from src.
func NewLoader(src catalog.ReferenceReader, lg *zap.Logger) *Loader {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Loader{src: src, lg: lg}
}

// Load returns the cached reference data, fetching it on first use. The
// three lists are fetched concurrently and fail as a unit: if any fetch
// fails, nothing is cached and the first error is returned.
func (l *Loader) Load(ctx context.Context) (catalog.ReferenceData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached.Clone(), nil
	}

	var data catalog.ReferenceData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		refs, err := l.src.ListCategories(gctx)
		if err != nil {
			return errors.Wrap(err, "load categories")
		}
		data.Categories = refs
		return nil
	})
	g.Go(func() error {
		refs, err := l.src.ListBrands(gctx)
		if err != nil {
			return errors.Wrap(err, "load brands")
		}
		data.Brands = refs
		return nil
	})
	g.Go(func() error {
		refs, err := l.src.ListColors(gctx)
		if err != nil {
			return errors.Wrap(err, "load colors")
		}
		data.Colors = refs
		return nil
	})
	if err := g.Wait(); err != nil {
		return catalog.ReferenceData{}, err
	}

	l.lg.Info("Reference data loaded",
		zap.Int("categories", len(data.Categories)),
		zap.Int("brands", len(data.Brands)),
		zap.Int("colors", len(data.Colors)),
	)
	l.cached = &data
	return data.Clone(), nil
}

// Invalidate drops the cache so the next Load fetches again.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
}
