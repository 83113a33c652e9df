// Package editor ties the catalog pieces into one operator session: the
// authoritative product list, the reference data and at most one draft.
package editor

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
	"github.com/xenking/catalog-editor/internal/domain/draft"
	"github.com/xenking/catalog-editor/internal/domain/reconcile"
	"github.com/xenking/catalog-editor/internal/domain/refdata"
)

var (
	// ErrDraftActive is returned when starting a draft while one is open.
	ErrDraftActive = errors.New("a draft is already open")
	// ErrNoDraft is returned by Save when no draft is open.
	ErrNoDraft = errors.New("no draft is open")
	// ErrSaveInFlight is returned by Save while a previous save is running.
	ErrSaveInFlight = errors.New("save already in progress")
)

// Options configures a Session.
type Options struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Session is one operator's editing session.
type Session struct {
	backend  catalog.Backend
	previews draft.PreviewStore
	refs     *refdata.Loader
	sync     *reconcile.Orchestrator
	lg       *zap.Logger

	mu       sync.Mutex
	products []catalog.Product
	active   *draft.Draft
	saving   *draft.Draft
}

// NewSession creates a Session against backend. Pending image content lives
// in previews.
func NewSession(backend catalog.Backend, previews draft.PreviewStore, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Session{
		backend:  backend,
		previews: previews,
		refs:     refdata.NewLoader(backend, opts.Logger.Named("refdata")),
		lg:       opts.Logger,
	}
	orch, err := reconcile.NewOrchestrator(backend, s, reconcile.Options{
		Logger:         opts.Logger.Named("sync"),
		TracerProvider: opts.TracerProvider,
		MeterProvider:  opts.MeterProvider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create orchestrator")
	}
	s.sync = orch
	return s, nil
}

// Open loads the reference data and the product list.
func (s *Session) Open(ctx context.Context) error {
	if _, err := s.refs.Load(ctx); err != nil {
		return errors.Wrap(err, "load reference data")
	}
	return s.Refresh(ctx)
}

// Refs returns the reference data, loading it if needed.
func (s *Session) Refs(ctx context.Context) (catalog.ReferenceData, error) {
	return s.refs.Load(ctx)
}

// Refresh replaces the product list with the backend's.
func (s *Session) Refresh(ctx context.Context) error {
	products, err := s.backend.ListProducts(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()

	s.lg.Debug("Product list refreshed", zap.Int("products", len(products)))
	return nil
}

// Products returns a deep copy of the last fetched product list.
func (s *Session) Products() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return catalog.CloneProducts(s.products)
}

// Draft returns the open draft or nil.
func (s *Session) Draft() *draft.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// BeginEdit fetches the product detail and opens an edit draft for it.
func (s *Session) BeginEdit(ctx context.Context, id int64) (*draft.Draft, error) {
	if s.Draft() != nil {
		return nil, ErrDraftActive
	}

	refs, err := s.refs.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load reference data")
	}
	p, err := s.backend.GetProduct(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}

	return s.open(draft.BeginEdit(*p, refs, s.previews))
}

// BeginCreate opens a draft for a new product with one blank variant.
func (s *Session) BeginCreate(ctx context.Context) (*draft.Draft, error) {
	refs, err := s.refs.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load reference data")
	}
	return s.open(draft.BeginCreate(refs, s.previews))
}

func (s *Session) open(d *draft.Draft) (*draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		d.Discard()
		return nil, ErrDraftActive
	}
	s.active = d
	return d, nil
}

// Save syncs the open draft. On success the draft is closed and the product
// list refreshed; on failure the draft stays open for a retry.
func (s *Session) Save(ctx context.Context) (*reconcile.Report, error) {
	s.mu.Lock()
	d := s.active
	switch {
	case d == nil:
		s.mu.Unlock()
		return nil, ErrNoDraft
	case s.saving != nil:
		s.mu.Unlock()
		return nil, ErrSaveInFlight
	}
	s.saving = d
	s.mu.Unlock()

	rep, err := s.sync.Sync(ctx, d)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = nil
	switch {
	case s.active != d:
		// Cancelled while saving.
		d.Discard()
	case d.Discarded():
		s.active = nil
	}
	return rep, err
}

// Cancel closes the open draft and releases its previews. A save in flight
// is not interrupted: the draft is detached now and released once that
// save returns.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.active
	if d == nil {
		return
	}
	s.active = nil
	if s.saving == d {
		s.lg.Info("Draft cancelled during save, release deferred")
		return
	}
	d.Discard()
}
