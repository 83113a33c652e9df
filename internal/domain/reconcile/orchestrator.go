// Package reconcile writes a draft product graph to a backend that only
// offers per-entity endpoints.
//
// A sync runs strictly in order: validate, create or update the product,
// update each variant, upload each pending image. The first failure stops
// the sync; nothing already applied is rolled back. Re-running a sync on the
// same draft is safe: updates overwrite, and images uploaded by an earlier
// attempt are already persisted in the draft and are skipped.
package reconcile

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
	"github.com/xenking/catalog-editor/internal/domain/draft"
)

const instrumentationName = "github.com/xenking/catalog-editor/internal/domain/reconcile"

// Refresher re-fetches the authoritative product list after a successful
// sync.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Report summarizes a successful sync.
type Report struct {
	Created         bool
	ProductID       int64
	Message         string
	VariantsUpdated int
	ImagesUploaded  int
}

// Options configures an Orchestrator. Zero values use the otel globals and
// a nop logger.
type Options struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Orchestrator runs syncs.
type Orchestrator struct {
	backend catalog.ProductWriter
	refresh Refresher
	lg      *zap.Logger
	tracer  trace.Tracer
	syncs   metric.Int64Counter
}

// NewOrchestrator creates an Orchestrator. Pass an untyped nil refresh to
// skip reloading the product list after a save.
func NewOrchestrator(backend catalog.ProductWriter, refresh Refresher, opts Options) (*Orchestrator, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}

	syncs, err := opts.MeterProvider.Meter(instrumentationName).Int64Counter("catalog.sync.count",
		metric.WithDescription("Completed product syncs by flow and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create sync counter")
	}

	return &Orchestrator{
		backend: backend,
		refresh: refresh,
		lg:      opts.Logger,
		tracer:  opts.TracerProvider.Tracer(instrumentationName),
		syncs:   syncs,
	}, nil
}

// Sync writes d to the backend. On success d is discarded and the product
// list refreshed. On failure the returned *SyncError names the failing step
// and d stays open, but it is not left as it was: every image uploaded
// before the failure is marked persisted in d with its server URL and its
// preview released, so a retry does not upload it again. All other draft
// fields are left untouched.
//
// Once started a sync is not cancelled by ctx: it runs until it completes or
// a request fails. If every write succeeds but the refresh fails, both the
// report and a StepRefresh error are returned.
func (o *Orchestrator) Sync(ctx context.Context, d *draft.Draft) (*Report, error) {
	ctx = context.WithoutCancel(ctx)

	flow := "update"
	if d.IsNew() {
		flow = "create"
	}
	ctx, span := o.tracer.Start(ctx, "reconcile.Sync", trace.WithAttributes(
		attribute.String("catalog.flow", flow),
		attribute.Int64("catalog.product_id", d.ID()),
	))
	defer span.End()

	lg := o.lg.With(zap.String("flow", flow), zap.Int64("product_id", d.ID()))
	lg.Info("Sync started", zap.Int("variants", d.Len()))

	var (
		rep *Report
		err error
	)
	if flow == "create" {
		rep, err = o.create(ctx, lg, d)
	} else {
		rep, err = o.update(ctx, lg, d)
	}
	if err == nil {
		rep.Created = flow == "create"
		d.Discard()
		err = o.refreshList(ctx)
	}

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		var serr *SyncError
		if errors.As(err, &serr) {
			outcome = serr.Step.String()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Warn("Sync failed", zap.Error(err))
	} else {
		lg.Info("Sync finished",
			zap.Int("variants_updated", rep.VariantsUpdated),
			zap.Int("images_uploaded", rep.ImagesUploaded),
		)
	}
	o.syncs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	))
	return rep, err
}

func (o *Orchestrator) create(ctx context.Context, lg *zap.Logger, d *draft.Draft) (*Report, error) {
	if err := d.Validate(); err != nil {
		return nil, stepError(StepValidate, err)
	}

	np, err := d.NewProduct()
	if err != nil {
		return nil, stepError(StepCreateProduct, err)
	}
	var files int
	for _, v := range np.Variants {
		files += len(v.Images)
	}

	msg, err := o.backend.CreateProduct(ctx, np)
	if err != nil {
		return nil, stepError(StepCreateProduct, err)
	}
	lg.Info("Product created",
		zap.String("message", msg),
		zap.Int("variants", len(np.Variants)),
		zap.Int("images", files),
	)
	return &Report{
		Message:        msg,
		ImagesUploaded: files,
	}, nil
}

func (o *Orchestrator) update(ctx context.Context, lg *zap.Logger, d *draft.Draft) (*Report, error) {
	if err := d.Validate(); err != nil {
		return nil, stepError(StepValidate, err)
	}

	p := d.Snapshot()
	if err := o.backend.UpdateProduct(ctx, p.ID, p.Fields()); err != nil {
		return nil, stepError(StepUpdateProduct, err)
	}
	lg.Debug("Product updated")

	rep := &Report{ProductID: p.ID}
	variants := d.Variants()
	for i, v := range variants {
		if err := o.backend.UpdateVariant(ctx, v.ID, v.Fields()); err != nil {
			return nil, &SyncError{Step: StepUpdateVariant, Index: i, ImageIndex: -1, VariantID: v.ID, Err: err}
		}
		rep.VariantsUpdated++
		lg.Debug("Variant updated", zap.Int("index", i), zap.Int64("variant_id", v.ID))
	}

	for i, v := range variants {
		for j, img := range v.Images {
			if !img.Pending() {
				continue
			}
			uploaded, err := o.upload(ctx, lg, d, v, img.Handle)
			if err != nil {
				return nil, &SyncError{Step: StepUploadImage, Index: i, ImageIndex: j, VariantID: v.ID, Err: err}
			}
			if uploaded {
				rep.ImagesUploaded++
			}
		}
	}
	return rep, nil
}

// upload sends one pending image. It reports false without error when the
// operator removed the image or its variant while the sync was running.
func (o *Orchestrator) upload(ctx context.Context, lg *zap.Logger, d *draft.Draft, v draft.Variant, handle string) (bool, error) {
	f, err := d.OpenPending(v.Key, handle)
	switch {
	case errors.Is(err, draft.ErrVariantNotFound), errors.Is(err, draft.ErrImageGone):
		lg.Debug("Pending image left the draft, skipping", zap.Int64("variant_id", v.ID), zap.String("handle", handle))
		return false, nil
	case err != nil:
		return false, err
	}

	url, err := o.backend.UploadVariantImage(ctx, v.ID, f)
	if err != nil {
		return false, err
	}
	if err := d.MarkUploaded(v.Key, handle, url); err != nil {
		// Uploaded, but the image left the draft in the meantime.
		lg.Debug("Uploaded image no longer in draft", zap.String("handle", handle), zap.Error(err))
	}
	lg.Debug("Image uploaded", zap.Int64("variant_id", v.ID), zap.String("url", url))
	return true, nil
}

func (o *Orchestrator) refreshList(ctx context.Context) error {
	if o.refresh == nil {
		return nil
	}
	if err := o.refresh.Refresh(ctx); err != nil {
		return stepError(StepRefresh, err)
	}
	return nil
}
