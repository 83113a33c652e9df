package editor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-editor/internal/backend"
	"github.com/xenking/catalog-editor/internal/domain/catalog"
	"github.com/xenking/catalog-editor/internal/domain/draft"
	"github.com/xenking/catalog-editor/internal/domain/reconcile"
	"github.com/xenking/catalog-editor/internal/preview"
	"github.com/xenking/catalog-editor/internal/stub"
)

type env struct {
	stub     *stub.Server
	previews *preview.Store
	session  *Session
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, nil)
}

// newEnvWith is newEnv with the stub handler wrapped by wrap.
func newEnvWith(t *testing.T, wrap func(http.Handler) http.Handler) *env {
	t.Helper()

	srv := stub.NewServer(stub.NewStore(stub.DefaultRefs()), stub.Options{})
	h := srv.Handler()
	if wrap != nil {
		h = wrap(h)
	}
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	client, err := backend.New(backend.Options{BaseURL: ts.URL})
	require.NoError(t, err)

	previews := preview.New(0)
	s, err := NewSession(client, previews, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Open(context.Background()))
	srv.ResetRequests()

	return &env{stub: srv, previews: previews, session: s}
}

// seed stores a product with n variants directly in the stub.
func (e *env) seed(n int) catalog.Product {
	p := catalog.Product{Name: "Classic Tee", CategoryID: 1, BrandID: 1}
	for range n {
		p.Variants = append(p.Variants, catalog.Variant{ColorID: 1, Size: "M", Price: decimal.RequireFromString("10.00"), Stock: 5})
	}
	id := e.stub.Store().Create(p)
	out, _ := e.stub.Store().Product(id)
	return out
}

func png(name string) catalog.File {
	return catalog.File{Name: name, Data: []byte("\x89PNG\r\n\x1a\n" + name)}
}

func mustKey(t *testing.T, d *draft.Draft, i int) draft.Key {
	t.Helper()
	k, err := d.KeyAt(i)
	require.NoError(t, err)
	return k
}

func TestSession_Create(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d, err := e.session.BeginCreate(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Set("name", "Tee"))
	require.NoError(t, d.Set("categoryId", "1"))
	require.NoError(t, d.Set("brandId", "1"))
	require.NoError(t, d.Set("variants.0.colorId", "2"))
	require.NoError(t, d.Set("variants.0.size", "M"))
	require.NoError(t, d.Set("variants.0.price", "19.99"))
	require.NoError(t, d.Set("variants.0.stock", "10"))
	_, err = d.AddImages(mustKey(t, d, 0), []catalog.File{png("front.png")})
	require.NoError(t, err)

	rep, err := e.session.Save(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Created)
	assert.Equal(t, 1, rep.ImagesUploaded)

	assert.Equal(t, []string{"POST /add-product", "GET /products"}, e.stub.Requests())
	assert.Nil(t, e.session.Draft())
	assert.Zero(t, e.previews.Len())

	products := e.session.Products()
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "Tee", p.Name)
	require.Len(t, p.Variants, 1)
	v := p.Variants[0]
	assert.Equal(t, int64(2), v.ColorID)
	assert.True(t, decimal.RequireFromString("19.99").Equal(v.Price))
	assert.Equal(t, 10, v.Stock)
	require.Len(t, v.Images, 1)
	assert.False(t, v.Images[0].Pending())
}

func TestSession_EditUploadsImages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := e.seed(1)

	d, err := e.session.BeginEdit(ctx, seeded.ID)
	require.NoError(t, err)
	require.NoError(t, d.Set("variants.0.price", "12.50"))
	_, err = d.AddImages(mustKey(t, d, 0), []catalog.File{png("a.png"), png("b.png")})
	require.NoError(t, err)
	e.stub.ResetRequests()

	rep, err := e.session.Save(ctx)
	require.NoError(t, err)
	assert.False(t, rep.Created)
	assert.Equal(t, 1, rep.VariantsUpdated)
	assert.Equal(t, 2, rep.ImagesUploaded)

	assert.Equal(t, []string{
		"PUT /products/1",
		"PUT /variants/1",
		"POST /variant-images",
		"POST /variant-images",
		"GET /products",
	}, e.stub.Requests())

	stored, ok := e.stub.Store().Product(seeded.ID)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("12.50").Equal(stored.Variants[0].Price))
	require.Len(t, stored.Variants[0].Images, 2)
	assert.Equal(t, 2, e.stub.Store().UploadCount())
	assert.Zero(t, e.previews.Len())
}

func TestSession_EditVariantFailureKeepsDraft(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := e.seed(3)

	d, err := e.session.BeginEdit(ctx, seeded.ID)
	require.NoError(t, err)
	for i := range 3 {
		require.NoError(t, d.Set(fmt.Sprintf("variants.%d.stock", i), "7"))
	}
	second := seeded.Variants[1].ID
	e.stub.FailNext(http.MethodPut, "/variants/2", http.StatusBadRequest, "sku taken")
	e.stub.ResetRequests()

	_, err = e.session.Save(ctx)
	require.Error(t, err)

	var serr *reconcile.SyncError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, reconcile.StepUpdateVariant, serr.Step)
	assert.Equal(t, 1, serr.Index)
	assert.Equal(t, second, serr.VariantID)

	var rej *catalog.RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	assert.Equal(t, "sku taken", rej.Message)

	assert.Equal(t, []string{"PUT /products/1", "PUT /variants/1", "PUT /variants/2"}, e.stub.Requests())
	assert.Same(t, d, e.session.Draft())

	// Partial write is visible server side.
	stored, _ := e.stub.Store().Product(seeded.ID)
	assert.Equal(t, 7, stored.Variants[0].Stock)
	assert.Equal(t, 5, stored.Variants[1].Stock)

	// Retry finishes.
	rep, err := e.session.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.VariantsUpdated)
	assert.Nil(t, e.session.Draft())
}

func TestSession_RefreshFailureClosesDraft(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := e.seed(1)

	d, err := e.session.BeginEdit(ctx, seeded.ID)
	require.NoError(t, err)
	_, err = d.AddImages(mustKey(t, d, 0), []catalog.File{png("a.png"), png("b.png")})
	require.NoError(t, err)

	e.stub.FailNext(http.MethodGet, "/products", http.StatusInternalServerError, "boom")
	_, err = e.session.Save(ctx)
	// Every write landed; only the refresh failed and the draft is closed.
	var serr *reconcile.SyncError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, reconcile.StepRefresh, serr.Step)
	assert.Nil(t, e.session.Draft())
	assert.Equal(t, 2, e.stub.Store().UploadCount())

	// The reopened draft sees the uploads as persisted and sends none.
	_, err = e.session.BeginEdit(ctx, seeded.ID)
	require.NoError(t, err)
	rep, err := e.session.Save(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.ImagesUploaded)
	assert.Equal(t, 2, e.stub.Store().UploadCount())
}

func TestSession_UploadFailureKeepsPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := e.seed(1)

	d, err := e.session.BeginEdit(ctx, seeded.ID)
	require.NoError(t, err)
	key := mustKey(t, d, 0)
	_, err = d.AddImages(key, []catalog.File{png("a.png")})
	require.NoError(t, err)

	e.stub.FailNext(http.MethodPost, "/variant-images", http.StatusRequestEntityTooLarge, "too large")
	_, err = e.session.Save(ctx)
	var serr *reconcile.SyncError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, reconcile.StepUploadImage, serr.Step)
	assert.Equal(t, 0, serr.ImageIndex)

	// Still pending, still previewable.
	v := d.Variants()[0]
	require.Len(t, v.Images, 1)
	assert.True(t, v.Images[0].Pending())
	assert.Equal(t, 1, e.previews.Len())

	_, err = e.session.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, e.stub.Store().UploadCount())
	assert.Zero(t, e.previews.Len())
}

func TestSession_CancelReleasesPreviews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := e.seed(1)

	d, err := e.session.BeginEdit(ctx, seeded.ID)
	require.NoError(t, err)
	_, err = d.AddImages(mustKey(t, d, 0), []catalog.File{png("a.png")})
	require.NoError(t, err)
	require.Equal(t, 1, e.previews.Len())

	e.session.Cancel()
	assert.Nil(t, e.session.Draft())
	assert.True(t, d.Discarded())
	assert.Zero(t, e.previews.Len())
	assert.Equal(t, []string{"GET /products/1"}, e.stub.Requests(), "cancel must not write")

	_, err = e.session.Save(ctx)
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestSession_SingleDraft(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seeded := e.seed(1)

	_, err := e.session.BeginCreate(ctx)
	require.NoError(t, err)

	_, err = e.session.BeginEdit(ctx, seeded.ID)
	assert.ErrorIs(t, err, ErrDraftActive)
	_, err = e.session.BeginCreate(ctx)
	assert.ErrorIs(t, err, ErrDraftActive)

	e.session.Cancel()
	_, err = e.session.BeginEdit(ctx, seeded.ID)
	assert.NoError(t, err)
}

func TestSession_BeginEditNotFound(t *testing.T) {
	e := newEnv(t)

	_, err := e.session.BeginEdit(context.Background(), 42)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Nil(t, e.session.Draft())
}

func TestSession_ValidationSendsNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.session.BeginCreate(ctx)
	require.NoError(t, err)

	_, err = e.session.Save(ctx)
	var verr *catalog.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Empty(t, e.stub.Requests())
	assert.NotNil(t, e.session.Draft())
}

func TestSession_ProductsAreCopies(t *testing.T) {
	e := newEnv(t)
	e.seed(1)
	require.NoError(t, e.session.Refresh(context.Background()))

	first := e.session.Products()
	require.Len(t, first, 1)
	first[0].Name = "changed"
	first[0].Variants[0].Stock = 99

	again := e.session.Products()
	assert.Equal(t, "Classic Tee", again[0].Name)
	assert.Equal(t, 5, again[0].Variants[0].Stock)
}

func TestSession_CancelDuringSave(t *testing.T) {
	arrived := make(chan struct{}, 1)
	gate := make(chan struct{})
	e := newEnvWith(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/variant-images" {
				arrived <- struct{}{}
				<-gate
			}
			next.ServeHTTP(w, r)
		})
	})
	ctx := context.Background()
	seeded := e.seed(1)

	d, err := e.session.BeginEdit(ctx, seeded.ID)
	require.NoError(t, err)
	_, err = d.AddImages(mustKey(t, d, 0), []catalog.File{png("a.png")})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.session.Save(ctx)
		done <- err
	}()
	<-arrived

	e.session.Cancel()
	assert.Nil(t, e.session.Draft())
	_, err = e.session.BeginCreate(ctx)
	require.NoError(t, err, "a new draft can start while the old save finishes")

	close(gate)
	require.NoError(t, <-done)

	assert.True(t, d.Discarded())
	assert.Equal(t, 1, e.stub.Store().UploadCount())
	assert.NotNil(t, e.session.Draft(), "the new draft survives the old save")
}
