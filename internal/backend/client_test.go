package backend

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestClient_ListCategories(t *testing.T) {
	var requestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/categories", r.URL.Path)
		requestID = r.Header.Get(RequestIDHeader)
		_, _ = io.WriteString(w, `[{"id":1,"name":"Shirts"}]`)
	})

	refs, err := c.ListCategories(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []catalog.Ref{{ID: 1, Name: "Shirts"}}, refs)
	assert.NotEmpty(t, requestID)
}

func TestClient_GetProductNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"product not found"}`)
	})

	_, err := c.GetProduct(t.Context(), 9)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestClient_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "error envelope", body: `{"error":"sku taken"}`, wantMsg: "sku taken"},
		{name: "message envelope", body: `{"message":"bad variant"}`, wantMsg: "bad variant"},
		{name: "plain text", body: "upstream down\n", wantMsg: "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.UpdateVariant(t.Context(), 3, catalog.VariantFields{ColorID: 5})
			var rej *catalog.RejectedError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, http.StatusUnprocessableEntity, rej.Status)
			assert.Equal(t, tt.wantMsg, rej.Message)
			assert.Equal(t, "update variant", rej.Op)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.ListBrands(t.Context())
	var terr *catalog.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "list brands", terr.Op)
}

func TestClient_UpdateProductSendsNumbers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/products/7", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"name":"Tee","description":"soft","categoryId":1,"brandId":2}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.UpdateProduct(t.Context(), 7, catalog.ProductFields{Name: "Tee", Description: "soft", CategoryID: 1, BrandID: 2})
	require.NoError(t, err)
}

func TestClient_CreateProductMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/add-product", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		assert.Equal(t, "Tee", r.FormValue("name"))
		assert.Equal(t, "1", r.FormValue("categoryId"))
		assert.Equal(t, "2", r.FormValue("brandId"))
		assert.JSONEq(t,
			`{"colorId":5,"size":"M","price":19.99,"stock":10,"sku":"TEE-M-BLK"}`,
			r.FormValue("variants[0]"))
		assert.JSONEq(t,
			`{"colorId":6,"size":"L","price":0,"stock":0,"sku":""}`,
			r.FormValue("variants[1]"))

		assert.Empty(t, r.MultipartForm.File["variantImages[0]"])
		files := r.MultipartForm.File["variantImages[1]"]
		if assert.Len(t, files, 2) {
			assert.Equal(t, "a.png", files[0].Filename)
			assert.Equal(t, "image/png", files[0].Header.Get("Content-Type"))
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"created"}`)
	})

	msg, err := c.CreateProduct(t.Context(), catalog.NewProduct{
		Fields: catalog.ProductFields{Name: "Tee", CategoryID: 1, BrandID: 2},
		Variants: []catalog.NewVariant{
			{Fields: catalog.VariantFields{ColorID: 5, Size: "M", Price: decimal.RequireFromString("19.99"), Stock: 10, SKU: "TEE-M-BLK"}},
			{
				Fields: catalog.VariantFields{ColorID: 6, Size: "L"},
				Images: []catalog.File{
					{Name: "a.png", ContentType: "image/png", Data: []byte("a")},
					{Name: "b.png", ContentType: "image/png", Data: []byte("b")},
				},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "created", msg)
}

func TestClient_UploadVariantImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/variant-images", r.URL.Path)
		assert.Equal(t, "70", r.FormValue("variantId"))

		f, hdr, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(f)
		assert.NoError(t, err)
		assert.Equal(t, "pixels", string(data))
		assert.Equal(t, "x.jpg", hdr.Filename)

		_, _ = io.WriteString(w, `{"message":"uploaded","url":"/uploads/x.jpg"}`)
	})

	url, err := c.UploadVariantImage(t.Context(), 70, catalog.File{Name: "x.jpg", ContentType: "image/jpeg", Data: []byte("pixels")})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/x.jpg", url)
}

func TestClient_GetProductDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := c.GetProduct(t.Context(), 1)
	require.Error(t, err)
	var rej *catalog.RejectedError
	assert.False(t, errors.As(err, &rej))
}
