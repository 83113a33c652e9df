package stub

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
	"github.com/xenking/catalog-editor/internal/wire"
)

var pngData = []byte("\x89PNG\r\n\x1a\nstub")

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(NewStore(DefaultRefs()), Options{})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func seedProduct(s *Server) catalog.Product {
	id := s.Store().Create(catalog.Product{
		Name:       "Tee",
		CategoryID: 1,
		BrandID:    1,
		Variants:   []catalog.Variant{{ColorID: 1, Size: "M", Price: decimal.NewFromInt(10), Stock: 1}},
	})
	p, _ := s.Store().Product(id)
	return p
}

func do(t *testing.T, method, url, contentType string, body []byte) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

type part struct {
	field, file string
	data        []byte
}

func multipartBody(t *testing.T, parts []part) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.file == "" {
			require.NoError(t, mw.WriteField(p.field, string(p.data)))
			continue
		}
		w, err := mw.CreateFormFile(p.field, p.file)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), buf.Bytes()
}

func TestServer_Refs(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/colors", "", nil)
	require.Equal(t, http.StatusOK, status)
	colors, err := wire.DecodeRefs(body)
	require.NoError(t, err)
	assert.Equal(t, DefaultRefs().Colors, colors)
}

func TestServer_UpdateProduct(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		fields  catalog.ProductFields
		status  int
		message string
	}{
		{
			name:    "ok",
			path:    "/products/1",
			fields:  catalog.ProductFields{Name: "Renamed", CategoryID: 2, BrandID: 2},
			status:  http.StatusOK,
			message: "Product updated",
		},
		{
			name:    "blank name",
			path:    "/products/1",
			fields:  catalog.ProductFields{Name: "  ", CategoryID: 1, BrandID: 1},
			status:  http.StatusBadRequest,
			message: "name is required",
		},
		{
			name:    "unknown category",
			path:    "/products/1",
			fields:  catalog.ProductFields{Name: "Tee", CategoryID: 99, BrandID: 1},
			status:  http.StatusBadRequest,
			message: "unknown categoryId",
		},
		{
			name:    "missing product",
			path:    "/products/42",
			fields:  catalog.ProductFields{Name: "Tee", CategoryID: 1, BrandID: 1},
			status:  http.StatusNotFound,
			message: "product not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ts := newTestServer(t)
			seedProduct(s)

			status, body := do(t, http.MethodPut, ts.URL+tt.path, "application/json", wire.EncodeProductFields(tt.fields))
			assert.Equal(t, tt.status, status)
			env := wire.DecodeEnvelope(body)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.message, env.Message)
				p, _ := s.Store().Product(1)
				assert.Equal(t, "Renamed", p.Name)
				return
			}
			assert.Equal(t, tt.message, env.Error)
		})
	}
}

func TestServer_UpdateVariantRejectsNegativeStock(t *testing.T) {
	s, ts := newTestServer(t)
	p := seedProduct(s)

	f := p.Variants[0].Fields()
	f.Stock = -1
	status, body := do(t, http.MethodPut, ts.URL+"/variants/1", "application/json", wire.EncodeVariantFields(f))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "stock must not be negative", wire.DecodeEnvelope(body).Error)
}

func TestServer_FailNext(t *testing.T) {
	s, ts := newTestServer(t)
	s.FailNext(http.MethodGet, "/brands", http.StatusServiceUnavailable, "maintenance")

	status, body := do(t, http.MethodGet, ts.URL+"/brands", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "maintenance", wire.DecodeEnvelope(body).Error)

	status, _ = do(t, http.MethodGet, ts.URL+"/brands", "", nil)
	assert.Equal(t, http.StatusOK, status)

	assert.Equal(t, []string{"GET /brands", "GET /brands"}, s.Requests())
}

func TestServer_AddProduct(t *testing.T) {
	s, ts := newTestServer(t)

	variant := wire.EncodeVariantFields(catalog.VariantFields{ColorID: 2, Size: "L", Price: decimal.RequireFromString("19.99"), Stock: 3})
	ct, body := multipartBody(t, []part{
		{field: "name", data: []byte("Hoodie")},
		{field: "categoryId", data: []byte("2")},
		{field: "brandId", data: []byte("1")},
		{field: "variants[0]", data: variant},
		{field: "variantImages[0]", file: "front.png", data: pngData},
	})

	status, resp := do(t, http.MethodPost, ts.URL+"/add-product", ct, body)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Product created", wire.DecodeEnvelope(resp).Message)

	products := s.Store().Products()
	require.Len(t, products, 1)
	require.Len(t, products[0].Variants, 1)
	v := products[0].Variants[0]
	assert.Equal(t, int64(1), v.ID)
	require.Len(t, v.Images, 1)
	assert.True(t, strings.HasPrefix(v.Images[0].URL, ts.URL+"/uploads/"))
}

func TestServer_AddProductRejectsUnknownColor(t *testing.T) {
	s, ts := newTestServer(t)

	variant := wire.EncodeVariantFields(catalog.VariantFields{ColorID: 77})
	ct, body := multipartBody(t, []part{
		{field: "name", data: []byte("Hoodie")},
		{field: "categoryId", data: []byte("2")},
		{field: "brandId", data: []byte("1")},
		{field: "variants[0]", data: variant},
	})

	status, resp := do(t, http.MethodPost, ts.URL+"/add-product", ct, body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "variants[0]: unknown colorId", wire.DecodeEnvelope(resp).Error)
	assert.Empty(t, s.Store().Products())
}

func TestServer_AddProductRejectedStoresNoUploads(t *testing.T) {
	s, ts := newTestServer(t)

	valid := wire.EncodeVariantFields(catalog.VariantFields{ColorID: 1, Size: "M", Price: decimal.NewFromInt(10), Stock: 1})
	invalid := wire.EncodeVariantFields(catalog.VariantFields{ColorID: 77})
	ct, body := multipartBody(t, []part{
		{field: "name", data: []byte("Hoodie")},
		{field: "categoryId", data: []byte("2")},
		{field: "brandId", data: []byte("1")},
		{field: "variants[0]", data: valid},
		{field: "variantImages[0]", file: "front.png", data: pngData},
		{field: "variants[1]", data: invalid},
		{field: "variantImages[1]", file: "back.png", data: pngData},
	})

	status, resp := do(t, http.MethodPost, ts.URL+"/add-product", ct, body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "variants[1]: unknown colorId", wire.DecodeEnvelope(resp).Error)
	assert.Empty(t, s.Store().Products())
	assert.Zero(t, s.Store().UploadCount())
	assert.Zero(t, s.Store().UploadBytes())
}

func TestServer_UploadAndServe(t *testing.T) {
	s, ts := newTestServer(t)
	seedProduct(s)

	ct, body := multipartBody(t, []part{
		{field: "variantId", data: []byte("1")},
		{field: "image", file: "a.png", data: pngData},
	})
	status, resp := do(t, http.MethodPost, ts.URL+"/variant-images", ct, body)
	require.Equal(t, http.StatusCreated, status)
	env := wire.DecodeEnvelope(resp)
	assert.Equal(t, "Image uploaded", env.Message)
	require.NotEmpty(t, env.URL)

	got, err := http.Get(env.URL)
	require.NoError(t, err)
	defer func() { _ = got.Body.Close() }()
	data, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "image/png", got.Header.Get("Content-Type"))
	assert.Equal(t, pngData, data)

	assert.Equal(t, int64(len(pngData)), s.Store().UploadBytes())
	p, _ := s.Store().Product(1)
	require.Len(t, p.Variants[0].Images, 1)
	assert.Equal(t, env.URL, p.Variants[0].Images[0].URL)
}

func TestServer_UploadUnknownVariant(t *testing.T) {
	s, ts := newTestServer(t)

	ct, body := multipartBody(t, []part{
		{field: "variantId", data: []byte("9")},
		{field: "image", file: "a.png", data: pngData},
	})
	status, resp := do(t, http.MethodPost, ts.URL+"/variant-images", ct, body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "variant not found", wire.DecodeEnvelope(resp).Error)
	assert.Zero(t, s.Store().UploadCount())
}

func TestServer_UnknownRoute(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not found", wire.DecodeEnvelope(body).Error)
}
