// Package stub serves an in-memory catalog over the same REST surface the
// editor talks to. It backs local development and end-to-end tests.
package stub

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
	"github.com/xenking/catalog-editor/internal/wire"
)

// ErrVariantNotFound is returned for writes to unknown variants.
var ErrVariantNotFound = errors.New("variant not found")

// Options configures a Server.
type Options struct {
	// PublicURL prefixes upload URLs. When empty, URLs are built from the
	// request host.
	PublicURL string
	// MaxUploadBytes limits multipart request bodies.
	MaxUploadBytes int64
}

type failure struct {
	status int
	msg    string
}

// Server is the stub HTTP backend.
type Server struct {
	store *Store
	opts  Options

	mu       sync.Mutex
	failures map[string]failure
	requests []string
}

// NewServer creates a Server over store.
func NewServer(store *Store, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Server{
		store:    store,
		opts:     opts,
		failures: make(map[string]failure),
	}
}

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

// FailNext makes the next request matching "METHOD /path" answer with status
// and an {error} body instead of being handled.
func (s *Server) FailNext(method, path string, status int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, msg: msg}
}

// Requests returns every handled request as "METHOD /path", in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record)

	r.HandleFunc("/categories", s.listRefs(func(d catalog.ReferenceData) []catalog.Ref { return d.Categories })).Methods(http.MethodGet)
	r.HandleFunc("/brands", s.listRefs(func(d catalog.ReferenceData) []catalog.Ref { return d.Brands })).Methods(http.MethodGet)
	r.HandleFunc("/colors", s.listRefs(func(d catalog.ReferenceData) []catalog.Ref { return d.Colors })).Methods(http.MethodGet)

	r.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}", s.getProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}", s.updateProduct).Methods(http.MethodPut)
	r.HandleFunc("/add-product", s.addProduct).Methods(http.MethodPost)
	r.HandleFunc("/variants/{id:[0-9]+}", s.updateVariant).Methods(http.MethodPut)
	r.HandleFunc("/variant-images", s.uploadVariantImage).Methods(http.MethodPost)
	r.HandleFunc("/uploads/{name}", s.serveUpload).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// record logs the request and applies injected failures.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.requests = append(s.requests, key)
		f, fail := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()

		if fail {
			zctx.From(r.Context()).Info("Injected failure", zap.String("request", key), zap.Int("status", f.status))
			writeError(w, f.status, f.msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listRefs(pick func(catalog.ReferenceData) []catalog.Ref) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, wire.EncodeRefs(pick(s.store.Refs())))
	}
}

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, wire.EncodeProducts(s.store.Products()))
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	p, ok := s.store.Product(id)
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, wire.EncodeProduct(&p))
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	f, err := wire.DecodeProductFields(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := s.checkProduct(f); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.store.UpdateProduct(id, f); err != nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, wire.EncodeMessage("Product updated"))
}

func (s *Server) updateVariant(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	f, err := wire.DecodeVariantFields(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := s.checkVariant(f); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.store.UpdateVariant(id, f); err != nil {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	writeJSON(w, http.StatusOK, wire.EncodeMessage("Variant updated"))
}

func (s *Server) addProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	categoryID, errC := strconv.ParseInt(r.FormValue("categoryId"), 10, 64)
	brandID, errB := strconv.ParseInt(r.FormValue("brandId"), 10, 64)
	if errC != nil || errB != nil {
		writeError(w, http.StatusBadRequest, "categoryId and brandId must be integers")
		return
	}
	p := catalog.Product{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		CategoryID:  categoryID,
		BrandID:     brandID,
	}
	if msg := s.checkProduct(p.Fields()); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	// Every variant is checked and every image read before anything is
	// stored, so a rejected create leaves no uploads behind.
	var images [][][]byte
	for i := 0; ; i++ {
		raw, ok := r.MultipartForm.Value[fmt.Sprintf("variants[%d]", i)]
		if !ok || len(raw) == 0 {
			break
		}
		f, err := wire.DecodeVariantFields([]byte(raw[0]))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("variants[%d]: %v", i, err))
			return
		}
		if msg := s.checkVariant(f); msg != "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("variants[%d]: %s", i, msg))
			return
		}
		p.Variants = append(p.Variants, catalog.Variant{ColorID: f.ColorID, Size: f.Size, Price: f.Price, Stock: f.Stock, SKU: f.SKU})

		var files [][]byte
		for _, fh := range r.MultipartForm.File[fmt.Sprintf("variantImages[%d]", i)] {
			data, err := readPart(fh)
			if err != nil {
				writeError(w, http.StatusBadRequest, "read image")
				return
			}
			files = append(files, data)
		}
		images = append(images, files)
	}

	base := s.uploadBase(r)
	for i, files := range images {
		for _, data := range files {
			name, _ := s.store.SaveUpload(data)
			p.Variants[i].Images = append(p.Variants[i].Images, catalog.PersistedImage(base+name))
		}
	}

	id := s.store.Create(p)
	zctx.From(r.Context()).Info("Product created", zap.Int64("product_id", id), zap.Int("variants", len(p.Variants)))
	writeJSON(w, http.StatusCreated, wire.EncodeMessage("Product created"))
}

func (s *Server) uploadVariantImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	variantID, err := strconv.ParseInt(r.FormValue("variantId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "variantId must be an integer")
		return
	}
	f, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "image is empty")
		return
	}

	if !s.store.HasVariant(variantID) {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	name, _ := s.store.SaveUpload(data)
	url := s.uploadBase(r) + name
	if err := s.store.AddImage(variantID, url); err != nil {
		writeError(w, http.StatusNotFound, "variant not found")
		return
	}
	writeJSON(w, http.StatusCreated, wire.EncodeUpload("Image uploaded", url))
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	u, ok := s.store.Upload(mux.Vars(r)["name"])
	if !ok {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	w.Header().Set("Content-Type", u.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(u.Data)))
	_, _ = w.Write(u.Data)
}

func (s *Server) checkProduct(f catalog.ProductFields) string {
	refs := s.store.Refs()
	switch {
	case strings.TrimSpace(f.Name) == "":
		return "name is required"
	case !catalog.Has(refs.Categories, f.CategoryID):
		return "unknown categoryId"
	case !catalog.Has(refs.Brands, f.BrandID):
		return "unknown brandId"
	}
	return ""
}

func (s *Server) checkVariant(f catalog.VariantFields) string {
	switch {
	case !catalog.Has(s.store.Refs().Colors, f.ColorID):
		return "unknown colorId"
	case f.Price.IsNegative():
		return "price must not be negative"
	case f.Stock < 0:
		return "stock must not be negative"
	}
	return ""
}

func (s *Server) uploadBase(r *http.Request) string {
	base := s.opts.PublicURL
	if base == "" {
		base = "http://" + r.Host
	}
	return strings.TrimRight(base, "/") + "/uploads/"
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.EncodeError(msg))
}
