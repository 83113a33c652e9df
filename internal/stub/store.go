package stub

import (
	"slices"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

// DefaultRefs are the reference lists a stub starts with.
func DefaultRefs() catalog.ReferenceData {
	return catalog.ReferenceData{
		Categories: []catalog.Ref{{ID: 1, Name: "T-Shirts"}, {ID: 2, Name: "Hoodies"}, {ID: 3, Name: "Accessories"}},
		Brands:     []catalog.Ref{{ID: 1, Name: "Northwind"}, {ID: 2, Name: "Contoso"}},
		Colors: []catalog.Ref{
			{ID: 1, Name: "White"},
			{ID: 2, Name: "Red"},
			{ID: 3, Name: "Green"},
			{ID: 4, Name: "Navy"},
			{ID: 5, Name: "Black"},
		},
	}
}

// DemoProduct is a product with two variants for a fresh stub.
func DemoProduct() catalog.Product {
	return catalog.Product{
		Name:        "Classic Tee",
		Description: "Heavyweight cotton t-shirt",
		CategoryID:  1,
		BrandID:     1,
		Variants: []catalog.Variant{
			{ColorID: 1, Size: "M", Price: decimal.RequireFromString("19.99"), Stock: 12, SKU: "TEE-WHT-M"},
			{ColorID: 4, Size: "L", Price: decimal.RequireFromString("21.50"), Stock: 4, SKU: "TEE-NVY-L"},
		},
	}
}

// Upload is stored image content.
type Upload struct {
	ContentType string
	Data        []byte
}

// Store is the in-memory catalog behind the stub. It is safe for concurrent
// use.
type Store struct {
	mu          sync.Mutex
	refs        catalog.ReferenceData
	products    map[int64]*catalog.Product
	variantOf   map[int64]int64 // variant id -> product id
	uploads     map[string]Upload
	uploadBytes int64
	nextProduct int64
	nextVariant int64
}

// NewStore creates an empty store with the given reference lists.
func NewStore(refs catalog.ReferenceData) *Store {
	return &Store{
		refs:        refs.Clone(),
		products:    make(map[int64]*catalog.Product),
		variantOf:   make(map[int64]int64),
		uploads:     make(map[string]Upload),
		nextProduct: 1,
		nextVariant: 1,
	}
}

// Refs returns the reference lists.
func (s *Store) Refs() catalog.ReferenceData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs.Clone()
}

// Products returns every product ordered by id.
func (s *Store) Products() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b catalog.Product) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Product returns one product.
func (s *Store) Product(id int64) (catalog.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, false
	}
	return p.Clone(), true
}

// Create adds a product. Server ids are assigned to the product and every
// variant; the ids already set on p are ignored. It returns the new id.
func (s *Store) Create(p catalog.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := p.Clone()
	c.ID = s.nextProduct
	s.nextProduct++
	for i := range c.Variants {
		c.Variants[i].ID = s.nextVariant
		s.nextVariant++
		s.variantOf[c.Variants[i].ID] = c.ID
	}
	s.products[c.ID] = &c
	return c.ID
}

// UpdateProduct overwrites the scalar fields of a product.
func (s *Store) UpdateProduct(id int64, f catalog.ProductFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	p.Name, p.Description, p.CategoryID, p.BrandID = f.Name, f.Description, f.CategoryID, f.BrandID
	return nil
}

// UpdateVariant overwrites the scalar fields of a variant.
func (s *Store) UpdateVariant(id int64, f catalog.VariantFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.variant(id)
	if v == nil {
		return ErrVariantNotFound
	}
	v.ColorID, v.Size, v.Price, v.Stock, v.SKU = f.ColorID, f.Size, f.Price, f.Stock, f.SKU
	return nil
}

// AddImage appends a durable image to a variant.
func (s *Store) AddImage(variantID int64, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.variant(variantID)
	if v == nil {
		return ErrVariantNotFound
	}
	v.Images = append(v.Images, catalog.PersistedImage(url))
	return nil
}

// HasVariant reports whether a variant with the given id exists.
func (s *Store) HasVariant(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variant(id) != nil
}

func (s *Store) variant(id int64) *catalog.Variant {
	p, ok := s.products[s.variantOf[id]]
	if !ok {
		return nil
	}
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// SaveUpload stores image content and returns its file name: a uuid with
// the extension of the detected content type.
func (s *Store) SaveUpload(data []byte) (string, Upload) {
	mt := mimetype.Detect(data)
	u := Upload{ContentType: mt.String(), Data: slices.Clone(data)}
	name := uuid.NewString() + mt.Extension()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[name] = u
	s.uploadBytes += int64(len(u.Data))
	return name, u
}

// Upload returns stored content by file name.
func (s *Store) Upload(name string) (Upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[name]
	return u, ok
}

// UploadCount returns the number of stored uploads.
func (s *Store) UploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// UploadBytes returns the total size of stored uploads.
func (s *Store) UploadBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadBytes
}
