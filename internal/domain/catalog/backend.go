package catalog

import (
	"bytes"
	"context"
	"io"
)

// ReferenceReader lists the reference option sets.
type ReferenceReader interface {
	ListCategories(ctx context.Context) ([]Ref, error)
	ListBrands(ctx context.Context) ([]Ref, error)
	ListColors(ctx context.Context) ([]Ref, error)
}

// ProductReader reads the authoritative product state.
type ProductReader interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
}

// ProductWriter applies per-entity writes. The backend offers no
// multi-entity transaction.
type ProductWriter interface {
	// CreateProduct creates a product together with its variants and their
	// initial images in a single request. It returns the backend message.
	CreateProduct(ctx context.Context, p NewProduct) (string, error)
	UpdateProduct(ctx context.Context, id int64, f ProductFields) error
	UpdateVariant(ctx context.Context, id int64, f VariantFields) error
	// UploadVariantImage attaches an image to an existing variant and
	// returns the durable URL when the backend reports one.
	UploadVariantImage(ctx context.Context, variantID int64, f File) (string, error)
}

// Backend is the full REST surface consumed by the editor.
type Backend interface {
	ReferenceReader
	ProductReader
	ProductWriter
}

// NewProduct is the create-flow payload.
type NewProduct struct {
	Fields   ProductFields
	Variants []NewVariant
}

// NewVariant carries a variant's fields and the files of its images.
type NewVariant struct {
	Fields VariantFields
	Images []File
}

// File is binary image content with its original name.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Open returns a reader over the file content.
func (f File) Open() io.Reader {
	return bytes.NewReader(f.Data)
}
