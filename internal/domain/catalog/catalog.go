// Package catalog defines the product entity graph edited by operators:
// a Product owns Variants, and every Variant owns Images. Categories,
// brands and colors are read-only reference records.
package catalog

import (
	"github.com/shopspring/decimal"
)

// Product is a catalog item with its purchasable variants.
// ID is zero until the backend has created the product.
type Product struct {
	ID          int64
	Name        string
	Description string
	CategoryID  int64
	BrandID     int64
	Variants    []Variant
}

// Variant is one purchasable combination of color and size.
// ID is zero until the backend has created the variant.
type Variant struct {
	ID      int64
	ColorID int64
	Size    string
	Price   decimal.Decimal
	Stock   int
	SKU     string
	Images  []Image
}

// Ref is an immutable {id, name} reference record.
type Ref struct {
	ID   int64
	Name string
}

// ReferenceData holds the option lists offered by product selectors.
type ReferenceData struct {
	Categories []Ref
	Brands     []Ref
	Colors     []Ref
}

// ProductFields are the scalar product fields sent on create and update.
type ProductFields struct {
	Name        string `json:"name" validate:"notblank"`
	Description string `json:"description"`
	CategoryID  int64  `json:"categoryId" validate:"required"`
	BrandID     int64  `json:"brandId" validate:"required"`
}

// VariantFields are the scalar variant fields sent on create and update.
type VariantFields struct {
	ColorID int64           `json:"colorId" validate:"required"`
	Size    string          `json:"size"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock" validate:"gte=0"`
	SKU     string          `json:"sku"`
}

// Fields returns the scalar part of the product.
func (p *Product) Fields() ProductFields {
	return ProductFields{
		Name:        p.Name,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		BrandID:     p.BrandID,
	}
}

// Fields returns the scalar part of the variant.
func (v *Variant) Fields() VariantFields {
	return VariantFields{
		ColorID: v.ColorID,
		Size:    v.Size,
		Price:   v.Price,
		Stock:   v.Stock,
		SKU:     v.SKU,
	}
}

// Clone returns a deep copy of the product graph. The copy shares no slices
// with the receiver.
func (p *Product) Clone() Product {
	out := *p
	if p.Variants != nil {
		out.Variants = make([]Variant, len(p.Variants))
		for i := range p.Variants {
			out.Variants[i] = p.Variants[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the variant and its images.
func (v *Variant) Clone() Variant {
	out := *v
	if v.Images != nil {
		out.Images = make([]Image, len(v.Images))
		copy(out.Images, v.Images)
	}
	return out
}

// PendingImages returns the number of images still awaiting upload.
func (v *Variant) PendingImages() int {
	var n int
	for _, img := range v.Images {
		if img.Pending() {
			n++
		}
	}
	return n
}

// CloneProducts deep-copies a product list.
func CloneProducts(products []Product) []Product {
	out := make([]Product, len(products))
	for i := range products {
		out[i] = products[i].Clone()
	}
	return out
}

// Has reports whether id is present in refs.
func Has(refs []Ref, id int64) bool {
	for _, r := range refs {
		if r.ID == id {
			return true
		}
	}
	return false
}

// DefaultColor returns the first loaded color id, or zero if none are loaded.
func (d *ReferenceData) DefaultColor() int64 {
	if len(d.Colors) == 0 {
		return 0
	}
	return d.Colors[0].ID
}

// Clone returns a copy of the reference data.
func (d *ReferenceData) Clone() ReferenceData {
	return ReferenceData{
		Categories: append([]Ref(nil), d.Categories...),
		Brands:     append([]Ref(nil), d.Brands...),
		Colors:     append([]Ref(nil), d.Colors...),
	}
}
