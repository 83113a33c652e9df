// Package draft maintains an independently mutable copy of one product's
// entity graph while an operator edits it.
//
// A draft never shares structure with the product it was started from.
// Variants are identified by a synthetic Key assigned when they enter the
// draft, so removing or reordering variants cannot retarget an operation that
// was addressed to a different variant. Index-based callers translate with
// KeyAt.
//
// Every method is safe for concurrent use; the orchestrator resolves pending
// image content through the same lock that guards removals.
package draft

import (
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

// PreviewStore owns the local content behind pending images. Previews are
// created on behalf of the variant key that received them.
type PreviewStore interface {
	Create(owner string, f catalog.File) (string, error)
	Open(handle string) (catalog.File, error)
	Release(handle string)
	ReleaseOwner(owner string) int
}

// Key is a draft-local, stable variant identifier. It is independent of the
// server id and exists even before the variant has been created.
type Key string

// Variant is a draft variant with its synthetic key.
type Variant struct {
	Key Key
	catalog.Variant
}

// Draft is the editable copy of a product graph.
type Draft struct {
	mu        sync.Mutex
	product   catalog.Product // Variants is always nil; see variants.
	variants  []Variant
	refs      catalog.ReferenceData
	previews  PreviewStore
	discarded bool
	newKey    func() Key
}

// BeginEdit starts a draft from an existing product. The product is deep
// copied; variants whose color is missing or not among the loaded colors
// get the first loaded color. With no colors loaded they are left as is.
func BeginEdit(p catalog.Product, refs catalog.ReferenceData, previews PreviewStore) *Draft {
	d := newDraft(refs, previews)

	src := p.Clone()
	d.product = src
	d.product.Variants = nil

	d.variants = make([]Variant, len(src.Variants))
	for i, v := range src.Variants {
		if len(d.refs.Colors) > 0 && !catalog.Has(d.refs.Colors, v.ColorID) {
			v.ColorID = d.refs.DefaultColor()
		}
		d.variants[i] = Variant{Key: d.newKey(), Variant: v}
	}
	return d
}

// BeginCreate starts an empty draft with one blank variant.
func BeginCreate(refs catalog.ReferenceData, previews PreviewStore) *Draft {
	d := newDraft(refs, previews)
	d.variants = []Variant{d.blankVariant()}
	return d
}

func newDraft(refs catalog.ReferenceData, previews PreviewStore) *Draft {
	return &Draft{
		refs:     refs.Clone(),
		previews: previews,
		newKey:   func() Key { return Key(uuid.NewString()) },
	}
}

func (d *Draft) blankVariant() Variant {
	return Variant{
		Key: d.newKey(),
		Variant: catalog.Variant{
			ColorID: d.refs.DefaultColor(),
		},
	}
}

// ID returns the server id of the product, zero for a create draft.
func (d *Draft) ID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.product.ID
}

// IsNew reports whether the draft will create a product rather than update one.
func (d *Draft) IsNew() bool {
	return d.ID() == 0
}

// Refs returns the reference data the draft validates against.
func (d *Draft) Refs() catalog.ReferenceData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs.Clone()
}

// Len returns the number of variants.
func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.variants)
}

// KeyAt returns the key of the variant at index i.
func (d *Draft) KeyAt(i int) (Key, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.variants) {
		return "", &IndexError{What: "variant", Index: i, Len: len(d.variants)}
	}
	return d.variants[i].Key, nil
}

// IndexOf returns the current position of the variant with the given key.
func (d *Draft) IndexOf(key Key) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.indexOf(key)
}

func (d *Draft) indexOf(key Key) (int, error) {
	for i := range d.variants {
		if d.variants[i].Key == key {
			return i, nil
		}
	}
	return -1, ErrVariantNotFound
}

// Variants returns deep copies of the draft variants in order.
func (d *Draft) Variants() []Variant {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Variant, len(d.variants))
	for i := range d.variants {
		out[i] = Variant{Key: d.variants[i].Key, Variant: d.variants[i].Clone()}
	}
	return out
}

// Snapshot returns a deep copy of the full product graph.
func (d *Draft) Snapshot() catalog.Product {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

func (d *Draft) snapshot() catalog.Product {
	out := d.product
	out.Variants = make([]catalog.Variant, len(d.variants))
	for i := range d.variants {
		out.Variants[i] = d.variants[i].Clone()
	}
	return out
}

// AddVariant appends a variant with default values and returns its key.
func (d *Draft) AddVariant() (Key, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return "", ErrDiscarded
	}

	v := d.blankVariant()
	d.variants = append(d.variants, v)
	return v.Key, nil
}

// RemoveVariant removes the variant and releases the previews of its pending
// images. Uploads not yet started for that variant are dropped.
func (d *Draft) RemoveVariant(key Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return ErrDiscarded
	}

	i, err := d.indexOf(key)
	if err != nil {
		return err
	}
	d.previews.ReleaseOwner(string(key))
	d.variants = append(d.variants[:i:i], d.variants[i+1:]...)
	return nil
}

// Discard releases every pending preview. The draft rejects mutations
// afterwards. Calling Discard more than once is a no-op.
func (d *Draft) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return
	}
	for i := range d.variants {
		d.releaseImages(d.variants[i].Images)
	}
	d.discarded = true
}

// Discarded reports whether Discard was called.
func (d *Draft) Discarded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discarded
}

func (d *Draft) releaseImages(images []catalog.Image) {
	for _, img := range images {
		if img.Pending() {
			d.previews.Release(img.Handle)
		}
	}
}

// variant returns the variant for key; d.mu must be held.
func (d *Draft) variant(key Key) (*Variant, error) {
	if d.discarded {
		return nil, ErrDiscarded
	}
	i, err := d.indexOf(key)
	if err != nil {
		return nil, err
	}
	return &d.variants[i], nil
}
