package draft

import (
	"crypto/sha256"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

// AddImages turns every file into a local preview owned by the variant and
// appends it as a pending image. Files with identical content in the same
// batch are added once. Either all previews are created or none are.
func (d *Draft) AddImages(key Key, files []catalog.File) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.variant(key)
	if err != nil {
		return 0, err
	}

	seen := make(map[[sha256.Size]byte]struct{}, len(files))
	added := make([]catalog.Image, 0, len(files))
	for _, f := range files {
		sum := sha256.Sum256(f.Data)
		if _, dup := seen[sum]; dup {
			continue
		}
		seen[sum] = struct{}{}

		// Previews are owned by the variant key captured here, not by
		// whatever color the variant has later.
		handle, err := d.previews.Create(string(key), f)
		if err != nil {
			d.releaseImages(added)
			return 0, errors.Wrapf(err, "create preview for %q", f.Name)
		}
		added = append(added, catalog.PendingImage(handle))
	}

	v.Images = append(v.Images, added...)
	return len(added), nil
}

// RemoveImage removes one image from the variant and releases its preview
// when it was still pending.
func (d *Draft) RemoveImage(key Key, index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.variant(key)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(v.Images) {
		return &IndexError{What: "image", Index: index, Len: len(v.Images)}
	}

	d.releaseImages(v.Images[index : index+1])
	v.Images = append(v.Images[:index:index], v.Images[index+1:]...)
	return nil
}

// OpenPending resolves the content of a pending image for upload. It fails
// with ErrVariantNotFound or ErrImageGone when the operator removed the
// variant or image in the meantime.
func (d *Draft) OpenPending(key Key, handle string) (catalog.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.variant(key)
	if err != nil {
		return catalog.File{}, err
	}
	if findPending(v.Images, handle) < 0 {
		return catalog.File{}, ErrImageGone
	}

	f, err := d.previews.Open(handle)
	if err != nil {
		return catalog.File{}, &catalog.ResourceError{Handle: handle, Err: err}
	}
	return f, nil
}

// MarkUploaded records that a pending image is now durable and releases its
// preview. url may be empty when the backend did not report one.
func (d *Draft) MarkUploaded(key Key, handle, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.variant(key)
	if err != nil {
		return err
	}
	i := findPending(v.Images, handle)
	if i < 0 {
		return ErrImageGone
	}

	d.previews.Release(handle)
	v.Images[i] = catalog.PersistedImage(url)
	return nil
}

// NewProduct builds the create request from the current graph, resolving
// every pending image to its content. It fails on the first preview that
// cannot be opened.
func (d *Draft) NewProduct() (catalog.NewProduct, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return catalog.NewProduct{}, ErrDiscarded
	}

	np := catalog.NewProduct{
		Fields:   d.product.Fields(),
		Variants: make([]catalog.NewVariant, len(d.variants)),
	}
	for i := range d.variants {
		v := &d.variants[i]
		np.Variants[i].Fields = v.Fields()
		for _, img := range v.Images {
			if !img.Pending() {
				continue
			}
			f, err := d.previews.Open(img.Handle)
			if err != nil {
				return catalog.NewProduct{}, &catalog.ResourceError{Handle: img.Handle, Err: err}
			}
			np.Variants[i].Images = append(np.Variants[i].Images, f)
		}
	}
	return np, nil
}

func findPending(images []catalog.Image, handle string) int {
	for i, img := range images {
		if img.Pending() && img.Handle == handle {
			return i
		}
	}
	return -1
}
