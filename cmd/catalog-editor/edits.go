package main

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
	"github.com/xenking/catalog-editor/internal/domain/draft"
)

// edits is the set of draft changes requested on the command line.
type edits struct {
	sets          []assignment
	addVariants   int
	removeVariant []int
	images        []imageArg
	removeImages  []imageRef
}

type assignment struct{ path, value string }

// imageArg attaches the file at path to variant index.
type imageArg struct {
	variant int
	path    string
}

// imageRef addresses image index of variant index.
type imageRef struct {
	variant, image int
}

func parseAssignment(s string) (assignment, error) {
	path, value, ok := strings.Cut(s, "=")
	if !ok || path == "" {
		return assignment{}, errors.Errorf("invalid --set %q: want path=value", s)
	}
	return assignment{path: path, value: value}, nil
}

func parseImageArg(s string) (imageArg, error) {
	idx, path, ok := strings.Cut(s, "=")
	i, err := strconv.Atoi(idx)
	if !ok || err != nil || i < 0 || path == "" {
		return imageArg{}, errors.Errorf("invalid --image %q: want variant=path", s)
	}
	return imageArg{variant: i, path: path}, nil
}

func parseImageRef(s string) (imageRef, error) {
	a, b, ok := strings.Cut(s, ":")
	v, errV := strconv.Atoi(a)
	i, errI := strconv.Atoi(b)
	if !ok || errV != nil || errI != nil || v < 0 || i < 0 {
		return imageRef{}, errors.Errorf("invalid --remove-image %q: want variant:image", s)
	}
	return imageRef{variant: v, image: i}, nil
}

func parseEdits(sets, images, removeImages []string, addVariants int, removeVariants []int) (*edits, error) {
	e := &edits{addVariants: addVariants, removeVariant: removeVariants}
	if addVariants < 0 {
		return nil, errors.New("--add-variant must not be negative")
	}
	for _, s := range sets {
		a, err := parseAssignment(s)
		if err != nil {
			return nil, err
		}
		e.sets = append(e.sets, a)
	}
	for _, s := range images {
		a, err := parseImageArg(s)
		if err != nil {
			return nil, err
		}
		e.images = append(e.images, a)
	}
	for _, s := range removeImages {
		r, err := parseImageRef(s)
		if err != nil {
			return nil, err
		}
		e.removeImages = append(e.removeImages, r)
	}
	return e, nil
}

// apply runs the edits against d. Indexes in removals refer to the draft as
// it was opened; indexes in sets and images refer to the list after removals
// and additions.
func (e *edits) apply(d *draft.Draft, readFile func(string) ([]byte, error)) error {
	// Resolve keys up front so removals do not shift each other.
	type imageRemoval struct {
		key   draft.Key
		image int
	}
	var imgRemovals []imageRemoval
	for _, r := range e.removeImages {
		key, err := d.KeyAt(r.variant)
		if err != nil {
			return errors.Wrapf(err, "remove image %d:%d", r.variant, r.image)
		}
		imgRemovals = append(imgRemovals, imageRemoval{key: key, image: r.image})
	}
	slices.SortFunc(imgRemovals, func(a, b imageRemoval) int { return b.image - a.image })
	for _, r := range imgRemovals {
		if err := d.RemoveImage(r.key, r.image); err != nil {
			return errors.Wrapf(err, "remove image %d", r.image)
		}
	}

	var keys []draft.Key
	for _, i := range e.removeVariant {
		key, err := d.KeyAt(i)
		if err != nil {
			return errors.Wrapf(err, "remove variant %d", i)
		}
		keys = append(keys, key)
	}
	for _, key := range keys {
		if err := d.RemoveVariant(key); err != nil && !errors.Is(err, draft.ErrVariantNotFound) {
			return errors.Wrap(err, "remove variant")
		}
	}

	for range e.addVariants {
		if _, err := d.AddVariant(); err != nil {
			return errors.Wrap(err, "add variant")
		}
	}

	for _, a := range e.sets {
		if err := d.Set(a.path, a.value); err != nil {
			return errors.Wrapf(err, "set %s", a.path)
		}
	}

	byVariant := make(map[int][]catalog.File)
	var order []int
	for _, img := range e.images {
		data, err := readFile(img.path)
		if err != nil {
			return errors.Wrapf(err, "read image %q", img.path)
		}
		if _, ok := byVariant[img.variant]; !ok {
			order = append(order, img.variant)
		}
		byVariant[img.variant] = append(byVariant[img.variant], catalog.File{
			Name: filepath.Base(img.path),
			Data: data,
		})
	}
	for _, i := range order {
		key, err := d.KeyAt(i)
		if err != nil {
			return errors.Wrapf(err, "add images to variant %d", i)
		}
		if _, err := d.AddImages(key, byVariant[i]); err != nil {
			return errors.Wrapf(err, "add images to variant %d", i)
		}
	}
	return nil
}

var readFile = os.ReadFile
