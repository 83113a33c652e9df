package draft

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// Report the wire name so paths match Set ("categoryId", not "CategoryID").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks everything that must hold before any backend call: the
// product has a name, a known category and a known brand, and every variant
// has a loaded color and non-negative price and stock. For an existing
// product, variants without a server id are rejected since the backend has
// no way to create them outside of a product create.
//
// The returned error is a *catalog.ValidationError naming every failed field.
func (d *Draft) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return ErrDiscarded
	}

	verr := new(catalog.ValidationError)

	pf := d.product.Fields()
	if err := collect(verr, "", validate.Struct(&pf)); err != nil {
		return err
	}
	if pf.CategoryID != 0 && !catalog.Has(d.refs.Categories, pf.CategoryID) {
		verr.Add("categoryId", "unknown category")
	}
	if pf.BrandID != 0 && !catalog.Has(d.refs.Brands, pf.BrandID) {
		verr.Add("brandId", "unknown brand")
	}

	isNew := d.product.ID == 0
	for i := range d.variants {
		v := &d.variants[i]
		prefix := "variants." + strconv.Itoa(i) + "."

		vf := v.Fields()
		if err := collect(verr, prefix, validate.Struct(&vf)); err != nil {
			return err
		}
		if vf.ColorID != 0 && !catalog.Has(d.refs.Colors, vf.ColorID) {
			verr.Add(prefix+"colorId", "unknown color")
		}
		if vf.Price.IsNegative() {
			verr.Add(prefix+"price", "must not be negative")
		}
		if !isNew && v.ID == 0 {
			verr.Add(prefix+"id", "variant has no server id; new variants can only be sent with a new product")
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// collect moves validator failures into verr. Any other error is returned.
func collect(verr *catalog.ValidationError, prefix string, err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errors.Wrap(err, "validate")
	}
	for _, fe := range ve {
		verr.Add(prefix+fe.Field(), reason(fe))
	}
	return nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "required"
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
