package draft

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

// Set updates one scalar field addressed by path. Product paths are "name",
// "description", "categoryId" and "brandId"; variant paths are
// "variants.<index>.<field>" with field one of colorId, size, price, stock,
// sku. A rejected call leaves the draft untouched.
func (d *Draft) Set(path, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return ErrDiscarded
	}

	parts := strings.Split(path, ".")
	switch {
	case len(parts) == 1:
		return d.setProductField(path, value)
	case len(parts) == 3 && parts[0] == "variants":
		i, err := strconv.Atoi(parts[1])
		if err != nil {
			return &FieldError{Path: path, Value: value, Reason: "variant index must be a number"}
		}
		if i < 0 || i >= len(d.variants) {
			return &IndexError{What: "variant", Index: i, Len: len(d.variants)}
		}
		return d.setVariantField(&d.variants[i], path, parts[2], value)
	default:
		return &FieldError{Path: path, Value: value, Reason: "unknown field"}
	}
}

func (d *Draft) setProductField(path, value string) error {
	switch path {
	case "name":
		d.product.Name = value
		return nil
	case "description":
		d.product.Description = value
		return nil
	case "categoryId":
		id, err := parseID(path, value)
		if err != nil {
			return err
		}
		return d.setCategory(id)
	case "brandId":
		id, err := parseID(path, value)
		if err != nil {
			return err
		}
		return d.setBrand(id)
	default:
		return &FieldError{Path: path, Value: value, Reason: "unknown field"}
	}
}

func (d *Draft) setVariantField(v *Variant, path, field, value string) error {
	switch field {
	case "colorId":
		id, err := parseID(path, value)
		if err != nil {
			return err
		}
		return d.setColor(v, id)
	case "size":
		v.Size = value
		return nil
	case "price":
		price, err := decimal.NewFromString(value)
		if err != nil {
			return &FieldError{Path: path, Value: value, Reason: "not a decimal number"}
		}
		return setPrice(v, price)
	case "stock":
		stock, err := strconv.Atoi(value)
		if err != nil {
			return &FieldError{Path: path, Value: value, Reason: "not an integer"}
		}
		return setStock(v, stock)
	case "sku":
		v.SKU = value
		return nil
	default:
		return &FieldError{Path: path, Value: value, Reason: "unknown field"}
	}
}

func parseID(path, value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &FieldError{Path: path, Value: value, Reason: "not an integer id"}
	}
	return id, nil
}

// SetName sets the product name.
func (d *Draft) SetName(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return ErrDiscarded
	}
	d.product.Name = name
	return nil
}

// SetDescription sets the product description.
func (d *Draft) SetDescription(description string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return ErrDiscarded
	}
	d.product.Description = description
	return nil
}

// SetCategory selects a category from the loaded reference list.
func (d *Draft) SetCategory(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return ErrDiscarded
	}
	return d.setCategory(id)
}

func (d *Draft) setCategory(id int64) error {
	if !catalog.Has(d.refs.Categories, id) {
		return &FieldError{Path: "categoryId", Value: strconv.FormatInt(id, 10), Reason: "unknown category"}
	}
	d.product.CategoryID = id
	return nil
}

// SetBrand selects a brand from the loaded reference list.
func (d *Draft) SetBrand(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.discarded {
		return ErrDiscarded
	}
	return d.setBrand(id)
}

func (d *Draft) setBrand(id int64) error {
	if !catalog.Has(d.refs.Brands, id) {
		return &FieldError{Path: "brandId", Value: strconv.FormatInt(id, 10), Reason: "unknown brand"}
	}
	d.product.BrandID = id
	return nil
}

// SetVariantColor selects a loaded color for the variant.
func (d *Draft) SetVariantColor(key Key, id int64) error {
	return d.updateVariant(key, func(v *Variant) error { return d.setColor(v, id) })
}

func (d *Draft) setColor(v *Variant, id int64) error {
	if !catalog.Has(d.refs.Colors, id) {
		return &FieldError{Path: "colorId", Value: strconv.FormatInt(id, 10), Reason: "unknown color"}
	}
	v.ColorID = id
	return nil
}

// SetVariantSize sets the variant size label.
func (d *Draft) SetVariantSize(key Key, size string) error {
	return d.updateVariant(key, func(v *Variant) error {
		v.Size = size
		return nil
	})
}

// SetVariantPrice sets a non-negative price.
func (d *Draft) SetVariantPrice(key Key, price decimal.Decimal) error {
	return d.updateVariant(key, func(v *Variant) error { return setPrice(v, price) })
}

func setPrice(v *Variant, price decimal.Decimal) error {
	if price.IsNegative() {
		return &FieldError{Path: "price", Value: price.String(), Reason: "must not be negative"}
	}
	v.Price = price
	return nil
}

// SetVariantStock sets a non-negative stock count.
func (d *Draft) SetVariantStock(key Key, stock int) error {
	return d.updateVariant(key, func(v *Variant) error { return setStock(v, stock) })
}

func setStock(v *Variant, stock int) error {
	if stock < 0 {
		return &FieldError{Path: "stock", Value: strconv.Itoa(stock), Reason: "must not be negative"}
	}
	v.Stock = stock
	return nil
}

// SetVariantSKU sets the variant SKU.
func (d *Draft) SetVariantSKU(key Key, sku string) error {
	return d.updateVariant(key, func(v *Variant) error {
		v.SKU = sku
		return nil
	})
}

func (d *Draft) updateVariant(key Key, fn func(v *Variant) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.variant(key)
	if err != nil {
		return err
	}
	return fn(v)
}
