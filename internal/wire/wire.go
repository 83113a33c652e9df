// Package wire encodes and decodes the JSON bodies of the catalog REST
// surface.
//
// Ids, prices and stock are always written as JSON numbers. Readers accept
// numbers and numeric strings, since older backends send ids quoted.
package wire

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
)

// EncodeRefs writes a JSON array of {id, name}.
func EncodeRefs(refs []catalog.Ref) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, r := range refs {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(r.ID)
		e.FieldStart("name")
		e.Str(r.Name)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

// DecodeRefs reads a JSON array of {id, name}.
func DecodeRefs(data []byte) ([]catalog.Ref, error) {
	refs := []catalog.Ref{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var r catalog.Ref
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				r.ID, err = decodeInt64(d)
			case "name":
				r.Name, err = decodeString(d)
			default:
				err = d.Skip()
			}
			return fieldError(key, err)
		}); err != nil {
			return err
		}
		refs = append(refs, r)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode refs")
	}
	return refs, nil
}

// EncodeProducts writes a JSON array of products with their variants.
func EncodeProducts(products []catalog.Product) []byte {
	var e jx.Encoder
	e.ArrStart()
	for i := range products {
		encodeProduct(&e, &products[i])
	}
	e.ArrEnd()
	return e.Bytes()
}

// EncodeProduct writes one product with nested variants and images.
func EncodeProduct(p *catalog.Product) []byte {
	var e jx.Encoder
	encodeProduct(&e, p)
	return e.Bytes()
}

func encodeProduct(e *jx.Encoder, p *catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	encodeProductFields(e, p.Fields())
	e.FieldStart("variants")
	e.ArrStart()
	for i := range p.Variants {
		v := &p.Variants[i]
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(v.ID)
		encodeVariantFields(e, v.Fields())
		e.FieldStart("images")
		e.ArrStart()
		for _, img := range v.Images {
			if img.Pending() {
				continue
			}
			e.ObjStart()
			e.FieldStart("url")
			e.Str(img.URL)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// DecodeProducts reads a JSON array of products. Summaries without a
// variants field decode with nil Variants.
func DecodeProducts(data []byte) ([]catalog.Product, error) {
	products := []catalog.Product{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p catalog.Product
		if err := decodeProduct(d, &p); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

// DecodeProduct reads one product with nested variants and images.
func DecodeProduct(data []byte) (*catalog.Product, error) {
	var p catalog.Product
	if err := decodeProduct(jx.DecodeBytes(data), &p); err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	return &p, nil
}

func decodeProduct(d *jx.Decoder, p *catalog.Product) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeInt64(d)
		case "name":
			p.Name, err = decodeString(d)
		case "description":
			p.Description, err = decodeString(d)
		case "categoryId":
			p.CategoryID, err = decodeInt64(d)
		case "brandId":
			p.BrandID, err = decodeInt64(d)
		case "variants":
			p.Variants = []catalog.Variant{}
			err = d.Arr(func(d *jx.Decoder) error {
				var v catalog.Variant
				if err := decodeVariant(d, &v); err != nil {
					return err
				}
				p.Variants = append(p.Variants, v)
				return nil
			})
		default:
			err = d.Skip()
		}
		return fieldError(key, err)
	})
}

func decodeVariant(d *jx.Decoder, v *catalog.Variant) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			id, err := decodeInt64(d)
			v.ID = id
			return fieldError(key, err)
		case "images":
			return fieldError(key, decodeImages(d, v))
		default:
			f, err := decodeVariantField(d, key, v.Fields())
			if err != nil {
				return err
			}
			v.ColorID, v.Size, v.Price, v.Stock, v.SKU = f.ColorID, f.Size, f.Price, f.Stock, f.SKU
			return nil
		}
	})
}

// decodeImages accepts both [{"url": "..."}] and ["..."].
func decodeImages(d *jx.Decoder, v *catalog.Variant) error {
	v.Images = []catalog.Image{}
	return d.Arr(func(d *jx.Decoder) error {
		var url string
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			url = s
		case jx.Object:
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				if key != "url" {
					return d.Skip()
				}
				s, err := decodeString(d)
				url = s
				return err
			}); err != nil {
				return err
			}
		default:
			return errors.Errorf("unexpected image type %s", d.Next())
		}
		v.Images = append(v.Images, catalog.PersistedImage(url))
		return nil
	})
}

// EncodeProductFields writes {name, description, categoryId, brandId}.
func EncodeProductFields(f catalog.ProductFields) []byte {
	var e jx.Encoder
	e.ObjStart()
	encodeProductFields(&e, f)
	e.ObjEnd()
	return e.Bytes()
}

func encodeProductFields(e *jx.Encoder, f catalog.ProductFields) {
	e.FieldStart("name")
	e.Str(f.Name)
	e.FieldStart("description")
	e.Str(f.Description)
	e.FieldStart("categoryId")
	e.Int64(f.CategoryID)
	e.FieldStart("brandId")
	e.Int64(f.BrandID)
}

// DecodeProductFields reads {name, description, categoryId, brandId}.
func DecodeProductFields(data []byte) (catalog.ProductFields, error) {
	var f catalog.ProductFields
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			f.Name, err = decodeString(d)
		case "description":
			f.Description, err = decodeString(d)
		case "categoryId":
			f.CategoryID, err = decodeInt64(d)
		case "brandId":
			f.BrandID, err = decodeInt64(d)
		default:
			err = d.Skip()
		}
		return fieldError(key, err)
	})
	if err != nil {
		return f, errors.Wrap(err, "decode product fields")
	}
	return f, nil
}

// EncodeVariantFields writes {colorId, size, price, stock, sku}.
func EncodeVariantFields(f catalog.VariantFields) []byte {
	var e jx.Encoder
	e.ObjStart()
	encodeVariantFields(&e, f)
	e.ObjEnd()
	return e.Bytes()
}

func encodeVariantFields(e *jx.Encoder, f catalog.VariantFields) {
	e.FieldStart("colorId")
	e.Int64(f.ColorID)
	e.FieldStart("size")
	e.Str(f.Size)
	e.FieldStart("price")
	e.Num(jx.Num(f.Price.String()))
	e.FieldStart("stock")
	e.Int(f.Stock)
	e.FieldStart("sku")
	e.Str(f.SKU)
}

// DecodeVariantFields reads {colorId, size, price, stock, sku}.
func DecodeVariantFields(data []byte) (catalog.VariantFields, error) {
	var f catalog.VariantFields
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		f, err = decodeVariantField(d, key, f)
		return err
	})
	if err != nil {
		return f, errors.Wrap(err, "decode variant fields")
	}
	return f, nil
}

func decodeVariantField(d *jx.Decoder, key string, f catalog.VariantFields) (catalog.VariantFields, error) {
	var err error
	switch key {
	case "colorId":
		f.ColorID, err = decodeInt64(d)
	case "size":
		f.Size, err = decodeString(d)
	case "price":
		f.Price, err = decodeDecimal(d)
	case "stock":
		var n int64
		n, err = decodeInt64(d)
		f.Stock = int(n)
	case "sku":
		f.SKU, err = decodeString(d)
	default:
		err = d.Skip()
	}
	return f, fieldError(key, err)
}

// fieldError names the object key a decode failure happened under. It
// returns nil for a nil err.
func fieldError(key string, err error) error {
	if err != nil {
		return errors.Wrapf(err, "field %q", key)
	}
	return nil
}

// EncodeMessage writes a success envelope {message}.
func EncodeMessage(msg string) []byte {
	return encodeEnvelope("message", msg)
}

// EncodeError writes a failure envelope {error}.
func EncodeError(msg string) []byte {
	return encodeEnvelope("error", msg)
}

// EncodeUpload writes the upload response {message, url}.
func EncodeUpload(msg, url string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("message")
	e.Str(msg)
	e.FieldStart("url")
	e.Str(url)
	e.ObjEnd()
	return e.Bytes()
}

func encodeEnvelope(key, msg string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart(key)
	e.Str(msg)
	e.ObjEnd()
	return e.Bytes()
}

// Envelope is the loose response object returned by write endpoints.
type Envelope struct {
	Message string
	Error   string
	URL     string
}

// DecodeEnvelope reads {message}, {error} and an optional url. Bodies that
// are not JSON objects yield an empty envelope.
func DecodeEnvelope(data []byte) Envelope {
	var env Envelope
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return env
	}
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "message":
			env.Message, err = decodeString(d)
		case "error":
			env.Error, err = decodeString(d)
		case "url", "imageUrl":
			env.URL, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return env
}

func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		return string(n), err
	default:
		return d.Str()
	}
}

func decodeInt64(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil || s == "" {
			return 0, err
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return d.Int64()
	}
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		s = v
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		s = string(n)
	}
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
