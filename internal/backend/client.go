// Package backend implements catalog.Backend against the catalog REST API.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
	"github.com/xenking/catalog-editor/internal/wire"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Options configures a Client.
type Options struct {
	// BaseURL is the backend root, e.g. http://localhost:8080.
	BaseURL string
	// Timeout bounds a single request. Zero leaves the transport default
	// in place, which has no overall limit.
	Timeout time.Duration
	// Transport is the underlying round tripper; http.DefaultTransport if nil.
	Transport http.RoundTripper
	// TracerProvider for client spans; the global provider if nil.
	TracerProvider trace.TracerProvider
	Logger         *zap.Logger
}

// Client talks to the catalog REST API. It never retries.
type Client struct {
	http *resty.Client
	lg   *zap.Logger
}

var _ catalog.Backend = (*Client)(nil)

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTransport(otelhttp.NewTransport(base, otelOpts...)).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get(RequestIDHeader) == "" {
			r.SetHeader(RequestIDHeader, uuid.NewString())
		}
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		lg.Debug("Backend response",
			zap.String("method", resp.Request.Method),
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("took", resp.Time()),
			zap.String("request_id", resp.Request.Header.Get(RequestIDHeader)),
		)
		return nil
	})

	return &Client{http: rc, lg: lg}, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]catalog.Ref, error) {
	return c.listRefs(ctx, "/categories")
}

func (c *Client) ListBrands(ctx context.Context) ([]catalog.Ref, error) {
	return c.listRefs(ctx, "/brands")
}

func (c *Client) ListColors(ctx context.Context) ([]catalog.Ref, error) {
	return c.listRefs(ctx, "/colors")
}

func (c *Client) listRefs(ctx context.Context, path string) ([]catalog.Ref, error) {
	resp, err := c.do(ctx, "list "+strings.TrimPrefix(path, "/"), c.http.R(), http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	refs, err := wire.DecodeRefs(resp.Body())
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	return refs, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	resp, err := c.do(ctx, "list products", c.http.R(), http.MethodGet, "/products")
	if err != nil {
		return nil, err
	}
	products, err := wire.DecodeProducts(resp.Body())
	if err != nil {
		return nil, errors.Wrap(err, "GET /products")
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	path := "/products/" + strconv.FormatInt(id, 10)
	resp, err := c.do(ctx, "get product", c.http.R(), http.MethodGet, path)
	if err != nil {
		var rej *catalog.RejectedError
		if errors.As(err, &rej) && rej.Status == http.StatusNotFound {
			return nil, errors.Wrapf(catalog.ErrNotFound, "product %d", id)
		}
		return nil, err
	}
	p, err := wire.DecodeProduct(resp.Body())
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	return p, nil
}

// CreateProduct posts the multipart create form: scalar fields as decimal
// strings, variants[i] as a JSON document and variantImages[i] once per file.
func (c *Client) CreateProduct(ctx context.Context, p catalog.NewProduct) (string, error) {
	form := map[string]string{
		"name":        p.Fields.Name,
		"description": p.Fields.Description,
		"categoryId":  strconv.FormatInt(p.Fields.CategoryID, 10),
		"brandId":     strconv.FormatInt(p.Fields.BrandID, 10),
	}
	var files []*resty.MultipartField
	for i, v := range p.Variants {
		form[fmt.Sprintf("variants[%d]", i)] = string(wire.EncodeVariantFields(v.Fields))
		for _, f := range v.Images {
			files = append(files, &resty.MultipartField{
				Param:       fmt.Sprintf("variantImages[%d]", i),
				FileName:    f.Name,
				ContentType: f.ContentType,
				Reader:      f.Open(),
			})
		}
	}

	req := c.http.R().SetMultipartFormData(form)
	if len(files) > 0 {
		req.SetMultipartFields(files...)
	}
	resp, err := c.do(ctx, "create product", req, http.MethodPost, "/add-product")
	if err != nil {
		return "", err
	}
	return wire.DecodeEnvelope(resp.Body()).Message, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, f catalog.ProductFields) error {
	req := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(wire.EncodeProductFields(f))
	_, err := c.do(ctx, "update product", req, http.MethodPut, "/products/"+strconv.FormatInt(id, 10))
	return err
}

func (c *Client) UpdateVariant(ctx context.Context, id int64, f catalog.VariantFields) error {
	req := c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(wire.EncodeVariantFields(f))
	_, err := c.do(ctx, "update variant", req, http.MethodPut, "/variants/"+strconv.FormatInt(id, 10))
	return err
}

func (c *Client) UploadVariantImage(ctx context.Context, variantID int64, f catalog.File) (string, error) {
	req := c.http.R().
		SetMultipartFormData(map[string]string{
			"variantId": strconv.FormatInt(variantID, 10),
		}).
		SetMultipartField("image", f.Name, f.ContentType, f.Open())
	resp, err := c.do(ctx, "upload variant image", req, http.MethodPost, "/variant-images")
	if err != nil {
		return "", err
	}
	return wire.DecodeEnvelope(resp.Body()).URL, nil
}

// do executes the request and maps failures: no response is a
// TransportError, a non-2xx response is a RejectedError.
func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return nil, &catalog.TransportError{Op: op, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &catalog.RejectedError{
			Op:      op,
			Status:  resp.StatusCode(),
			Message: rejectMessage(resp),
		}
	}
	return resp, nil
}

func rejectMessage(resp *resty.Response) string {
	env := wire.DecodeEnvelope(resp.Body())
	switch {
	case env.Error != "":
		return env.Error
	case env.Message != "":
		return env.Message
	}
	msg := strings.TrimSpace(resp.String())
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
