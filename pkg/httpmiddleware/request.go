package httpmiddleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader is read from requests and echoed on responses.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// Request identifies one inbound call.
type Request struct {
	ID     string
	Method string
	Path   string
}

type requestKey struct{}

// RequestFromContext returns the Request stored by RequestID.
func RequestFromContext(ctx context.Context) (Request, bool) {
	req, ok := ctx.Value(requestKey{}).(Request)
	return req, ok
}

// RequestIDFromContext returns the request id, or "" outside RequestID.
func RequestIDFromContext(ctx context.Context) string {
	req, _ := RequestFromContext(ctx)
	return req.ID
}

// RequestID tags every request with an id. A client supplied X-Request-ID
// is kept when it is 1 to 128 printable ASCII bytes; otherwise a UUID is
// generated. The id is echoed on the response and added to the request
// logger as request_id.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := Request{
				ID:     clientRequestID(r.Header.Get(RequestIDHeader)),
				Method: r.Method,
				Path:   r.URL.Path,
			}
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, req.ID)

			ctx := context.WithValue(r.Context(), requestKey{}, req)
			ctx = zctx.With(ctx, zap.String("request_id", req.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientRequestID(id string) string {
	if id == "" || len(id) > maxRequestIDLen {
		return ""
	}
	if strings.IndexFunc(id, func(c rune) bool { return c < 0x20 || c > 0x7e }) >= 0 {
		return ""
	}
	return id
}

// Recovery turns a handler panic into a 500 carrying the catalog error
// envelope, plus the request id when RequestID ran first.
// http.ErrAbortHandler is passed through to net/http.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				req, _ := RequestFromContext(r.Context())
				zctx.From(r.Context()).Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)

				h := w.Header()
				h.Set("Connection", "close")
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write(panicBody(req.ID))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func panicBody(requestID string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str("internal server error")
	if requestID != "" {
		e.FieldStart("requestId")
		e.Str(requestID)
	}
	e.ObjEnd()
	return e.Bytes()
}
