package target

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestClient stands in for a per-request resource such as a DB client.
type RequestClient struct {
	RequestID string
	CreatedAt time.Time
}

func newRequestClient() *RequestClient {
	return &RequestClient{
		RequestID: uuid.New().String(),
		CreatedAt: time.Now(),
	}
}

type clientKey struct{}

// WithClient returns a child context carrying a fresh RequestClient.
func WithClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, clientKey{}, newRequestClient())
}

// ClientFrom returns the RequestClient bound to ctx. Every call made with the
// same request context sees the same client; ok is false outside a scope.
func ClientFrom(ctx context.Context) (*RequestClient, bool) {
	c, ok := ctx.Value(clientKey{}).(*RequestClient)
	return c, ok
}

// scoped binds a RequestClient to each request before calling next.
func scoped(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(WithClient(r.Context())))
	}
}
