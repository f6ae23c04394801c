package ports

import (
	"context"
	"net/url"
)

// IndexClient is the transport to the scout-server HTTP API. Every call is a
// single request with the session id attached as a header; there are no
// retries. Implementations translate non-2xx responses and connection
// failures into the domain error taxonomy.
type IndexClient interface {
	Get(ctx context.Context, path string, query url.Values) (map[string]any, error)
	Post(ctx context.Context, path string, body any) (map[string]any, error)
	Delete(ctx context.Context, path string) (map[string]any, error)
}
