// Package objectstore reads and writes whole objects in a remote bucket.
package objectstore

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/customer-pipeline/internal/config"
)

// ErrNotFound is returned when the bucket or key does not exist.
var ErrNotFound = eris.New("objectstore: object not found")

// Store fetches and uploads fully buffered objects. Backends wrap retryable
// failures in resilience.TransientError; every other error is permanent.
type Store interface {
	// Get returns the full object body.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put uploads body to key, overwriting any existing object.
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (Store, error) {
	switch cfg.Provider {
	case "", "s3":
		return NewS3(cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	default:
		return nil, eris.Errorf("objectstore: unknown provider %q", cfg.Provider)
	}
}
