package objectstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/customer-pipeline/internal/config"
	"github.com/sells-group/customer-pipeline/internal/resilience"
)

// GCS is a Store backed by Google Cloud Storage using Application Default Credentials.
type GCS struct {
	client *storage.Client
}

// NewGCS creates a GCS store. cfg.Endpoint overrides the storage API host.
// Client-side retries are turned off so each Get or Put is one request and the
// caller's retry policy decides whether to try again.
func NewGCS(ctx context.Context, cfg config.ObjectStoreConfig, opts ...option.ClientOption) (*GCS, error) {
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "objectstore: create gcs client")
	}
	client.SetRetry(storage.WithPolicy(storage.RetryNever))
	return &GCS{client: client}, nil
}

// Get downloads gs://bucket/key into memory.
func (g *GCS) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, eris.Wrapf(classifyGCS(err), "objectstore: get gs://%s/%s", bucket, key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(resilience.NewTransientError(err, 0), "objectstore: read gs://%s/%s", bucket, key)
	}
	return data, nil
}

// Put uploads body to gs://bucket/key. The object is committed on Close.
func (g *GCS) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return eris.Wrapf(classifyGCS(err), "objectstore: write gs://%s/%s", bucket, key)
	}
	if err := w.Close(); err != nil {
		return eris.Wrapf(classifyGCS(err), "objectstore: finalize gs://%s/%s", bucket, key)
	}
	return nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func classifyGCS(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return eris.Wrap(ErrNotFound, err.Error())
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if resilience.IsTransientStatus(apiErr.Code) {
			return resilience.NewTransientError(err, apiErr.Code)
		}
		return err
	}

	if resilience.IsTransient(err) {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
