package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSClientFactory abstracts GCS client construction so tests can inject a
// client pointed at a fake server.
type GCSClientFactory interface {
	NewClient(ctx context.Context) (*storage.Client, error)
}

// ADCClientFactory builds clients authenticated via Google's Application
// Default Credentials.
type ADCClientFactory struct{}

// NewClient creates a GCS client using ADC.
func (ADCClientFactory) NewClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("new storage client: %w", err)
	}
	return client, nil
}

// GCSProvider implements the storage.Provider interface for Google Cloud
// Storage.
type GCSProvider struct {
	Client     *storage.Client
	BucketName string

	logger *zap.Logger
}

// NewGCSProvider initializes a GCS client via the factory and verifies that
// the bucket is reachable, so a misconfigured run fails on startup rather
// than on the first page dump hours in.
func NewGCSProvider(ctx context.Context, bucketName string, factory GCSClientFactory, logger *zap.Logger) (*GCSProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = ADCClientFactory{}
	}
	client, err := factory.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	bkt := client.Bucket(bucketName)
	if _, err := bkt.Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close GCS client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to get GCS bucket %q attributes: %w", bucketName, err)
	}

	return &GCSProvider{
		Client:     client,
		BucketName: bucketName,
		logger:     logger,
	}, nil
}

// Save uploads the given data to a specific object in the GCS bucket.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	wc := g.Client.Bucket(g.BucketName).Object(objectName).NewWriter(ctx)

	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			g.log().Warn("failed to close GCS writer after write failure", zap.Error(closeErr))
		}
		return fmt.Errorf("failed to write data to GCS object %s: %w", objectName, err)
	}

	// Close finalizes the upload; it flushes any buffered data.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for object %s: %w", objectName, err)
	}

	return nil
}

// Close releases the underlying client.
func (g *GCSProvider) Close() error {
	if g == nil || g.Client == nil {
		return nil
	}
	if err := g.Client.Close(); err != nil {
		return fmt.Errorf("close GCS client: %w", err)
	}
	return nil
}

func (g *GCSProvider) log() *zap.Logger {
	if g.logger != nil {
		return g.logger
	}
	return zap.NewNop()
}
