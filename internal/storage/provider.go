// Package storage defines the interfaces for a blob storage provider.
// This abstraction keeps the scraper independent of a specific backend
// (Google Cloud Storage, the local filesystem, or nothing at all) for the
// artifacts it saves: debug page dumps and output backups.
package storage

import (
	"context"
)

// Provider defines the common interface for a blob storage provider.
// It abstracts the operation of saving data.
type Provider interface {
	// Save uploads data to a specified object path/key in the blob store.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider is a storage provider that performs no operations. It is
// used when artifact storage is disabled, so the crawl can run without any
// bucket or directory configured.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
