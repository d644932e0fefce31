package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a page. Implementations own rate limiting, retries, and
// the error taxonomy; a returned error is always terminal for that fetch.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RecordSink persists one accepted record at a time, in acceptance order.
type RecordSink interface {
	Append(ctx context.Context, record BusinessRecord) error
}

// BlobStore saves raw artifacts (debug dumps, backups) under a name.
type BlobStore interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// Publisher pushes run events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// TargetQueue provides enqueue/dequeue semantics for the target work list.
type TargetQueue interface {
	Enqueue(ctx context.Context, item WorkItem) error
	Dequeue(ctx context.Context) (WorkItem, error)
}

// TargetCrawler runs the full page pipeline for one target.
type TargetCrawler interface {
	CrawlTarget(ctx context.Context, target Target) TargetResult
}

// RenderDetector decides whether a plain fetch warrants a headless re-fetch.
type RenderDetector interface {
	ShouldRender(probe FetchResponse) bool
}

// Hasher computes digests used for debug-dump filenames.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a duration or until the context is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
