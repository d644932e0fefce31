// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces the crawl uses to report its advance. It batches events
// on a background goroutine and fans them out to pluggable sinks such as
// Prometheus metrics or structured logging, and it owns the checkpoint-backed
// target tracker that makes interrupted runs resumable.
package progress
