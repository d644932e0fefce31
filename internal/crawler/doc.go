// Package crawler implements the core of the BBB listings scraper: search URL
// construction, embedded-state extraction, record normalization and
// deduplication, detail enrichment, and the per-target orchestrator. The crawl
// is single-threaded by contract; at most one request is in flight, behind the
// shared rate-limited Fetcher.
package crawler
