// Package api exposes the read-only HTTP interface of the scraper: health
// probes, Prometheus metrics, and live crawl progress. The crawl itself is
// driven by the CLI, never over HTTP.
package api
