package headless

import (
	"context"
	"errors"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

// Noop implements crawler.Fetcher but always returns an error, for builds
// and configurations where browser rendering is disabled.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{}, errors.New("headless fetcher not configured")
}
