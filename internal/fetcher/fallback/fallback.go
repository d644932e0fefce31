// Package fallback chains the plain HTTP fetcher with a browser renderer.
package fallback

import (
	"context"

	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
)

// Fetcher fetches with the primary client first and promotes the request to
// the renderer when the detector judges the response to be an unhydrated
// shell. A failed render never fails the fetch; the probe response stands.
type Fetcher struct {
	primary  crawler.Fetcher
	renderer crawler.Fetcher
	detector crawler.RenderDetector
	logger   *zap.Logger
}

// New creates a promoting fetcher. renderer and detector may be nil, in
// which case every fetch is served by the primary alone.
func New(primary crawler.Fetcher, renderer crawler.Fetcher, detector crawler.RenderDetector, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		primary:  primary,
		renderer: renderer,
		detector: detector,
		logger:   logger.Named("fallback"),
	}
}

// Fetch implements crawler.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	resp, err := f.primary.Fetch(ctx, request)
	if err != nil {
		return resp, err
	}
	if f.renderer == nil || f.detector == nil || !f.detector.ShouldRender(resp) {
		return resp, nil
	}

	rendered, renderErr := f.renderer.Fetch(ctx, request)
	if renderErr != nil {
		f.logger.Warn("headless promotion failed",
			zap.String("url", request.URL),
			zap.Error(renderErr),
		)
		return resp, nil
	}

	f.logger.Debug("promoted to headless render",
		zap.String("url", request.URL),
		zap.Int("probe_bytes", len(resp.Body)),
		zap.Int("rendered_bytes", len(rendered.Body)),
	)
	rendered.Rendered = true
	rendered.Attempts = resp.Attempts + 1
	return rendered, nil
}
