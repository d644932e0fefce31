// Package collyfetcher implements the rate-limited, retrying page fetcher on
// top of gocolly. One instance is shared by listing and detail fetches, so the
// global request gate covers every call site.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/metrics"
)

// DefaultUserAgent is the desktop-Chrome identity every request carries.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Defaults applied when Config fields are zero.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// Gate blocks until the next request may start. The ratelimit package
// provides the production implementation.
type Gate interface {
	Wait(ctx context.Context) error
}

// Config controls collector and retry behavior. MaxRetries is the total
// attempt budget, not the number of extra tries.
type Config struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	gate          Gate
	sleeper       crawler.Sleeper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. gate and sleeper are required; the sleeper exists so
// retry delays are observable in tests.
func New(cfg Config, gate Gate, sleeper crawler.Sleeper, logger *zap.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		gate:          gate,
		sleeper:       sleeper,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes one logical page retrieval. The gate is taken exactly once,
// before the attempt loop; transport failures retry after a fixed delay and
// 429s retry with a delay growing linearly in the attempt number. Any other
// non-2xx status is terminal on the first attempt.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return crawler.FetchResponse{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		resp, err := f.fetchOnce(ctx, request)
		if err == nil {
			resp.Attempts = attempt
			metrics.ObserveFetch("success", resp.Duration, len(resp.Body))
			return resp, nil
		}
		lastErr = err

		var delay time.Duration
		var reason string
		switch {
		case errors.Is(err, crawler.ErrRateLimited):
			delay = f.cfg.RetryDelay * time.Duration(attempt)
			reason = "rate_limited"
			metrics.ObserveFetch("rate_limited", resp.Duration, 0)
		case errors.Is(err, crawler.ErrNetwork):
			delay = f.cfg.RetryDelay
			reason = "network"
			metrics.ObserveFetch("network_error", resp.Duration, 0)
		default:
			metrics.ObserveFetch("http_error", resp.Duration, 0)
			return crawler.FetchResponse{}, err
		}
		if attempt == f.cfg.MaxRetries {
			break
		}
		metrics.ObserveRetry(reason)
		f.logger.Debug("retrying fetch",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
			zap.Duration("delay", delay))
		if err := f.sleeper.Sleep(ctx, delay); err != nil {
			return crawler.FetchResponse{}, err
		}
	}
	return crawler.FetchResponse{}, fmt.Errorf("fetch %s: attempts exhausted: %w", request.URL, lastErr)
}

// fetchOnce runs a single collector visit and classifies the outcome.
func (f *Fetcher) fetchOnce(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL); err != nil {
		return result, err
	}
	if fetchErr != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}
		return result, fmt.Errorf("fetch %s: %w (%w)", request.URL, fetchErr, crawler.ErrNetwork)
	}
	if result.StatusCode < 200 || result.StatusCode > 299 {
		return result, fmt.Errorf("fetch %s: %w", request.URL, &crawler.StatusError{Status: result.StatusCode})
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.SetRequestTimeout(f.cfg.Timeout)
	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		if request.Referer != "" {
			r.Headers.Set("Referer", request.Referer)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("fetch canceled: %w", ctx.Err())
			}
			return fmt.Errorf("visit %s: %w (%w)", url, err, crawler.ErrNetwork)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
