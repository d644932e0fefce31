package crawler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RecordOutcome is the terminal state of one raw record.
type RecordOutcome string

// Record outcomes reported to the observer.
const (
	RecordAccepted  RecordOutcome = "accepted"
	RecordRejected  RecordOutcome = "rejected"
	RecordDuplicate RecordOutcome = "duplicate"
)

// CrawlObserver receives page and record milestones as the orchestrator
// advances. Implementations must not block.
type CrawlObserver interface {
	PageDone(target Target, page, totalPages, found int, dur time.Duration)
	RecordResolved(target Target, name string, outcome RecordOutcome, note string)
}

// Orchestrator walks one target's paginated listings: fetch, extract,
// validate, dedup, enrich, persist, advance. It never panics and never
// returns an error that would abort the run; per-target failures come back
// as TargetResult.Status == TargetFailed with the terminal cause attached.
type Orchestrator struct {
	cfg      Config
	fetcher  Fetcher
	sink     RecordSink
	enricher *Enricher
	global   *Registry
	observer CrawlObserver
	debug    BlobStore
	hasher   Hasher
	logger   *zap.Logger
}

// NewOrchestrator wires the per-target pipeline. enricher, observer, debug,
// and hasher may be nil; global must be the run's shared registry.
func NewOrchestrator(
	cfg Config,
	fetcher Fetcher,
	sink RecordSink,
	enricher *Enricher,
	global *Registry,
	observer CrawlObserver,
	debug BlobStore,
	hasher Hasher,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		sink:     sink,
		enricher: enricher,
		global:   global,
		observer: observer,
		debug:    debug,
		hasher:   hasher,
		logger:   logger,
	}
}

// CrawlTarget runs the pagination state machine for one target. Whatever was
// accepted before a failure stays accepted; a fetch Failure or a page without
// usable embedded state abandons the target at that page.
func (o *Orchestrator) CrawlTarget(ctx context.Context, target Target) TargetResult {
	res := TargetResult{Target: target, Status: TargetDone}
	seen := NewRegistry()
	totalPages := 1

	for page := 1; page <= totalPages; page++ {
		if err := ctx.Err(); err != nil {
			res.Status = TargetFailed
			res.Err = err
			return res
		}
		if o.cfg.RecordsPerTarget > 0 && res.Accepted >= o.cfg.RecordsPerTarget {
			break
		}

		pageURL := BuildSearchURL(o.cfg.BaseURL, o.cfg.SearchText, o.cfg.Country, target, page)
		resp, err := o.fetcher.Fetch(ctx, FetchRequest{URL: pageURL})
		if err != nil {
			o.logger.Warn("page fetch failed, abandoning target",
				zap.String("target", target.DisplayText),
				zap.Int("page", page),
				zap.Error(err))
			res.Status = TargetFailed
			res.Err = err
			return res
		}

		payload, err := ExtractEmbeddedState(resp.Body)
		if err == nil {
			var sp SearchPage
			sp, err = ParseSearchPage(payload)
			if err == nil {
				totalPages = sp.TotalPages
				res.Pages++
				res.Found += len(sp.Records)
				o.pageDone(target, page, totalPages, len(sp.Records), resp.Duration)
				o.processRecords(ctx, target, seen, sp.Records, &res)
				continue
			}
		}

		// Extracting -> Failed: the page rendered but carried nothing usable.
		o.dumpPage(ctx, target, page, resp.Body)
		o.logger.Warn("no usable embedded state, abandoning target",
			zap.String("target", target.DisplayText),
			zap.Int("page", page),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		res.Status = TargetFailed
		res.Err = err
		return res
	}
	return res
}

// processRecords runs validate -> dedup -> enrich -> final gate -> persist for
// each raw record, stopping early once the per-target cap is reached.
func (o *Orchestrator) processRecords(ctx context.Context, target Target, seen *Registry, raws []map[string]any, res *TargetResult) {
	for _, raw := range raws {
		if o.cfg.RecordsPerTarget > 0 && res.Accepted >= o.cfg.RecordsPerTarget {
			return
		}
		rec := NormalizeRecord(raw, o.cfg.BaseURL)
		if !MatchesKeywords(rec, o.cfg.Keywords) {
			res.Rejected++
			o.recordResolved(target, rec.BusinessName, RecordRejected, "keyword mismatch")
			continue
		}
		key := rec.DedupKey()
		if seen.Has(key) || o.global.Has(key) {
			res.Duplicates++
			o.recordResolved(target, rec.BusinessName, RecordDuplicate, "")
			continue
		}
		if o.cfg.EnrichDetails && o.enricher != nil {
			before := rec
			o.enricher.Enrich(ctx, &rec)
			if rec != before {
				res.Enriched++
			}
		}
		if err := Acceptable(rec, o.cfg.Keywords); err != nil {
			res.Rejected++
			o.recordResolved(target, rec.BusinessName, RecordRejected, err.Error())
			o.logger.Debug("record rejected", zap.String("target", target.DisplayText), zap.Error(err))
			continue
		}
		// Accepted: the key joins both registries even if the row write
		// fails, so a re-run with resume is what re-collects it.
		seen.Add(key)
		o.global.Add(key)
		if err := o.sink.Append(ctx, rec); err != nil {
			o.logger.Error("record write failed",
				zap.String("business", rec.BusinessName),
				zap.Error(fmt.Errorf("append: %w (%w)", err, ErrPersistence)))
			continue
		}
		res.Accepted++
		o.recordResolved(target, rec.BusinessName, RecordAccepted, "")
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// dumpPage saves the raw body of a page that yielded no data, for offline
// inspection. Best effort.
func (o *Orchestrator) dumpPage(ctx context.Context, target Target, page int, body []byte) {
	if o.debug == nil || len(body) == 0 {
		return
	}
	digest := ""
	if o.hasher != nil {
		if h, err := o.hasher.Hash(body); err == nil && len(h) >= 12 {
			digest = h[:12]
		}
	}
	slug := strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(target.DisplayText), "-"), "-")
	name := fmt.Sprintf("nodata/%s_p%d_%s.html", slug, page, digest)
	if err := o.debug.Save(ctx, name, body); err != nil {
		o.logger.Debug("debug dump failed", zap.String("object", name), zap.Error(err))
	}
}

func (o *Orchestrator) pageDone(target Target, page, totalPages, found int, dur time.Duration) {
	if o.observer != nil {
		o.observer.PageDone(target, page, totalPages, found, dur)
	}
}

func (o *Orchestrator) recordResolved(target Target, name string, outcome RecordOutcome, note string) {
	if o.observer != nil {
		o.observer.RecordResolved(target, name, outcome, note)
	}
}
