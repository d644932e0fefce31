// Package worker implements the sequential crawl execution loop.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress"
)

// Config controls Runner behavior.
type Config struct {
	// Topic names the Pub/Sub topic for per-target completion messages.
	// Empty disables publishing.
	Topic string
}

// Runner drains the work queue one target at a time. Crawling a single
// target exercises the whole pipeline, so there is exactly one Runner per
// process and no target-level concurrency.
type Runner struct {
	queue     crawler.TargetQueue
	crawlerFn crawler.TargetCrawler
	tracker   *progress.Tracker
	emitter   progress.Emitter
	publisher crawler.Publisher
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger
	runID     uuid.UUID
	failed    []string
}

// New constructs a Runner. publisher and emitter may be nil.
func New(
	queue crawler.TargetQueue,
	tc crawler.TargetCrawler,
	tracker *progress.Tracker,
	emitter progress.Emitter,
	publisher crawler.Publisher,
	clock crawler.Clock,
	runID uuid.UUID,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:     queue,
		crawlerFn: tc,
		tracker:   tracker,
		emitter:   emitter,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("worker"),
		runID:     runID,
	}
}

// Run consumes queued targets until the queue is drained, the record budget
// is spent, or the context ends. It returns the run summary; output and
// checkpoint paths are left for the caller to fill in.
func (r *Runner) Run(ctx context.Context) progress.Summary {
	start := r.clock.Now()
	r.emit(progress.Event{Stage: progress.StageRunStart, TS: start})
	r.logger.Info("crawl run started", zap.String("run_id", r.runID.String()))

	var done, failed int
	for {
		if r.tracker.BudgetExhausted() {
			r.logger.Info("record budget reached, stopping",
				zap.Int("total_records", r.tracker.TotalRecords()))
			break
		}
		item, err := r.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, crawler.ErrQueueClosed) || ctx.Err() != nil {
				break
			}
			r.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		switch r.processTarget(ctx, item) {
		case crawler.TargetDone:
			done++
		case crawler.TargetFailed:
			failed++
		}
	}

	dur := r.clock.Now().Sub(start)
	if ctx.Err() != nil {
		r.emit(progress.Event{
			Stage:    progress.StageRunError,
			TS:       r.clock.Now(),
			Accepted: int64(r.tracker.TotalRecords()),
			Dur:      dur,
			Note:     ctx.Err().Error(),
		})
		r.logger.Warn("crawl run interrupted",
			zap.Int("targets_done", done),
			zap.Int("targets_failed", failed),
			zap.Error(ctx.Err()))
	} else {
		r.emit(progress.Event{
			Stage:    progress.StageRunDone,
			TS:       r.clock.Now(),
			Accepted: int64(r.tracker.TotalRecords()),
			Dur:      dur,
		})
		r.logger.Info("crawl run finished",
			zap.Int("targets_done", done),
			zap.Int("targets_failed", failed),
			zap.Int("total_records", r.tracker.TotalRecords()),
			zap.Duration("dur", dur))
	}

	summary := progress.Summary{
		RunID:            r.runID.String(),
		GeneratedAt:      r.clock.Now(),
		TargetsProcessed: done,
		TargetsFailed:    failed,
		TotalRecords:     r.tracker.TotalRecords(),
	}
	r.publishSummary(ctx, summary, dur)
	return summary
}

// FailedTargets returns the display strings of targets that finished with
// an error, in completion order. Valid once Run has returned.
func (r *Runner) FailedTargets() []string {
	return append([]string(nil), r.failed...)
}

// publishSummary announces the finished run on the same topic as target
// completions.
func (r *Runner) publishSummary(ctx context.Context, s progress.Summary, dur time.Duration) {
	if r.cfg.Topic == "" || r.publisher == nil {
		return
	}
	payload := map[string]any{
		"run_id":            s.RunID,
		"kind":              "run_summary",
		"targets_processed": s.TargetsProcessed,
		"targets_failed":    s.TargetsFailed,
		"total_records":     s.TotalRecords,
		"duration_ms":       dur.Milliseconds(),
		"timestamp":         s.GeneratedAt.Format(time.RFC3339),
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, payload); err != nil {
		r.logger.Warn("run summary publish failed", zap.Error(err))
	}
}

// processTarget crawls one target and records its completion. A target cut
// short by cancellation is not checkpointed, so a resumed run picks it up
// again. The returned status is "" for such interrupted targets.
func (r *Runner) processTarget(ctx context.Context, item crawler.WorkItem) crawler.TargetStatus {
	key := item.Target.Key()
	start := r.clock.Now()
	r.emit(progress.Event{Stage: progress.StageTargetStart, TS: start, Target: key})
	r.logger.Info("crawling target",
		zap.String("target", key),
		zap.Int("index", item.Index),
		zap.Int("total", item.Total))

	res := r.crawlerFn.CrawlTarget(ctx, item.Target)
	dur := r.clock.Now().Sub(start)

	if res.Status == crawler.TargetFailed && ctx.Err() != nil {
		r.emit(progress.Event{
			Stage:  progress.StageTargetError,
			TS:     r.clock.Now(),
			Target: key,
			Dur:    dur,
			Note:   "interrupted: " + ctx.Err().Error(),
		})
		return ""
	}

	r.tracker.MarkProcessed(ctx, key, res.Accepted)

	evt := progress.Event{
		TS:       r.clock.Now(),
		Target:   key,
		Found:    int64(res.Found),
		Accepted: int64(res.Accepted),
		Dur:      dur,
	}
	if res.Status == crawler.TargetFailed {
		evt.Stage = progress.StageTargetError
		if res.Err != nil {
			evt.Note = res.Err.Error()
		}
		r.failed = append(r.failed, key)
		r.logger.Warn("target failed",
			zap.String("target", key),
			zap.Int("accepted", res.Accepted),
			zap.Error(res.Err))
	} else {
		evt.Stage = progress.StageTargetDone
		r.logger.Info("target done",
			zap.String("target", key),
			zap.Int("pages", res.Pages),
			zap.Int("found", res.Found),
			zap.Int("accepted", res.Accepted),
			zap.Int("rejected", res.Rejected),
			zap.Int("duplicates", res.Duplicates),
			zap.Duration("dur", dur))
	}
	r.emit(evt)
	r.publishResult(ctx, res, dur)
	return res.Status
}

// publishResult announces a finished target. Failures are logged, not
// propagated; the CSV row is already on disk by the time this runs.
func (r *Runner) publishResult(ctx context.Context, res crawler.TargetResult, dur time.Duration) {
	if r.cfg.Topic == "" || r.publisher == nil {
		return
	}
	payload := map[string]any{
		"run_id":      r.runID.String(),
		"target":      res.Target.Key(),
		"status":      string(res.Status),
		"pages":       res.Pages,
		"found":       res.Found,
		"accepted":    res.Accepted,
		"rejected":    res.Rejected,
		"duplicates":  res.Duplicates,
		"duration_ms": dur.Milliseconds(),
		"timestamp":   r.clock.Now().Format(time.RFC3339),
	}
	if res.Err != nil {
		payload["error"] = res.Err.Error()
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, payload); err != nil {
		r.logger.Warn("target publish failed",
			zap.String("target", res.Target.Key()),
			zap.Error(err))
		return
	}
	r.logger.Debug("target published",
		zap.String("target", res.Target.Key()),
		zap.String("topic", r.cfg.Topic))
}

func (r *Runner) emit(evt progress.Event) {
	if r.emitter == nil {
		return
	}
	evt.RunID = progress.UUIDToBytes(r.runID)
	r.emitter.Emit(evt)
}
