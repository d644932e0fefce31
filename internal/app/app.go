// Package app assembles the scraper from configuration and owns the
// lifecycle of its long-lived services: the fetch pipeline, progress
// plumbing, storage backends, and the optional status server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/api"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/clock/system"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/config"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/crawler"
	collyfetcher "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/fetcher/colly"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/fetcher/fallback"
	headlessfetcher "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/fetcher/headless"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/hash/sha256"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/headless/detector"
	id "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/id/uuid"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/logging"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/metrics"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/policy/ratelimit"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress/sinks"
	mempub "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/publisher/memory"
	pubsubpub "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/publisher/pubsub"
	memqueue "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/queue/memory"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/storage"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/storage/csvstore"
	localstore "github.com/miguelmontanez/bbb-roofing-business-scraper/internal/storage/local"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/storage/postgres"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/targets"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/worker"
)

const (
	serverShutdownTimeout = 10 * time.Second
	backupTimeout         = 60 * time.Second
)

// App holds the assembled services of one scraper process. Build wires it,
// Run drives a single crawl, Close releases everything.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runID  uuid.UUID
	clock  *system.Clock

	hub     *progress.Hub
	emitter progress.Emitter
	status  *sinks.StatusSink
	tracker *progress.Tracker

	registry *crawler.Registry
	output   *csvstore.Sink
	orch     *crawler.Orchestrator

	records   *postgres.RecordsStore
	publisher crawler.Publisher
	pubsub    *pubsubpub.Publisher
	backup    storage.Provider
	gcs       *storage.GCSProvider
	headless  *headlessfetcher.Fetcher
	api       *api.Server

	report *targets.Report
}

// Build constructs the App from configuration. External backends are dialed
// and verified here, so a misconfigured process fails before the first
// request leaves it.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	a := &App{
		cfg:    cfg,
		logger: logger,
		runID:  id.New().NewRunID(),
		clock:  system.New(),
		report: targets.NewReport(),
	}

	a.logger.Info("scraper configured",
		zap.String("run_id", a.runID.String()),
		zap.String("search_text", cfg.BBB.SearchText),
		zap.Float64("requests_per_second", cfg.HTTP.RequestsPerSecond),
		zap.String("targets_file", cfg.Crawl.TargetsFile),
		zap.String("output", cfg.Paths.Output),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("publisher_backend", cfg.Publisher.Backend),
		zap.Bool("database_mirror", cfg.Database.DSN != ""),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.Bool("status_server", cfg.Server.Enabled))

	if err := a.setupProgress(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupDatabase(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupPipeline(); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Server.Enabled {
		a.api = api.NewServer(a.status, api.Config{APIKey: cfg.Server.APIKey}, logger.Named("api"))
	}
	return a, nil
}

// Logger exposes the application logger for command-level messages.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

func (a *App) setupProgress(ctx context.Context) error {
	if !a.cfg.Progress.Enabled {
		if a.cfg.Server.Enabled {
			a.logger.Warn("status server enabled without progress events; /v1 endpoints will report no run")
		}
		return nil
	}

	var sinkList []progress.Sink
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, sinks.NewLogSink(a.logger.Named("progress")))
	}
	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("prometheus sink: %w", err)
	}
	sinkList = append(sinkList, promSink)
	if a.cfg.Server.Enabled {
		a.status = sinks.NewStatusSink()
		sinkList = append(sinkList, a.status)
	}

	a.hub = progress.NewHub(progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   a.cfg.Progress.MaxBatchWait(),
		SinkTimeout:    a.cfg.Progress.SinkTimeout(),
		BaseContext:    ctx,
		Logger:         a.logger,
	}, sinkList...)
	a.emitter = a.hub
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case "gcs":
		provider, err := storage.NewGCSProvider(ctx, a.cfg.Storage.Bucket, nil, a.logger)
		if err != nil {
			return fmt.Errorf("gcs backup provider: %w", err)
		}
		a.gcs = provider
		a.backup = provider
	case "local":
		store, err := localstore.New(localstore.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("local backup store: %w", err)
		}
		a.backup = store
	default:
		// noop: no post-run uploads.
	}
	return nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Debug("database mirror disabled, no dsn configured")
		return nil
	}
	store, err := postgres.NewRecordsStore(ctx, postgres.RecordsStoreConfig{
		DSN:             a.cfg.Database.DSN,
		Table:           a.cfg.Database.Table,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.Database.ConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("postgres records store: %w", err)
	}
	a.records = store
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	switch a.cfg.Publisher.Backend {
	case "pubsub":
		pub, err := pubsubpub.New(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return fmt.Errorf("pubsub publisher: %w", err)
		}
		a.pubsub = pub
		a.publisher = pub
	case "memory":
		a.publisher = mempub.New()
	default:
		// noop: target completions are not published.
	}
	return nil
}

// setupPipeline wires the fetch chain, output sink, and per-target
// orchestrator.
func (a *App) setupPipeline() error {
	gate := ratelimit.New(ratelimit.Config{RequestsPerSecond: a.cfg.HTTP.RequestsPerSecond})
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:  a.cfg.HTTP.UserAgent,
		Timeout:    a.cfg.HTTP.Timeout(),
		MaxRetries: a.cfg.HTTP.MaxRetries,
		RetryDelay: a.cfg.HTTP.RetryDelay(),
	}, gate, a.clock, a.logger)

	fetch := crawler.Fetcher(probe)
	if a.cfg.Headless.Enabled {
		renderer, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.HTTP.UserAgent,
			NavigationTimeout: a.cfg.Headless.NavTimeout(),
		})
		if err != nil {
			a.logger.Warn("headless fetcher unavailable, continuing without render fallback", zap.Error(err))
		} else {
			a.headless = renderer
			det := detector.NewHeuristic(a.cfg.Headless.MinBodyBytes)
			fetch = fallback.New(probe, renderer, det, a.logger)
		}
	}

	output, err := csvstore.New(csvstore.Config{Path: a.cfg.Paths.Output}, a.logger)
	if err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	a.output = output
	a.registry = crawler.NewRegistry()

	var sink crawler.RecordSink = output
	if a.records != nil {
		sink = &mirrorSink{
			csv:     output,
			records: a.records,
			runID:   a.runID.String(),
			clock:   a.clock,
			logger:  a.logger,
		}
	}

	var debug crawler.BlobStore
	var hasher crawler.Hasher
	if a.cfg.Paths.DebugDir != "" {
		store, err := localstore.New(localstore.Config{BaseDir: a.cfg.Paths.DebugDir})
		if err != nil {
			a.logger.Warn("debug dump store unavailable", zap.Error(err))
		} else {
			debug = store
			hasher = sha256.New()
		}
	}

	var enricher *crawler.Enricher
	if a.cfg.Enrich.Enabled {
		enricher = crawler.NewEnricher(fetch, a.cfg.BBB.BaseURL, a.logger)
	}

	cpStore, err := localstore.NewCheckpointStore(a.cfg.Paths.Checkpoint)
	if err != nil {
		return fmt.Errorf("checkpoint store: %w", err)
	}
	a.tracker = progress.NewTracker(cpStore, output, a.clock, a.logger)

	observer := worker.NewObserver(a.runID, a.emitter, a.clock)
	a.orch = crawler.NewOrchestrator(
		a.cfg.CrawlerConfig(),
		fetch,
		sink,
		enricher,
		a.registry,
		observer,
		debug,
		hasher,
		a.logger,
	)
	return nil
}

// Run executes one crawl: it loads and selects targets, drains them
// sequentially, and writes the summary, the unsupported-targets report,
// and any configured backups. SIGINT/SIGTERM stop the run after the
// in-flight target; the checkpoint keeps the interruption resumable.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := a.startServer()
	defer a.stopServer(srv)

	list, invalid, err := targets.Load(a.cfg.Crawl.TargetsFile)
	if err != nil {
		return err
	}
	a.report.AddAll(invalid)
	if len(invalid) > 0 {
		a.logger.Warn("skipping unparseable targets",
			zap.Int("count", len(invalid)),
			zap.Strings("entries", invalid))
	}

	sel := progress.Selection{
		Skip:       a.cfg.Crawl.Skip,
		Max:        a.cfg.Crawl.MaxTargets,
		RangeStart: a.cfg.Crawl.Start,
		RangeEnd:   a.cfg.Crawl.End,
		Resume:     a.cfg.Crawl.Resume,
		Reset:      a.cfg.Crawl.Reset,
		MaxRecords: a.cfg.Crawl.TotalCap,
	}
	work, err := a.tracker.Prepare(ctx, a.runID.String(), list, sel)
	if err != nil {
		return fmt.Errorf("prepare run: %w", err)
	}

	// Seeding comes after Prepare: a reset archives the old output first,
	// so a fresh run starts with an empty registry.
	seeded, err := a.output.SeedRegistry(a.registry)
	if err != nil {
		return fmt.Errorf("seed dedup registry: %w", err)
	}
	a.logger.Info("run prepared",
		zap.Int("targets", len(work)),
		zap.Int("seeded_names", seeded),
		zap.Bool("resume", sel.Resume),
		zap.Bool("reset", sel.Reset))

	queue := memqueue.NewQueue(len(work))
	for i, target := range work {
		if err := queue.Enqueue(ctx, crawler.WorkItem{Target: target, Index: i + 1, Total: len(work)}); err != nil {
			return fmt.Errorf("enqueue target: %w", err)
		}
	}
	queue.Close()

	runner := worker.New(
		queue,
		a.orch,
		a.tracker,
		a.emitter,
		a.publisher,
		a.clock,
		a.runID,
		worker.Config{Topic: a.cfg.Publisher.Topic},
		a.logger,
	)
	summary := runner.Run(ctx)

	a.report.AddAll(runner.FailedTargets())
	summary.OutputPath = a.cfg.Paths.Output
	summary.CheckpointPath = a.cfg.Paths.Checkpoint
	summary.UnsupportedTargets = a.report.Count()
	if a.cfg.Paths.Unsupported != "" {
		summary.UnsupportedPath = a.cfg.Paths.Unsupported
		if err := a.report.Write(a.cfg.Paths.Unsupported); err != nil {
			a.logger.Warn("unsupported-targets report write failed", zap.Error(err))
		}
	}
	if a.cfg.Paths.Summary != "" {
		if err := progress.WriteSummary(a.cfg.Paths.Summary, summary); err != nil {
			a.logger.Warn("summary write failed", zap.Error(err))
		}
	}

	a.backupOutputs()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

func (a *App) startServer() *http.Server {
	if a.api == nil {
		return nil
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("status server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// The crawl is the product; a dead status server only costs
			// observability.
			a.logger.Error("status server error", zap.Error(err))
		}
	}()
	return srv
}

func (a *App) stopServer(srv *http.Server) {
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("status server shutdown error", zap.Error(err))
	}
}

// backupOutputs uploads the run's files to the configured backup provider.
// It runs on its own deadline so an interrupted crawl still backs up what
// it wrote.
func (a *App) backupOutputs() {
	if a.backup == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	paths := []string{
		a.cfg.Paths.Output,
		a.cfg.Paths.Summary,
		a.cfg.Paths.Unsupported,
		a.output.LastArchive(),
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				a.logger.Warn("backup read failed", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		name := filepath.Base(path)
		if err := a.backup.Save(ctx, name, data); err != nil {
			a.logger.Warn("backup upload failed", zap.String("object", name), zap.Error(err))
			continue
		}
		a.logger.Info("backup uploaded", zap.String("object", name), zap.Int("bytes", len(data)))
	}
}

// Close releases every service Build acquired. Safe on a partially built
// App and on repeated calls.
func (a *App) Close() {
	if a.hub != nil {
		if err := a.hub.Close(context.Background()); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		a.hub = nil
		a.emitter = nil
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub close failed", zap.Error(err))
		}
		a.pubsub = nil
	}
	if a.records != nil {
		a.records.Close()
		a.records = nil
	}
	if a.output != nil {
		if err := a.output.Close(); err != nil {
			a.logger.Warn("output close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs close failed", zap.Error(err))
		}
		a.gcs = nil
	}
	if a.headless != nil {
		a.headless.Close()
		a.headless = nil
	}
	_ = a.logger.Sync()
}

// recordMirror is the slice of the Postgres store the mirror sink needs.
type recordMirror interface {
	StoreRecord(ctx context.Context, record crawler.BusinessRecord, runID string, scrapedAt time.Time) error
}

// mirrorSink appends to the CSV first and then mirrors the row into
// Postgres. The CSV is the source of truth; a database failure is logged
// and never fails the append.
type mirrorSink struct {
	csv     crawler.RecordSink
	records recordMirror
	runID   string
	clock   crawler.Clock
	logger  *zap.Logger
}

func (s *mirrorSink) Append(ctx context.Context, record crawler.BusinessRecord) error {
	if err := s.csv.Append(ctx, record); err != nil {
		return err
	}
	if err := s.records.StoreRecord(ctx, record, s.runID, s.clock.Now()); err != nil {
		s.logger.Warn("postgres mirror failed",
			zap.String("business", record.BusinessName),
			zap.Error(err))
	}
	return nil
}
