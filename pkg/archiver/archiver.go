package archiver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fxarchive/internal/downloader"
	"fxarchive/pkg/checkpoint"
	"fxarchive/pkg/config"
	"fxarchive/pkg/crawler"
	"fxarchive/pkg/fetcher"
	"fxarchive/pkg/imagefx"
	"fxarchive/pkg/logger"
	"fxarchive/pkg/models"
	"fxarchive/pkg/retry"
	"fxarchive/pkg/storage"
	"fxarchive/pkg/transport"

	"github.com/google/uuid"
)

// ErrNoItems is returned by Run when neither the checkpoint nor the crawl
// produced anything to download.
var ErrNoItems = errors.New("no items to download")

// Archiver wires discovery, checkpointing and the concurrent download of an
// account's ImageFX history.
type Archiver struct {
	cfg        *config.Config
	client     *imagefx.Client
	crawler    *crawler.Crawler
	checkpoint *checkpoint.Manager
	storage    *storage.Manager
	worker     *fetcher.Worker
	logger     logger.Logger
}

// Option customizes construction, mostly for tests.
type Option func(*options)

type options struct {
	httpClient *http.Client
	sleep      retry.SleepFunc
	onPage     func(models.CrawlStats)
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithRetrySleep replaces the wait between retries.
func WithRetrySleep(fn retry.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// WithPageHook is called after every crawled page.
func WithPageHook(fn func(models.CrawlStats)) Option {
	return func(o *options) { o.onPage = fn }
}

// New builds an Archiver from cfg. headers carries the session cookie and is
// attached to every request unchanged.
func New(cfg *config.Config, headers http.Header, log logger.Logger, opts ...Option) (*Archiver, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := PolicyFromConfig(cfg.Retry)
	if err != nil {
		return nil, err
	}

	topts := []transport.Option{
		transport.WithTimeout(cfg.Retry.Timeout),
		transport.WithHeaders(headers),
		transport.WithRateLimit(cfg.Retry.RequestsPerMinute),
		transport.WithLogger(log.WithField("component", "transport")),
	}
	if o.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(o.httpClient))
	}
	if o.sleep != nil {
		topts = append(topts, transport.WithSleep(o.sleep))
	}
	tr := transport.New(policy, topts...)

	client := imagefx.NewClient(tr, cfg.Session.BaseURL, log)

	cp, err := checkpoint.NewManager(cfg.Output.CheckpointFile, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewManager(cfg.Output.BaseDirectory, storage.Layout{
		ImageExt: cfg.Output.ImageExtension,
		TextExt:  cfg.Output.TextExtension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	return &Archiver{
		cfg:    cfg,
		client: client,
		crawler: crawler.New(client, crawler.Config{
			PageSize:  cfg.Crawl.PageSize,
			PageDelay: cfg.Crawl.PageDelay,
			MaxItems:  cfg.Crawl.MaxItems,
			OnPage:    o.onPage,
		}, log),
		checkpoint: cp,
		storage:    store,
		worker:     fetcher.New(client, store, log, fetcher.Options{SkipExisting: cfg.Download.SkipExisting}),
		logger:     log,
	}, nil
}

// PolicyFromConfig builds the retry policy described by rc.
func PolicyFromConfig(rc config.RetryConfig) (retry.Policy, error) {
	statuses := rc.RetryableStatuses
	if statuses == nil {
		statuses = retry.DefaultRetryableStatuses
	}
	policy, err := retry.NewPolicy(rc.MaxAttempts, rc.BackoffFactor, statuses...)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("invalid retry settings: %w", err)
	}
	return policy, nil
}

// Checkpoint exposes the checkpoint manager.
func (a *Archiver) Checkpoint() *checkpoint.Manager {
	return a.checkpoint
}

// OutputDir returns the root directory artifacts are written under.
func (a *Archiver) OutputDir() string {
	return a.storage.GetOutputDir()
}

// Discover crawls the history. When at least one item was found the list is
// saved as the checkpoint, even if the crawl halted early. A halted crawl
// returns the partial items together with the halt error.
func (a *Archiver) Discover(ctx context.Context) ([]models.ItemRecord, models.CrawlStats, error) {
	items, stats, crawlErr := a.crawler.GetAllItems(ctx)

	if len(items) > 0 {
		if err := a.checkpoint.Save(items); err != nil {
			return items, stats, errors.Join(crawlErr, fmt.Errorf("failed to save checkpoint: %w", err))
		}
		a.logger.InfoWithFields("checkpoint saved", map[string]interface{}{
			"path":  a.checkpoint.Path(),
			"items": len(items),
		})
	}

	return items, stats, crawlErr
}

// LoadCheckpoint reloads the items saved by a previous Discover. It returns
// nil, nil when there is no checkpoint.
func (a *Archiver) LoadCheckpoint() ([]models.ItemRecord, error) {
	return a.checkpoint.Load()
}

// Download fetches and stores every item. onOutcome, if set, sees each
// outcome from a single goroutine.
func (a *Archiver) Download(ctx context.Context, items []models.ItemRecord, onOutcome func(models.FetchOutcome)) models.DispatchResult {
	d := downloader.NewDispatcher(a.worker, downloader.Config{
		Concurrency:    a.cfg.Download.Concurrency,
		MilestoneEvery: a.cfg.Download.MilestoneEvery,
		OnOutcome:      onOutcome,
	}, a.logger)

	return d.Dispatch(ctx, items)
}

// RunOptions controls Run.
type RunOptions struct {
	// UseCheckpoint loads items from an existing checkpoint instead of crawling
	UseCheckpoint bool
	// Confirm is asked before downloading; returning false stops the run
	Confirm func(n int) bool
	// OnDiscovered is called with the item list and, for a crawl, its stats
	OnDiscovered func(items []models.ItemRecord, stats *models.CrawlStats)
	// OnOutcome is forwarded to Download
	OnOutcome func(models.FetchOutcome)
}

// Report describes a completed Run.
type Report struct {
	RunID          string
	FromCheckpoint bool
	Items          int
	Crawl          *models.CrawlStats
	Declined       bool
	Result         models.DispatchResult
	Duration       time.Duration
}

// Run executes the whole pipeline: obtain the item list, ask for
// confirmation, then download. A crawl that halted early still downloads
// what it found; the halt is reported in Report.Crawl.HaltReason.
func (a *Archiver) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	start := time.Now()
	log := a.logger.WithField("run_id", report.RunID)

	defer func() {
		report.Duration = time.Since(start)
		lastRunTimestamp.SetToCurrentTime()
	}()

	items, err := a.collect(ctx, opts, report, log)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return report, err
	}
	report.Items = len(items)

	if opts.OnDiscovered != nil {
		opts.OnDiscovered(items, report.Crawl)
	}

	if len(items) == 0 {
		runsTotal.WithLabelValues("empty").Inc()
		log.Warn("nothing to download")
		return report, ErrNoItems
	}

	if opts.Confirm != nil && !opts.Confirm(len(items)) {
		report.Declined = true
		runsTotal.WithLabelValues("declined").Inc()
		log.InfoWithFields("download declined", map[string]interface{}{
			"items":      len(items),
			"checkpoint": a.checkpoint.Path(),
		})
		return report, nil
	}

	report.Result = a.Download(ctx, items, opts.OnOutcome)

	result := "complete"
	if report.Result.Failed > 0 {
		result = "partial"
		log.WarnWithFields("some items failed", map[string]interface{}{
			"failed":     report.Result.Failed,
			"failed_ids": report.Result.FailedIDs,
		})
	}
	runsTotal.WithLabelValues(result).Inc()

	log.InfoWithFields("run finished", map[string]interface{}{
		"succeeded": report.Result.SuccessCount,
		"submitted": report.Result.Submitted,
		"output":    a.OutputDir(),
		"written":   a.storage.SavedCount(),
	})
	return report, nil
}

func (a *Archiver) collect(ctx context.Context, opts RunOptions, report *Report, log logger.Logger) ([]models.ItemRecord, error) {
	if opts.UseCheckpoint && a.checkpoint.Exists() {
		items, err := a.checkpoint.Load()
		switch {
		case err != nil:
			log.WithError(err).WarnWithFields("checkpoint unreadable, crawling again", map[string]interface{}{
				"path": a.checkpoint.Path(),
			})
		case len(items) == 0:
			log.WarnWithFields("checkpoint is empty, crawling again", map[string]interface{}{
				"path": a.checkpoint.Path(),
			})
		default:
			report.FromCheckpoint = true
			log.InfoWithFields("resuming from checkpoint", map[string]interface{}{
				"path":  a.checkpoint.Path(),
				"items": len(items),
			})
			return items, nil
		}
	}

	items, stats, err := a.Discover(ctx)
	report.Crawl = &stats
	if err != nil {
		if len(items) == 0 {
			return nil, fmt.Errorf("discovery failed: %w", err)
		}
		log.WithError(err).WarnWithFields("discovery halted early, continuing with partial list", map[string]interface{}{
			"items": len(items),
		})
	}
	return items, nil
}
