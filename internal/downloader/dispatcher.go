package downloader

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fxarchive/pkg/logger"
	"fxarchive/pkg/models"
)

// DefaultConcurrency is the number of items fetched at once.
const DefaultConcurrency = 10

// DefaultMilestoneEvery is how often, in successes, progress is logged.
const DefaultMilestoneEvery = 10

// Processor handles one item and reports how it went. Implementations must
// not block forever; the per-request timeout of the transport bounds them.
type Processor interface {
	Process(ctx context.Context, item models.ItemRecord) models.FetchOutcome
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, item models.ItemRecord) models.FetchOutcome

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, item models.ItemRecord) models.FetchOutcome {
	return f(ctx, item)
}

// Config controls a Dispatcher.
type Config struct {
	// Concurrency caps the number of in-flight workers; values below 1 mean 1
	Concurrency int
	// MilestoneEvery logs progress after every N successes; 0 disables it
	MilestoneEvery int
	// OnOutcome, if set, is called once per item from a single goroutine
	OnOutcome func(models.FetchOutcome)
}

// Dispatcher runs a Processor over a batch of items with bounded concurrency.
//
// Admission blocks while Concurrency workers are running. Workers report on a
// channel read by a single aggregator goroutine, which owns the success count.
type Dispatcher struct {
	proc     Processor
	cfg      Config
	logger   logger.Logger
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(proc Processor, cfg Config, log logger.Logger) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MilestoneEvery < 0 {
		cfg.MilestoneEvery = 0
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Dispatcher{
		proc:   proc,
		cfg:    cfg,
		logger: log.WithField("component", "dispatcher"),
	}
}

// Dispatch processes every item and returns once all of them have finished.
// No item is dropped. ctx is handed to each worker; cancelling it makes the
// remaining requests fail fast but does not stop admission.
func (d *Dispatcher) Dispatch(ctx context.Context, items []models.ItemRecord) models.DispatchResult {
	start := time.Now()
	d.peak.Store(0)
	logger.LogComponentStart(d.logger, "dispatcher", map[string]interface{}{
		"items":       len(items),
		"concurrency": d.cfg.Concurrency,
	})

	results := make(chan models.FetchOutcome, d.cfg.Concurrency)
	summary := make(chan models.DispatchResult, 1)
	go d.aggregate(results, len(items), summary)

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for _, item := range items {
		g.Go(func() error {
			n := d.inFlight.Add(1)
			d.observePeak(n)
			inFlightGauge.Set(float64(n))
			defer func() {
				inFlightGauge.Set(float64(d.inFlight.Add(-1)))
			}()

			results <- d.run(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	res := <-summary
	res.Duration = time.Since(start)

	logger.LogMetrics(d.logger, "dispatch", map[string]interface{}{
		"submitted":   res.Submitted,
		"succeeded":   res.SuccessCount,
		"failed":      res.Failed,
		"duration":    res.Duration,
		"peak_active": d.Peak(),
	})
	logger.LogComponentStop(d.logger, "dispatcher", "batch complete")
	return res
}

// run isolates one item: a panicking processor becomes a failed outcome.
func (d *Dispatcher) run(ctx context.Context, item models.ItemRecord) (out models.FetchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = models.FetchOutcome{
				ID:  item.ID,
				Err: fmt.Errorf("processor panic: %v", r),
			}
			d.logger.ErrorWithFields("processor panicked", map[string]interface{}{
				"media_key": item.ID,
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			})
		}
	}()

	out = d.proc.Process(ctx, item)
	if out.ID == "" {
		out.ID = item.ID
	}
	return out
}

func (d *Dispatcher) aggregate(results <-chan models.FetchOutcome, submitted int, summary chan<- models.DispatchResult) {
	res := models.DispatchResult{Submitted: submitted}

	for out := range results {
		if out.Succeeded {
			res.SuccessCount++
			outcomesTotal.WithLabelValues("success").Inc()
			if d.cfg.MilestoneEvery > 0 && res.SuccessCount%d.cfg.MilestoneEvery == 0 {
				logger.LogMilestone(d.logger, res.SuccessCount, submitted)
			}
		} else {
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, out.ID)
			outcomesTotal.WithLabelValues("failure").Inc()
			d.logger.WarnWithFields("item failed", map[string]interface{}{
				"media_key": out.ID,
				"error":     errString(out.Err),
			})
		}

		if d.cfg.OnOutcome != nil {
			d.cfg.OnOutcome(out)
		}
	}

	summary <- res
}

func (d *Dispatcher) observePeak(n int64) {
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// InFlight returns the number of workers currently running.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// Peak returns the highest number of simultaneously running workers seen
// during the most recent Dispatch.
func (d *Dispatcher) Peak() int {
	return int(d.peak.Load())
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
