package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "fxarchive/pkg/errors"
	"fxarchive/pkg/imagefx"
	"fxarchive/pkg/logger"
	"fxarchive/pkg/models"
	"fxarchive/pkg/retry"
)

// ErrCursorStuck is returned when the service hands back the cursor it was
// just given, which would otherwise loop forever.
var ErrCursorStuck = errors.New("next page cursor did not advance")

// HistoryFetcher fetches one page of history.
type HistoryFetcher interface {
	FetchHistoryPage(ctx context.Context, cursor string, limit int) (*imagefx.HistoryPage, error)
}

// Config controls pagination.
type Config struct {
	// PageSize is requested from the service on every call
	PageSize int
	// PageDelay is slept between two page requests
	PageDelay time.Duration
	// MaxItems stops the crawl once this many items are collected; 0 means no cap
	MaxItems int
	// OnPage, if set, is called after every page with the running stats
	OnPage func(stats models.CrawlStats)
}

// Crawler walks the history endpoint page by page. Pages are fetched strictly
// one after another.
type Crawler struct {
	fetcher HistoryFetcher
	cfg     Config
	sleep   retry.SleepFunc
	logger  logger.Logger
}

// New creates a crawler.
func New(fetcher HistoryFetcher, cfg Config, log logger.Logger) *Crawler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = imagefx.DefaultPageSize
	}
	if cfg.MaxItems < 0 {
		cfg.MaxItems = 0
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		fetcher: fetcher,
		cfg:     cfg,
		sleep:   retry.Wait,
		logger:  log.WithField("component", "crawler"),
	}
}

// GetAllItems collects item records in page order until the history runs out
// or MaxItems is reached.
//
// A transport failure or malformed page halts the crawl. The items collected
// before the fault are still returned, together with the error, and the same
// error is recorded in stats.HaltReason.
func (c *Crawler) GetAllItems(ctx context.Context) ([]models.ItemRecord, models.CrawlStats, error) {
	var (
		items  []models.ItemRecord
		stats  models.CrawlStats
		cursor string
	)

	halt := func(err error) ([]models.ItemRecord, models.CrawlStats, error) {
		stats.Items = len(items)
		stats.HaltReason = err
		haltsTotal.Inc()
		c.logger.WithError(err).WarnWithFields("crawl halted, keeping collected items", map[string]interface{}{
			"items": len(items),
			"pages": stats.Pages,
		})
		return items, stats, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return halt(err)
		}

		page, err := c.fetcher.FetchHistoryPage(ctx, cursor, c.cfg.PageSize)
		if err != nil {
			return halt(fmt.Errorf("page %d: %w", stats.Pages+1, err))
		}
		stats.Pages++

		switch {
		case page.HasWorkflows() && len(page.Workflows()) > 0:
			pagesTotal.WithLabelValues("full").Inc()
		case page.HasWorkflows():
			// Sparse page: tolerated, but kept apart from a missing list.
			stats.EmptyPages++
			pagesTotal.WithLabelValues("empty_list").Inc()
			c.logger.WarnWithFields("page has an empty item list", map[string]interface{}{
				"page":     stats.Pages,
				"has_next": page.NextCursor() != "",
			})
		case page.HasCursorField():
			stats.MissingListPages++
			pagesTotal.WithLabelValues("missing_list").Inc()
			c.logger.WarnWithFields("page has no item list field but carries a cursor", map[string]interface{}{
				"page":     stats.Pages,
				"has_next": page.NextCursor() != "",
			})
		default:
			pagesTotal.WithLabelValues("malformed").Inc()
			return halt(errs.Malformed("page %d: neither userWorkflows nor nextPageToken present", stats.Pages))
		}

		for _, wf := range page.Workflows() {
			if wf.Name == "" {
				return halt(errs.Malformed("page %d: history entry without a name", stats.Pages))
			}

			items = append(items, c.record(wf))
			itemsTotal.Inc()

			if c.cfg.MaxItems > 0 && len(items) >= c.cfg.MaxItems {
				stats.Items = len(items)
				stats.CapReached = true
				c.logger.InfoWithFields("item cap reached, stopping crawl", map[string]interface{}{
					"max_items": c.cfg.MaxItems,
					"pages":     stats.Pages,
				})
				c.notify(stats)
				return items, stats, nil
			}
		}

		stats.Items = len(items)
		c.notify(stats)

		next := page.NextCursor()
		if next == "" {
			c.logger.InfoWithFields("history exhausted", map[string]interface{}{
				"items": len(items),
				"pages": stats.Pages,
			})
			return items, stats, nil
		}
		if next == cursor {
			return halt(ErrCursorStuck)
		}

		c.logger.DebugWithFields("page crawled", map[string]interface{}{
			"page":  stats.Pages,
			"items": len(items),
		})

		if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
			return halt(err)
		}
		cursor = next
	}
}

func (c *Crawler) record(wf imagefx.Workflow) models.ItemRecord {
	rec := models.ItemRecord{ID: wf.Name}
	if wf.CreateTime == "" {
		return rec
	}

	t, err := models.ParseCreateTime(wf.CreateTime)
	if err != nil {
		c.logger.WarnWithFields("unparseable create time, item will be stored undated", map[string]interface{}{
			"media_key":   wf.Name,
			"create_time": wf.CreateTime,
		})
		return rec
	}
	rec.CreatedAt = &t
	return rec
}

func (c *Crawler) notify(stats models.CrawlStats) {
	if c.cfg.OnPage != nil {
		c.cfg.OnPage(stats)
	}
}
