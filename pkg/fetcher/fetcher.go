package fetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	errs "fxarchive/pkg/errors"
	"fxarchive/pkg/imagefx"
	"fxarchive/pkg/logger"
	"fxarchive/pkg/models"
)

// ErrDecode is returned when the image payload is not valid base64.
var ErrDecode = errors.New("failed to decode image payload")

// MediaFetcher returns one item's image and prompt.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaKey string) (*imagefx.Image, error)
}

// ArtifactStore persists decoded artifacts.
type ArtifactStore interface {
	Exists(item models.ItemRecord) bool
	SaveArtifacts(item models.ItemRecord, image []byte, prompt string) error
}

// Options tune a Worker.
type Options struct {
	// SkipExisting counts items whose image is already on disk as succeeded
	// without fetching them again.
	SkipExisting bool
}

// Worker fetches and persists single items. It holds no per-item state and
// may be shared by any number of goroutines.
type Worker struct {
	api    MediaFetcher
	store  ArtifactStore
	opts   Options
	logger logger.Logger
}

// New creates a worker.
func New(api MediaFetcher, store ArtifactStore, log logger.Logger, opts Options) *Worker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Worker{api: api, store: store, opts: opts, logger: log}
}

// Process fetches item, decodes its image and writes it with its prompt.
// It never panics and never returns an error: every failure is logged and
// reported as Succeeded == false.
func (w *Worker) Process(ctx context.Context, item models.ItemRecord) (outcome models.FetchOutcome) {
	start := time.Now()
	outcome.ID = item.ID

	defer func() {
		if r := recover(); r != nil {
			outcome.Succeeded = false
			outcome.Err = fmt.Errorf("panic while processing %s: %v", item.ID, r)
			w.logger.ErrorWithFields("worker panicked", map[string]interface{}{
				"media_key": item.ID,
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			})
		}
		outcome.Duration = time.Since(start)
	}()

	if w.opts.SkipExisting && w.store.Exists(item) {
		w.logger.DebugWithFields("already downloaded, skipping", map[string]interface{}{
			"media_key": item.ID,
		})
		outcome.Succeeded = true
		outcome.Skipped = true
		return outcome
	}

	n, err := w.fetchAndSave(ctx, item)
	if err != nil {
		outcome.Err = err
		log := w.logger
		if code := errs.StatusCode(err); code != 0 {
			log = log.WithField("status", code)
		}
		logger.LogDownload(log, item.ID, item.DateFolder(), false, err)
		return outcome
	}

	outcome.Succeeded = true
	outcome.Bytes = n
	logger.LogDownload(w.logger, item.ID, item.DateFolder(), true, nil)
	return outcome
}

func (w *Worker) fetchAndSave(ctx context.Context, item models.ItemRecord) (int, error) {
	img, err := w.api.FetchMedia(ctx, item.ID)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", item.ID, err)
	}

	encoded, ok := img.Payload()
	if !ok {
		return 0, fmt.Errorf("fetch %s: %w", item.ID, errs.ErrMissingPayload)
	}

	data, err := DecodePayload(encoded)
	if err != nil {
		return 0, fmt.Errorf("item %s: %w", item.ID, err)
	}

	prompt, ok := img.PromptText()
	if !ok {
		w.logger.WarnWithFields("prompt text missing, saving image only", map[string]interface{}{
			"media_key": item.ID,
		})
	}

	if err := w.store.SaveArtifacts(item, data, prompt); err != nil {
		return 0, fmt.Errorf("item %s: %w", item.ID, err)
	}
	return len(data), nil
}

// DecodePayload decodes a base64 image, with or without padding, in the
// standard or URL-safe alphabet, optionally prefixed by a data: URI header.
func DecodePayload(encoded string) ([]byte, error) {
	s := strings.TrimSpace(encoded)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrDecode, lastErr)
}
