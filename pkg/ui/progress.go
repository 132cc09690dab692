package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"fxarchive/pkg/models"

	"github.com/schollz/progressbar/v3"
)

// Progress renders a download progress bar fed with worker outcomes.
type Progress struct {
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	succeeded int
	failed    int
	skipped   int
	bytes     int
}

// NewProgress creates a bar for total items that draws on w.
func NewProgress(total int, w io.Writer) *Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("img"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
	return &Progress{bar: bar}
}

// Observe records one outcome. Its signature matches the dispatcher's
// OnOutcome hook.
func (p *Progress) Observe(out models.FetchOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case !out.Succeeded:
		p.failed++
	case out.Skipped:
		p.succeeded++
		p.skipped++
	default:
		p.succeeded++
	}
	p.bytes += out.Bytes

	if p.failed > 0 {
		p.bar.Describe(fmt.Sprintf("downloading (%d failed)", p.failed))
	}
	_ = p.bar.Add(1)
}

// Finish completes the bar.
func (p *Progress) Finish() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar.Finish()
}

// Counts returns what has been observed so far.
func (p *Progress) Counts() (succeeded, failed, skipped, bytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded, p.failed, p.skipped, p.bytes
}
