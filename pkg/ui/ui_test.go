package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"fxarchive/pkg/models"

	"github.com/stretchr/testify/assert"
)

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := Confirm(strings.NewReader(tt.input), &out, "Download 3 items?")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "Download 3 items?")
	}
}

func TestPrintSummaryListsFailures(t *testing.T) {
	buf := captureOut(t)

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = "key-" + string(rune('a'+i))
	}
	PrintSummary(models.DispatchResult{
		SuccessCount: 5,
		Submitted:    30,
		Failed:       25,
		FailedIDs:    ids,
		Duration:     1500 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "5/30")
	assert.Contains(t, out, "25 item(s) failed")
	assert.Contains(t, out, "key-a")
	assert.NotContains(t, out, "key-y")
	assert.Contains(t, out, "and 5 more")
}

func TestPrintSummaryAllSucceeded(t *testing.T) {
	buf := captureOut(t)
	PrintSummary(models.DispatchResult{SuccessCount: 2, Submitted: 2})
	assert.Contains(t, buf.String(), "All items saved")
}

func TestPrintCrawlStats(t *testing.T) {
	buf := captureOut(t)
	PrintCrawlStats(models.CrawlStats{
		Pages:            4,
		Items:            30,
		EmptyPages:       1,
		MissingListPages: 2,
		CapReached:       true,
		HaltReason:       errors.New("cursor stuck"),
	})

	out := buf.String()
	assert.Contains(t, out, "1 empty, 2 without a list")
	assert.Contains(t, out, "item cap")
	assert.Contains(t, out, "cursor stuck")
}

func TestProgressObserve(t *testing.T) {
	var w bytes.Buffer
	p := NewProgress(4, &w)

	p.Observe(models.FetchOutcome{ID: "a", Succeeded: true, Bytes: 10})
	p.Observe(models.FetchOutcome{ID: "b", Succeeded: true, Skipped: true})
	p.Observe(models.FetchOutcome{ID: "c", Err: errors.New("x")})
	p.Observe(models.FetchOutcome{ID: "d", Succeeded: true, Bytes: 5})
	assert.NoError(t, p.Finish())

	succeeded, failed, skipped, bytes := p.Counts()
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 15, bytes)
}

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return errors.New("no notification daemon")
}

func TestNotifier(t *testing.T) {
	buf := captureOut(t)
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender)

	n.SendSuccess("fxarchive", "12 images saved")
	n.SendError("fxarchive", "3 failed")

	assert.Equal(t, []string{"fxarchive", "fxarchive"}, sender.titles)
	assert.Contains(t, buf.String(), "12 images saved")
	assert.Contains(t, buf.String(), "3 failed")
}
