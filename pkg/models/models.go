package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout names the per-day output folders.
const DateLayout = "2006-01-02"

// ItemRecord identifies one generated media item. The JSON keys match the
// checkpoint files written by earlier releases.
type ItemRecord struct {
	ID        string     `json:"media_key"`
	CreatedAt *time.Time `json:"create_time,omitempty"`
}

// DateFolder returns the calendar date of CreatedAt in the offset it was
// recorded with, or "" when unknown.
func (r ItemRecord) DateFolder() string {
	if r.CreatedAt == nil {
		return ""
	}
	return r.CreatedAt.Format(DateLayout)
}

// UnmarshalJSON accepts create_time as an RFC 3339 string, an empty string
// or null.
func (r *ItemRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string  `json:"media_key"`
		CreateTime *string `json:"create_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = raw.ID
	r.CreatedAt = nil
	if raw.CreateTime != nil && *raw.CreateTime != "" {
		t, err := ParseCreateTime(*raw.CreateTime)
		if err != nil {
			return fmt.Errorf("item %s: %w", raw.ID, err)
		}
		r.CreatedAt = &t
	}
	return nil
}

// ParseCreateTime parses the service's createTime values, e.g.
// "2024-03-01T10:00:00Z" or "2024-03-01T10:00:00.123456+00:00".
func ParseCreateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid create time %q: %w", s, err)
	}
	return t, nil
}

// FetchOutcome is the result of fetching and saving one item.
type FetchOutcome struct {
	ID        string
	Succeeded bool
	Skipped   bool
	Err       error
	Bytes     int
	Duration  time.Duration
}

// DispatchResult summarises a batch download.
type DispatchResult struct {
	SuccessCount int
	Submitted    int
	Failed       int
	FailedIDs    []string
	Duration     time.Duration
}

// CrawlStats describes how a crawl went. HaltReason is nil when the history
// was exhausted or the item cap was reached.
type CrawlStats struct {
	Pages            int
	Items            int
	EmptyPages       int
	MissingListPages int
	CapReached       bool
	HaltReason       error
}
