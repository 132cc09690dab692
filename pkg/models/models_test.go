package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateFolder(t *testing.T) {
	ts := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	assert.Equal(t, "2024-03-01", ItemRecord{ID: "x", CreatedAt: &ts}.DateFolder())
	assert.Equal(t, "", ItemRecord{ID: "x"}.DateFolder())
}

func TestDateFolderKeepsRecordedOffset(t *testing.T) {
	late, err := ParseCreateTime("2024-03-01T23:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", ItemRecord{ID: "a", CreatedAt: &late}.DateFolder())

	early, err := ParseCreateTime("2024-03-02T00:30:00+09:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", ItemRecord{ID: "b", CreatedAt: &early}.DateFolder())

	var rec ItemRecord
	require.NoError(t, json.Unmarshal([]byte(`{"media_key":"c","create_time":"2024-03-01T23:30:00-05:00"}`), &rec))
	assert.Equal(t, "2024-03-01", rec.DateFolder())
}

func TestParseCreateTime(t *testing.T) {
	got, err := ParseCreateTime("2024-03-01T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	got, err = ParseCreateTime("2024-03-01T10:00:00.654321+00:00")
	require.NoError(t, err)
	assert.Equal(t, 654321000, got.Nanosecond())

	_, err = ParseCreateTime("yesterday")
	assert.Error(t, err)
}

func TestItemRecordJSON(t *testing.T) {
	var items []ItemRecord
	err := json.Unmarshal([]byte(`[
		{"media_key":"abc123","create_time":"2024-03-01T10:00:00Z"},
		{"media_key":"nil1","create_time":null},
		{"media_key":"empty1","create_time":""},
		{"media_key":"none"}
	]`), &items)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "2024-03-01", items[0].DateFolder())
	for _, it := range items[1:] {
		assert.Nil(t, it.CreatedAt, it.ID)
	}

	out, err := json.Marshal(items[:2])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"media_key":"abc123","create_time":"2024-03-01T10:00:00Z"},{"media_key":"nil1"}]`, string(out))
}

func TestItemRecordJSONRejectsBadTime(t *testing.T) {
	var rec ItemRecord
	err := json.Unmarshal([]byte(`{"media_key":"a","create_time":"03/01/2024"}`), &rec)
	assert.Error(t, err)
}
