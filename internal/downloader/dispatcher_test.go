package downloader

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxarchive/pkg/logger"
	"fxarchive/pkg/models"
)

// MockProcessor tracks concurrency and fails the items listed in fail.
type MockProcessor struct {
	fail    map[string]bool
	delay   func() time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32

	mu   sync.Mutex
	seen map[string]int
}

func NewMockProcessor(fail ...string) *MockProcessor {
	m := &MockProcessor{fail: map[string]bool{}, seen: map[string]int{}}
	for _, id := range fail {
		m.fail[id] = true
	}
	return m
}

func (m *MockProcessor) Process(ctx context.Context, item models.ItemRecord) models.FetchOutcome {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxSeen.Load()
		if n <= cur || m.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	m.calls.Add(1)

	m.mu.Lock()
	m.seen[item.ID]++
	m.mu.Unlock()

	if m.delay != nil {
		time.Sleep(m.delay())
	}
	if m.fail[item.ID] {
		return models.FetchOutcome{ID: item.ID, Err: fmt.Errorf("mock failure")}
	}
	return models.FetchOutcome{ID: item.ID, Succeeded: true}
}

func makeItems(n int) []models.ItemRecord {
	items := make([]models.ItemRecord, n)
	for i := range items {
		items[i] = models.ItemRecord{ID: fmt.Sprintf("item-%03d", i)}
	}
	return items
}

func TestDispatchCountsSuccesses(t *testing.T) {
	proc := NewMockProcessor("item-003", "item-007", "item-011")
	d := NewDispatcher(proc, Config{Concurrency: 4}, logger.NewNopLogger())

	res := d.Dispatch(context.Background(), makeItems(20))

	assert.Equal(t, 17, res.SuccessCount)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 20, res.Submitted)
	assert.ElementsMatch(t, []string{"item-003", "item-007", "item-011"}, res.FailedIDs)
	assert.EqualValues(t, 20, proc.calls.Load())
	for id, n := range proc.seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestDispatchRespectsConcurrencyLimit(t *testing.T) {
	for _, limit := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			proc := NewMockProcessor()
			proc.delay = func() time.Duration { return time.Duration(rand.Intn(3)+1) * time.Millisecond }
			d := NewDispatcher(proc, Config{Concurrency: limit}, logger.NewNopLogger())

			res := d.Dispatch(context.Background(), makeItems(limit*6))

			assert.Equal(t, limit*6, res.SuccessCount)
			assert.LessOrEqual(t, int(proc.maxSeen.Load()), limit)
			assert.LessOrEqual(t, d.Peak(), limit)
			assert.Zero(t, d.InFlight())
		})
	}
}

func TestDispatchWaitsForAllWorkers(t *testing.T) {
	proc := NewMockProcessor()
	proc.delay = func() time.Duration { return 20 * time.Millisecond }
	d := NewDispatcher(proc, Config{Concurrency: 2}, logger.NewNopLogger())

	res := d.Dispatch(context.Background(), makeItems(5))

	assert.Equal(t, 5, res.SuccessCount)
	assert.Zero(t, proc.active.Load())
	assert.GreaterOrEqual(t, res.Duration, 60*time.Millisecond)
}

func TestDispatchSuccessCountIndependentOfCompletionOrder(t *testing.T) {
	items := makeItems(50)
	var fail []string
	for i := 0; i < len(items); i += 4 {
		fail = append(fail, items[i].ID)
	}
	proc := NewMockProcessor(fail...)
	proc.delay = func() time.Duration { return time.Duration(rand.Intn(500)) * time.Microsecond }

	for run := 0; run < 3; run++ {
		d := NewDispatcher(proc, Config{Concurrency: 7}, logger.NewNopLogger())
		res := d.Dispatch(context.Background(), items)
		assert.Equal(t, len(items)-len(fail), res.SuccessCount)
		assert.LessOrEqual(t, res.SuccessCount, res.Submitted)
	}
}

func TestDispatchRecoversProcessorPanic(t *testing.T) {
	proc := ProcessorFunc(func(ctx context.Context, item models.ItemRecord) models.FetchOutcome {
		if item.ID == "item-001" {
			panic("boom")
		}
		return models.FetchOutcome{Succeeded: true}
	})
	d := NewDispatcher(proc, Config{Concurrency: 2}, logger.NewNopLogger())

	res := d.Dispatch(context.Background(), makeItems(3))
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, []string{"item-001"}, res.FailedIDs)
}

func TestDispatchMilestonesAndOutcomeHook(t *testing.T) {
	log := logger.NewTestLogger()
	var hookCalls int
	d := NewDispatcher(NewMockProcessor(), Config{
		Concurrency:    3,
		MilestoneEvery: 10,
		OnOutcome:      func(models.FetchOutcome) { hookCalls++ },
	}, log)

	res := d.Dispatch(context.Background(), makeItems(25))
	require.Equal(t, 25, res.SuccessCount)
	assert.Equal(t, 25, hookCalls)

	var milestones int
	for _, m := range log.GetMessages() {
		if m.Message == "Download milestone reached" {
			milestones++
		}
	}
	assert.Equal(t, 2, milestones)
}

func TestDispatchEmptyAndZeroConcurrency(t *testing.T) {
	d := NewDispatcher(NewMockProcessor(), Config{Concurrency: 0}, logger.NewNopLogger())
	res := d.Dispatch(context.Background(), nil)
	assert.Zero(t, res.SuccessCount)
	assert.Zero(t, res.Submitted)

	res = d.Dispatch(context.Background(), makeItems(3))
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, 1, d.Peak())
}

func TestDispatchPeakIsPerBatch(t *testing.T) {
	proc := NewMockProcessor()
	proc.delay = func() time.Duration { return 20 * time.Millisecond }
	d := NewDispatcher(proc, Config{Concurrency: 4}, logger.NewNopLogger())

	d.Dispatch(context.Background(), makeItems(8))
	require.GreaterOrEqual(t, d.Peak(), 2)

	res := d.Dispatch(context.Background(), makeItems(1))
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, d.Peak())
	assert.Zero(t, d.InFlight())
}

func TestDispatchCancelledContextStillSubmitsAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	proc := ProcessorFunc(func(ctx context.Context, item models.ItemRecord) models.FetchOutcome {
		calls.Add(1)
		return models.FetchOutcome{ID: item.ID, Err: ctx.Err()}
	})
	d := NewDispatcher(proc, Config{Concurrency: 2}, logger.NewNopLogger())

	res := d.Dispatch(ctx, makeItems(6))
	assert.EqualValues(t, 6, calls.Load())
	assert.Equal(t, 6, res.Failed)
}
