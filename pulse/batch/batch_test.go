package batch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunCollectsEveryItem(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	got := map[int]string{}

	stats := Run(context.Background(), items, Options[string, string]{Workers: 2},
		func(ctx context.Context, i int, s string) string { return s + s },
		func(i int, r string) { got[i] = r })

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Workers)
	assert.Zero(t, stats.Panics)
	assert.Equal(t, map[int]string{0: "aa", 1: "bb", 2: "cc", 3: "dd", 4: "ee"}, got)
}

func TestRunConcurrencyBound(t *testing.T) {
	items := make([]int, 10)
	var inFlight, peak atomic.Int64

	collected := 0
	stats := Run(context.Background(), items, Options[int, int]{Workers: 3},
		func(ctx context.Context, i int, _ int) int {
			n := inFlight.Add(1)
			observePeak(&peak, n)
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return i
		},
		func(int, int) { collected++ })

	assert.Equal(t, 10, collected)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.LessOrEqual(t, stats.PeakInFlight, 3)
	assert.GreaterOrEqual(t, stats.PeakInFlight, 1)
}

func TestRunSlowItemDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	var collected atomic.Int64

	go func() {
		// the hung item is released only after the others were collected
		for collected.Load() < 4 {
			time.Sleep(time.Millisecond)
		}
		close(release)
	}()

	var order []int
	Run(context.Background(), []int{0, 1, 2, 3, 4}, Options[int, int]{Workers: 2},
		func(ctx context.Context, i int, _ int) int {
			if i == 0 {
				<-release
			}
			return i
		},
		func(i int, _ int) {
			order = append(order, i)
			collected.Add(1)
		})

	require.Len(t, order, 5)
	assert.Equal(t, 0, order[4])
}

func TestRunRecoversPanics(t *testing.T) {
	got := map[int]string{}
	stats := Run(context.Background(), []int{0, 1, 2}, Options[int, string]{
		Workers: 2,
		Logger:  zap.NewNop().Sugar(),
		OnPanic: func(i int, _ int, cause interface{}) string { return "recovered" },
	},
		func(ctx context.Context, i int, _ int) string {
			if i == 1 {
				panic("bad record")
			}
			return "ok"
		},
		func(i int, r string) { got[i] = r })

	assert.Equal(t, 1, stats.Panics)
	assert.Equal(t, map[int]string{0: "ok", 1: "recovered", 2: "ok"}, got)
}

func TestRunPanicWithoutHandlerYieldsZero(t *testing.T) {
	var got []int
	Run(context.Background(), []int{7}, Options[int, int]{},
		func(context.Context, int, int) int { panic("boom") },
		func(_ int, r int) { got = append(got, r) })
	assert.Equal(t, []int{0}, got)
}

func TestRunEmpty(t *testing.T) {
	called := false
	stats := Run(context.Background(), nil, Options[int, int]{},
		func(context.Context, int, int) int { return 0 },
		func(int, int) { called = true })
	assert.False(t, called)
	assert.Zero(t, stats.Total)
	assert.Equal(t, DefaultWorkers, stats.Workers)
}

func TestCalculateSafeWorkerCount(t *testing.T) {
	assert.Equal(t, 1, calculateSafeWorkerCount(0.5))
	assert.Equal(t, 1, calculateSafeWorkerCount(1.1))
	assert.Equal(t, 4, calculateSafeWorkerCount(2.0))
	assert.Equal(t, 64, calculateSafeWorkerCount(512))
}

func TestGetMemoryStats(t *testing.T) {
	total, available, err := getMemoryStats()
	if err != nil {
		t.Skipf("memory stats unavailable: %v", err)
	}
	assert.NotZero(t, total)
	assert.LessOrEqual(t, available, total)

	m := GetSystemMetrics(3)
	assert.Equal(t, 3, m.Workers)
	assert.GreaterOrEqual(t, m.Recommended, 1)
}
