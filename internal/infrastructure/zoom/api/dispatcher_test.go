// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

func TestDispatcher_PacesCallsWithinCategory(t *testing.T) {
	const interval = 30 * time.Millisecond
	d := NewDispatcher(clock.Real(), map[Category]time.Duration{CategoryReport: interval})

	const calls = 4
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Acquire(context.Background(), CategoryReport, 0))
		}()
	}
	wg.Wait()

	// float rounding in the limiter may shave a few nanoseconds
	assert.GreaterOrEqual(t, time.Since(start), (calls-1)*interval-time.Millisecond)
}

func TestDispatcher_CategoriesAreIndependent(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	d := NewDispatcher(clk, map[Category]time.Duration{CategoryReport: time.Hour})
	ctx := context.Background()

	require.NoError(t, d.Acquire(ctx, CategoryReport, 0))
	// the report lane is now closed for an hour of fake time
	require.NoError(t, d.Acquire(ctx, CategoryMeeting, 0))
	require.NoError(t, d.Acquire(ctx, CategoryUser, 0))
}

func TestDispatcher_LowerPriorityNumberDispatchesFirst(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	d := NewDispatcher(clk, map[Category]time.Duration{CategoryReport: time.Second})
	ctx := context.Background()

	require.NoError(t, d.Acquire(ctx, CategoryReport, 0))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for _, priority := range []int{10, 5, 0} {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			if err := d.Acquire(ctx, CategoryReport, p); err == nil {
				mu.Lock()
				order = append(order, p)
				mu.Unlock()
			}
		}(priority)
	}

	require.Eventually(t, func() bool {
		return d.Queued(CategoryReport) == 3 && clk.Pending() == 1
	}, time.Second, time.Millisecond)

	for i := 1; i <= 3; i++ {
		clk.Advance(time.Second)
		want := i
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(order) == want
		}, time.Second, time.Millisecond)
		if i < 3 {
			require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
		}
	}
	wg.Wait()

	assert.Equal(t, []int{0, 5, 10}, order)
}

func TestDispatcher_CancelledCallerLeavesQueue(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	d := NewDispatcher(clk, map[Category]time.Duration{CategoryReport: time.Minute})

	require.NoError(t, d.Acquire(context.Background(), CategoryReport, 0))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Acquire(ctx, CategoryReport, 0) }()

	require.Eventually(t, func() bool { return d.Queued(CategoryReport) == 1 }, time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, 0, d.Queued(CategoryReport))
}
