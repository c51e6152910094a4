// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/linuxfoundation/lfx-v2-meeting-attendance/pkg/clock"
)

// Category groups Zoom endpoints that share a minimum call interval.
type Category string

// Call categories. Report endpoints are throttled hardest by Zoom.
const (
	CategoryMeeting Category = "meeting"
	CategoryReport  Category = "report"
	CategoryUser    Category = "user"
	CategoryDefault Category = "default"
)

// Default minimum intervals between two dispatches of the same category.
const (
	DefaultMeetingInterval = 100 * time.Millisecond
	DefaultReportInterval  = 1 * time.Second
	DefaultUserInterval    = 200 * time.Millisecond
	DefaultDefaultInterval = 250 * time.Millisecond
)

// DefaultIntervals returns the default interval per category.
func DefaultIntervals() map[Category]time.Duration {
	return map[Category]time.Duration{
		CategoryMeeting: DefaultMeetingInterval,
		CategoryReport:  DefaultReportInterval,
		CategoryUser:    DefaultUserInterval,
		CategoryDefault: DefaultDefaultInterval,
	}
}

// ticket is one caller waiting for a dispatch slot.
type ticket struct {
	priority int
	seq      uint64
	index    int
	ready    chan struct{}
	granted  bool
}

// ticketQueue orders tickets by priority, then arrival.
type ticketQueue []*ticket

func (q ticketQueue) Len() int { return len(q) }

func (q ticketQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q ticketQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *ticketQueue) Push(x any) {
	t := x.(*ticket)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *ticketQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// lane paces one category. A pump goroutine runs while tickets are queued.
type lane struct {
	mu      sync.Mutex
	queue   ticketQueue
	limiter *rate.Limiter
	running bool
	seq     uint64
}

// Dispatcher hands out dispatch slots per category so that two calls of the
// same category are at least the category interval apart. Waiting callers are
// released lowest priority number first, FIFO within a priority.
type Dispatcher struct {
	clock clock.Clock
	lanes map[Category]*lane
}

// NewDispatcher creates a dispatcher. Categories missing from intervals use
// the default category interval; a zero interval disables pacing.
func NewDispatcher(clk clock.Clock, intervals map[Category]time.Duration) *Dispatcher {
	if clk == nil {
		clk = clock.Real()
	}
	merged := DefaultIntervals()
	for category, interval := range intervals {
		merged[category] = interval
	}

	d := &Dispatcher{clock: clk, lanes: make(map[Category]*lane, len(merged))}
	for category, interval := range merged {
		limit := rate.Inf
		if interval > 0 {
			limit = rate.Every(interval)
		}
		d.lanes[category] = &lane{limiter: rate.NewLimiter(limit, 1)}
	}
	return d
}

func (d *Dispatcher) lane(category Category) *lane {
	if l, ok := d.lanes[category]; ok {
		return l
	}
	return d.lanes[CategoryDefault]
}

// Acquire blocks until the caller may dispatch a call of the given category.
func (d *Dispatcher) Acquire(ctx context.Context, category Category, priority int) error {
	l := d.lane(category)

	l.mu.Lock()
	l.seq++
	t := &ticket{priority: priority, seq: l.seq, ready: make(chan struct{})}
	heap.Push(&l.queue, t)
	if !l.running {
		l.running = true
		go d.pump(l)
	}
	l.mu.Unlock()

	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		defer l.mu.Unlock()
		if t.granted {
			// the slot was handed out at the same moment, it is spent either way
			return ctx.Err()
		}
		heap.Remove(&l.queue, t.index)
		return ctx.Err()
	}
}

// Queued returns the number of callers waiting in a category.
func (d *Dispatcher) Queued(category Category) int {
	l := d.lane(category)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

func (d *Dispatcher) pump(l *lane) {
	for {
		l.mu.Lock()
		if l.queue.Len() == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()

		now := d.clock.Now()
		reservation := l.limiter.ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); delay > 0 {
			<-d.clock.After(delay)
		}

		l.mu.Lock()
		if l.queue.Len() == 0 {
			// every waiter gave up while we slept
			reservation.CancelAt(d.clock.Now())
			l.mu.Unlock()
			continue
		}
		t := heap.Pop(&l.queue).(*ticket)
		t.granted = true
		close(t.ready)
		l.mu.Unlock()
	}
}
