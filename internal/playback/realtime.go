package playback

import (
	"context"
	"sync"
	"time"
)

// RealtimeScheduler is a wall-clock Scheduler. A single driver goroutine,
// started with Run, owns the queue and runs callbacks one at a time.
type RealtimeScheduler struct {
	epoch time.Time

	mu      sync.Mutex
	queue   timerQueue
	nextSeq uint64

	wake chan struct{}
}

// NewRealtimeScheduler returns a scheduler whose epoch is the current time.
func NewRealtimeScheduler() *RealtimeScheduler {
	return &RealtimeScheduler{
		epoch: time.Now(),
		wake:  make(chan struct{}, 1),
	}
}

// Now returns the elapsed time since the scheduler was created.
func (r *RealtimeScheduler) Now() time.Duration {
	return time.Since(r.epoch)
}

// ScheduleAt queues fn to run once Now reaches at.
func (r *RealtimeScheduler) ScheduleAt(at time.Duration, fn func()) {
	r.mu.Lock()
	r.nextSeq++
	r.queue.schedule(timer{at: at, seq: r.nextSeq, fn: fn})
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of callbacks that have not fired yet.
func (r *RealtimeScheduler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Len()
}

// Run drives the queue until ctx is cancelled. Callbacks still queued at
// that point are dropped.
func (r *RealtimeScheduler) Run(ctx context.Context) error {
	for {
		r.mu.Lock()
		t, due := r.queue.popDue(r.Now())
		next, pending := r.queue.next()
		r.mu.Unlock()

		if due {
			t.fn()
			continue
		}

		var fire <-chan time.Time
		var wait *time.Timer
		if pending {
			wait = time.NewTimer(next - r.Now())
			fire = wait.C
		}

		select {
		case <-ctx.Done():
			if wait != nil {
				wait.Stop()
			}
			return ctx.Err()
		case <-r.wake:
		case <-fire:
		}
		if wait != nil {
			wait.Stop()
		}
	}
}
