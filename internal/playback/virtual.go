package playback

import (
	"sync"
	"time"
)

// VirtualScheduler is a Scheduler driven by logical time. Nothing fires until
// Advance or RunUntilIdle is called, which makes playback deterministic in
// tests and simulations.
type VirtualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	queue   timerQueue
	nextSeq uint64
}

// NewVirtualScheduler returns a scheduler whose clock starts at zero.
func NewVirtualScheduler() *VirtualScheduler {
	return &VirtualScheduler{}
}

// Now returns the current logical time.
func (v *VirtualScheduler) Now() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// ScheduleAt queues fn for the logical time at. Deadlines in the past fire on
// the next Advance.
func (v *VirtualScheduler) ScheduleAt(at time.Duration, fn func()) {
	v.mu.Lock()
	v.nextSeq++
	v.queue.schedule(timer{at: at, seq: v.nextSeq, fn: fn})
	v.mu.Unlock()
}

// Pending returns the number of queued callbacks.
func (v *VirtualScheduler) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.queue.Len()
}

// Advance moves the clock forward by d, running every callback that becomes
// due in deadline order. While a callback runs, Now reports its deadline.
// It returns the number of callbacks run.
func (v *VirtualScheduler) Advance(d time.Duration) int {
	v.mu.Lock()
	target := v.now + d
	v.mu.Unlock()
	return v.runUntil(target)
}

// RunUntilIdle runs callbacks until the queue is empty, including callbacks
// scheduled by other callbacks, leaving the clock at the last deadline.
func (v *VirtualScheduler) RunUntilIdle() int {
	fired := 0
	for {
		v.mu.Lock()
		at, ok := v.queue.next()
		v.mu.Unlock()
		if !ok {
			return fired
		}
		fired += v.runUntil(max(at, v.Now()))
	}
}

func (v *VirtualScheduler) runUntil(target time.Duration) int {
	fired := 0
	for {
		v.mu.Lock()
		t, ok := v.queue.popDue(target)
		if !ok {
			if v.now < target {
				v.now = target
			}
			v.mu.Unlock()
			return fired
		}
		if t.at > v.now {
			v.now = t.at
		}
		v.mu.Unlock()

		t.fn()
		fired++
	}
}
