package playback

import (
	"container/heap"
	"time"
)

// Scheduler runs deferred callbacks against a monotonic clock.
//
// Deadlines are absolute offsets from the scheduler's epoch. Callbacks with
// equal deadlines run in the order they were scheduled, and a scheduler never
// runs two callbacks at the same time.
type Scheduler interface {
	Now() time.Duration
	ScheduleAt(at time.Duration, fn func())
}

type timer struct {
	at  time.Duration
	seq uint64
	fn  func()
}

// timerQueue implements heap.Interface and orders timers by deadline, then by
// scheduling sequence.
type timerQueue []timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x any) {
	*q = append(*q, x.(timer))
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = timer{}
	*q = old[:n-1]
	return item
}

func (q *timerQueue) schedule(t timer) {
	heap.Push(q, t)
}

// popDue removes and returns the earliest timer if its deadline is not after now.
func (q *timerQueue) popDue(now time.Duration) (timer, bool) {
	if q.Len() == 0 || (*q)[0].at > now {
		return timer{}, false
	}
	return heap.Pop(q).(timer), true
}

func (q timerQueue) next() (time.Duration, bool) {
	if len(q) == 0 {
		return 0, false
	}
	return q[0].at, true
}
