package playback

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
)

type call struct {
	Op string
	ID int
	At time.Duration
}

// recordingInstance logs every collaborator call with the scheduler time.
type recordingInstance struct {
	clock    Scheduler
	items    []knapsack.Item
	capacity int

	mu    sync.Mutex
	calls []call
}

func newRecordingInstance(clock Scheduler) *recordingInstance {
	return &recordingInstance{
		clock: clock,
		items: []knapsack.Item{
			{ID: 0, Label: "ETC", Size: 64, Profit: 16},
			{ID: 1, Label: "NEO", Size: 40, Profit: 54},
			{ID: 2, Label: "ZEC", Size: 12, Profit: 199},
			{ID: 3, Label: "VERI", Size: 30, Profit: 138},
			{ID: 4, Label: "XMR", Size: 45, Profit: 190},
			{ID: 5, Label: "LTC", Size: 16, Profit: 123},
		},
		capacity: 64,
	}
}

func (r *recordingInstance) Items() []knapsack.Item { return r.items }

func (r *recordingInstance) Capacity() int { return r.capacity }

func (r *recordingInstance) Reset() { r.record("reset", -1) }

func (r *recordingInstance) AddItem(id int) { r.record("add", id) }

func (r *recordingInstance) Finished() { r.record("finished", -1) }

func (r *recordingInstance) record(op string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{Op: op, ID: id, At: r.clock.Now()})
}

func (r *recordingInstance) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

// fixedAlgorithm always returns the same selection.
type fixedAlgorithm []int

func (f fixedAlgorithm) Solve([]knapsack.Item, int) []int {
	return append([]int{}, f...)
}

func (f fixedAlgorithm) DisplayName() string {
	return "Fixed"
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(evt Event) {
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
}

func (l *eventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func newTestPlayer(t *testing.T, opts ...Option) (*Player, *VirtualScheduler, *recordingInstance) {
	t.Helper()

	sched := NewVirtualScheduler()
	inst := newRecordingInstance(sched)
	base := []Option{
		WithDelays(300*time.Millisecond, 700*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
		WithRunIDs(func() string { return "run-1" }),
	}
	return NewPlayer(inst, sched, append(base, opts...)...), sched, inst
}

func TestPlayerSchedulesItemsAndFinish(t *testing.T) {
	player, sched, inst := newTestPlayer(t)

	info, err := player.Start(fixedAlgorithm{7, 3, 9})
	require.NoError(t, err)
	assert.Equal(t, []int{7, 3, 9}, info.ItemIDs)
	assert.Equal(t, "Fixed", info.Algorithm)

	// reset happens synchronously, nothing else before the first deadline
	assert.Equal(t, []call{{Op: "reset", ID: -1, At: 0}}, inst.Calls())
	sched.Advance(299 * time.Millisecond)
	assert.Len(t, inst.Calls(), 1)

	sched.RunUntilIdle()
	assert.Equal(t, []call{
		{Op: "reset", ID: -1, At: 0},
		{Op: "add", ID: 7, At: 300 * time.Millisecond},
		{Op: "add", ID: 3, At: 1000 * time.Millisecond},
		{Op: "add", ID: 9, At: 1700 * time.Millisecond},
		{Op: "finished", ID: -1, At: 1700 * time.Millisecond},
	}, inst.Calls())
	assert.False(t, player.Active())
}

func TestPlayerEmptyResultFinishesAfterInitialDelay(t *testing.T) {
	player, sched, inst := newTestPlayer(t)

	_, err := player.Start(fixedAlgorithm{})
	require.NoError(t, err)

	sched.RunUntilIdle()
	assert.Equal(t, []call{
		{Op: "reset", ID: -1, At: 0},
		{Op: "finished", ID: -1, At: 300 * time.Millisecond},
	}, inst.Calls())
}

func TestPlayerStopSuppressesRemainingItems(t *testing.T) {
	events := &eventLog{}
	player, sched, inst := newTestPlayer(t, WithObserver(events))

	_, err := player.Start(fixedAlgorithm{7, 3, 9})
	require.NoError(t, err)

	sched.Advance(300 * time.Millisecond)
	require.True(t, player.Stop())
	assert.False(t, player.Stop(), "second stop is a no-op")
	assert.Equal(t, StateStopped, player.Status().State)

	// cancelled timers are not removed: item 3, item 9 and finish stay queued
	// next to the stopped notification
	assert.Equal(t, 4, sched.Pending())
	fired := sched.RunUntilIdle()
	assert.Equal(t, 4, fired)

	assert.Equal(t, []call{
		{Op: "reset", ID: -1, At: 0},
		{Op: "add", ID: 7, At: 300 * time.Millisecond},
		{Op: "finished", ID: -1, At: 1700 * time.Millisecond},
	}, inst.Calls())

	kinds := make([]EventKind, 0)
	for _, evt := range events.Events() {
		kinds = append(kinds, evt.Kind)
	}
	assert.Equal(t, []EventKind{
		EventStarted, EventItemAdded, EventStopped, EventItemSkipped, EventItemSkipped, EventFinished,
	}, kinds)

	status := player.Status()
	assert.Equal(t, StateIdle, status.State)
	require.NotNil(t, status.Last)
	assert.True(t, status.Last.Stopped)
	assert.True(t, status.Last.Finished)
	assert.Equal(t, 1, status.Last.Delivered)
	assert.Equal(t, 2, status.Last.Skipped)
}

func TestPlayerStopEventPrecedesDueTimers(t *testing.T) {
	events := &eventLog{}
	var player *Player
	stopOnFirstItem := ObserverFunc(func(evt Event) {
		if evt.Kind == EventItemAdded {
			player.Stop()
		}
	})
	// every timer of the run shares one deadline, so item 3 and finish are
	// already due when Stop queues its notification
	player, sched, inst := newTestPlayer(t,
		WithDelays(300*time.Millisecond, 0),
		WithObserver(events),
		WithObserver(stopOnFirstItem),
	)

	_, err := player.Start(fixedAlgorithm{7, 3})
	require.NoError(t, err)
	sched.RunUntilIdle()

	kinds := make([]EventKind, 0)
	for _, evt := range events.Events() {
		kinds = append(kinds, evt.Kind)
	}
	assert.Equal(t, []EventKind{
		EventStarted, EventItemAdded, EventStopped, EventItemSkipped, EventFinished,
	}, kinds)
	assert.Equal(t, 300*time.Millisecond, events.Events()[2].At)
	assert.Equal(t, []call{
		{Op: "reset", ID: -1, At: 0},
		{Op: "add", ID: 7, At: 300 * time.Millisecond},
		{Op: "finished", ID: -1, At: 300 * time.Millisecond},
	}, inst.Calls())
	assert.Zero(t, sched.Pending(), "the stop timer is a no-op once notified")
}

func TestPlayerRejectsStartWhileActive(t *testing.T) {
	player, sched, inst := newTestPlayer(t)

	_, err := player.Start(fixedAlgorithm{1})
	require.NoError(t, err)

	_, err = player.Start(fixedAlgorithm{2})
	assert.ErrorIs(t, err, ErrRunActive)

	player.Stop()
	_, err = player.Start(fixedAlgorithm{2})
	assert.ErrorIs(t, err, ErrRunActive, "a stopped run is pending until finished fires")
	assert.Len(t, inst.Calls(), 1, "rejected starts must not reset the instance")

	sched.RunUntilIdle()
	_, err = player.Start(fixedAlgorithm{2})
	assert.NoError(t, err)
}

func TestPlayerStopWhenIdle(t *testing.T) {
	player, _, _ := newTestPlayer(t)

	assert.False(t, player.Stop())
	assert.Equal(t, Status{State: StateIdle}, player.Status())
}

func TestPlayerTimesRelativeToRunStart(t *testing.T) {
	player, sched, inst := newTestPlayer(t)
	sched.Advance(5 * time.Second)

	info, err := player.Start(fixedAlgorithm{4, 2})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, info.StartedAt)

	sched.RunUntilIdle()
	assert.Equal(t, []call{
		{Op: "reset", ID: -1, At: 5 * time.Second},
		{Op: "add", ID: 4, At: 5300 * time.Millisecond},
		{Op: "add", ID: 2, At: 6 * time.Second},
		{Op: "finished", ID: -1, At: 6 * time.Second},
	}, inst.Calls())
}

func TestPlayerStatusWhileRunning(t *testing.T) {
	player, sched, _ := newTestPlayer(t)

	_, err := player.Start(fixedAlgorithm{1, 2})
	require.NoError(t, err)
	sched.Advance(300 * time.Millisecond)

	status := player.Status()
	assert.Equal(t, StateRunning, status.State)
	require.NotNil(t, status.Current)
	assert.Equal(t, "run-1", status.Current.ID)
	assert.Equal(t, 1, status.Current.Delivered)
	assert.Nil(t, status.Last)
	assert.True(t, player.Active())
}

func TestPlayerDefaultsAndRunIDs(t *testing.T) {
	sched := NewVirtualScheduler()
	inst := newRecordingInstance(sched)
	player := NewPlayer(inst, sched)

	info, err := player.Start(fixedAlgorithm{1})
	require.NoError(t, err)
	assert.Len(t, info.ID, 36)

	sched.RunUntilIdle()
	calls := inst.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, DefaultInitialDelay, calls[1].At)
	assert.Equal(t, DefaultInitialDelay, calls[2].At)
}

func TestPlayerGreedyTimeline(t *testing.T) {
	events := &eventLog{}
	player, sched, _ := newTestPlayer(t, WithObserver(events))

	_, err := player.Start(knapsack.NewGreedy())
	require.NoError(t, err)
	sched.RunUntilIdle()

	var buf bytes.Buffer
	for _, evt := range events.Events() {
		fmt.Fprintf(&buf, "%s %s %s item=%d index=%d\n", evt.At, evt.Algorithm, evt.Kind, evt.ItemID, evt.Index)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "greedy_crypto_timeline", buf.Bytes())
}
