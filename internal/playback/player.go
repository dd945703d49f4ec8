package playback

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eugenenazirov/cryptoknapsack/internal/knapsack"
)

const (
	// DefaultInitialDelay is the pause between Start and the first notification.
	DefaultInitialDelay = 300 * time.Millisecond
	// DefaultStepDelay separates consecutive item notifications.
	DefaultStepDelay = 700 * time.Millisecond
)

// Instance is the collaborator a Player drives, usually the presentation layer.
type Instance interface {
	Items() []knapsack.Item
	Capacity() int
	// Reset clears the current selection and must be idempotent.
	Reset()
	AddItem(id int)
	Finished()
}

// State is the lifecycle state of a Player.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	// StateStopped means the run was cancelled but its terminal notification
	// has not fired yet.
	StateStopped State = "stopped"
)

// RunInfo describes a playback run.
type RunInfo struct {
	ID        string        `json:"id"`
	Algorithm string        `json:"algorithm"`
	ItemIDs   []int         `json:"itemIds"`
	StartedAt time.Duration `json:"startedAt"`
	Delivered int           `json:"delivered"`
	Skipped   int           `json:"skipped"`
	Stopped   bool          `json:"stopped"`
	Finished  bool          `json:"finished"`
}

// Status is a snapshot of the Player.
type Status struct {
	State   State    `json:"state"`
	Current *RunInfo `json:"current,omitempty"`
	Last    *RunInfo `json:"last,omitempty"`
}

// Option configures a Player.
type Option func(*Player)

// WithDelays overrides the initial and per-item delays. Negative values are
// treated as zero.
func WithDelays(initial, step time.Duration) Option {
	return func(p *Player) {
		p.initialDelay = max(initial, 0)
		p.stepDelay = max(step, 0)
	}
}

// WithLogger sets the logger used for run lifecycle messages.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Player) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers an observer for playback events.
func WithObserver(o Observer) Option {
	return func(p *Player) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// WithRunIDs overrides the run id generator, primarily for tests.
func WithRunIDs(next func() string) Option {
	return func(p *Player) {
		p.newRunID = next
	}
}

// Player orchestrates playback runs against a single Instance. At most one run
// is active at a time; Start is rejected until the active run has delivered
// its terminal notification.
type Player struct {
	instance     Instance
	scheduler    Scheduler
	initialDelay time.Duration
	stepDelay    time.Duration
	logger       *zap.Logger
	observers    []Observer
	newRunID     func() string

	mu      sync.Mutex
	current *run
	last    *run
}

type run struct {
	info    RunInfo
	stopped bool
	// stopAt is the run-relative time Stop was called.
	stopAt       time.Duration
	stopNotified bool
}

// NewPlayer creates a Player that drives instance using scheduler.
func NewPlayer(instance Instance, scheduler Scheduler, opts ...Option) *Player {
	p := &Player{
		instance:     instance,
		scheduler:    scheduler,
		initialDelay: DefaultInitialDelay,
		stepDelay:    DefaultStepDelay,
		logger:       zap.NewNop(),
		newRunID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start resets the instance, solves it with alg and schedules the resulting
// notifications. It returns ErrRunActive, without touching the instance, when
// a run is still pending.
func (p *Player) Start(alg knapsack.Algorithm) (RunInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return RunInfo{}, ErrRunActive
	}

	p.instance.Reset()
	ids := alg.Solve(p.instance.Items(), p.instance.Capacity())

	r := &run{info: RunInfo{
		ID:        p.newRunID(),
		Algorithm: alg.DisplayName(),
		ItemIDs:   cloneIDs(ids),
		StartedAt: p.scheduler.Now(),
	}}
	p.current = r

	// The start event goes through the scheduler so observers see it before
	// any item of the run.
	p.scheduler.ScheduleAt(r.info.StartedAt, func() {
		p.emit(Event{RunID: r.info.ID, Kind: EventStarted, Algorithm: r.info.Algorithm, ItemID: -1, Index: -1})
	})
	for index, id := range ids {
		p.scheduler.ScheduleAt(r.info.StartedAt+p.itemOffset(index), func() {
			p.deliverItem(r, index, id)
		})
	}
	p.scheduler.ScheduleAt(r.info.StartedAt+p.finishOffset(len(ids)), func() {
		p.deliverFinished(r)
	})

	p.logger.Info("playback started",
		zap.String("run_id", r.info.ID),
		zap.String("algorithm", r.info.Algorithm),
		zap.Ints("item_ids", ids),
	)

	return cloneInfo(r.info), nil
}

// Stop cancels the running run. Pending item notifications still fire but no
// longer reach the instance; Finished is delivered as scheduled. It reports
// whether a running run was stopped.
//
// The stopped event is emitted by the scheduler, ahead of every later event
// of the run.
func (p *Player) Stop() bool {
	p.mu.Lock()
	r := p.current
	if r == nil || r.stopped {
		p.mu.Unlock()
		return false
	}
	r.stopped = true
	r.info.Stopped = true
	now := p.scheduler.Now()
	r.stopAt = now - r.info.StartedAt
	p.mu.Unlock()

	p.logger.Info("playback stopped", zap.String("run_id", r.info.ID))
	p.scheduler.ScheduleAt(now, func() {
		p.notifyStopped(r)
	})
	return true
}

// notifyStopped emits the stopped event of r once. Timers already due when
// Stop ran may fire before the stop timer, so they call it first.
func (p *Player) notifyStopped(r *run) {
	p.mu.Lock()
	if !r.stopped || r.stopNotified {
		p.mu.Unlock()
		return
	}
	r.stopNotified = true
	at := r.stopAt
	p.mu.Unlock()

	p.emit(Event{RunID: r.info.ID, Kind: EventStopped, Algorithm: r.info.Algorithm, ItemID: -1, Index: -1, At: at})
}

// Active reports whether a run is pending.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Status returns a snapshot of the current and the last completed run.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := Status{State: StateIdle}
	if p.current != nil {
		status.State = StateRunning
		if p.current.stopped {
			status.State = StateStopped
		}
		info := cloneInfo(p.current.info)
		status.Current = &info
	}
	if p.last != nil {
		info := cloneInfo(p.last.info)
		status.Last = &info
	}
	return status
}

func (p *Player) itemOffset(index int) time.Duration {
	return p.initialDelay + time.Duration(index)*p.stepDelay
}

// finishOffset coincides with the last item; an empty run finishes after the
// initial delay.
func (p *Player) finishOffset(count int) time.Duration {
	if count == 0 {
		return p.initialDelay
	}
	return p.itemOffset(count - 1)
}

func (p *Player) deliverItem(r *run, index, id int) {
	p.mu.Lock()
	stopped := r.stopped
	if stopped {
		r.info.Skipped++
	} else {
		r.info.Delivered++
	}
	at := p.scheduler.Now() - r.info.StartedAt
	p.mu.Unlock()

	evt := Event{RunID: r.info.ID, Algorithm: r.info.Algorithm, ItemID: id, Index: index, At: at}
	if stopped {
		p.notifyStopped(r)
		p.logger.Debug("skipping item of stopped run", zap.String("run_id", r.info.ID), zap.Int("item_id", id))
		evt.Kind = EventItemSkipped
		p.emit(evt)
		return
	}

	p.instance.AddItem(id)
	evt.Kind = EventItemAdded
	p.emit(evt)
}

func (p *Player) deliverFinished(r *run) {
	p.notifyStopped(r)
	p.instance.Finished()

	p.mu.Lock()
	r.info.Finished = true
	if p.current == r {
		p.current = nil
	}
	p.last = r
	at := p.scheduler.Now() - r.info.StartedAt
	info := cloneInfo(r.info)
	p.mu.Unlock()

	p.logger.Info("playback finished",
		zap.String("run_id", info.ID),
		zap.Int("delivered", info.Delivered),
		zap.Int("skipped", info.Skipped),
		zap.Bool("stopped", info.Stopped),
	)
	p.emit(Event{RunID: info.ID, Kind: EventFinished, Algorithm: info.Algorithm, ItemID: -1, Index: -1, At: at})
}

func (p *Player) emit(evt Event) {
	for _, o := range p.observers {
		o.Observe(evt)
	}
}

func cloneInfo(info RunInfo) RunInfo {
	info.ItemIDs = cloneIDs(info.ItemIDs)
	return info
}

func cloneIDs(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}
