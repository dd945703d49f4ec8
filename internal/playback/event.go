package playback

import "time"

// EventKind identifies a playback notification.
type EventKind string

const (
	EventStarted     EventKind = "started"
	EventItemAdded   EventKind = "item_added"
	EventItemSkipped EventKind = "item_skipped"
	EventStopped     EventKind = "stopped"
	EventFinished    EventKind = "finished"
)

// Event describes something that happened during a run. At is measured from
// the run start; Index is the position of ItemID in the solver result (-1 for
// run-level events).
type Event struct {
	RunID     string        `json:"runId"`
	Kind      EventKind     `json:"kind"`
	Algorithm string        `json:"algorithm"`
	ItemID    int           `json:"itemId"`
	Index     int           `json:"index"`
	At        time.Duration `json:"at"`
}

// Observer receives every playback event. Observers are called synchronously
// from the scheduler and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f(evt).
func (f ObserverFunc) Observe(evt Event) {
	f(evt)
}
