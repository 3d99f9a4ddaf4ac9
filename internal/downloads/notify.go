package downloads

import (
	"sync"
	"time"
)

// notifyInterval is the trailing-edge coalescing window for routine progress
// notifications.
const notifyInterval = 100 * time.Millisecond

// notifier delivers snapshots to observers with trailing-edge throttling.
// Routine progress updates collapse to at most one delivery per interval;
// semantically important transitions (created, path resolved, paused,
// resumed, cancelled, completed, removed) bypass the throttle entirely so a
// terminal state is never displayed late.
type notifier struct {
	mu        sync.Mutex
	observers []func([]Snapshot)
	snapshot  func() []Snapshot
	interval  time.Duration
	timer     *time.Timer
	pending   bool
}

func newNotifier(snapshot func() []Snapshot, interval time.Duration) *notifier {
	if interval <= 0 {
		interval = notifyInterval
	}
	return &notifier{snapshot: snapshot, interval: interval}
}

// subscribe registers an observer for future snapshots.
func (n *notifier) subscribe(fn func([]Snapshot)) {
	n.mu.Lock()
	n.observers = append(n.observers, fn)
	n.mu.Unlock()
}

// notify schedules (or, for important transitions, immediately performs) a
// snapshot delivery.
func (n *notifier) notify(important bool) {
	n.mu.Lock()
	if important {
		if n.timer != nil {
			n.timer.Stop()
			n.timer = nil
		}
		n.pending = false
		n.mu.Unlock()
		n.deliver()
		return
	}

	if n.timer != nil {
		// A delivery is already scheduled; this update rides along.
		n.pending = true
		n.mu.Unlock()
		return
	}
	n.timer = time.AfterFunc(n.interval, n.fire)
	n.mu.Unlock()
}

func (n *notifier) fire() {
	n.mu.Lock()
	n.timer = nil
	again := n.pending
	n.pending = false
	n.mu.Unlock()

	n.deliver()

	// Updates that arrived during this window get one trailing delivery.
	if again {
		n.notify(false)
	}
}

func (n *notifier) deliver() {
	snap := n.snapshot()

	n.mu.Lock()
	observers := make([]func([]Snapshot), len(n.observers))
	copy(observers, n.observers)
	n.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// stop cancels any scheduled delivery.
func (n *notifier) stop() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.pending = false
	n.mu.Unlock()
}
