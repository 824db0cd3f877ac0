package aggregates

import "sync"

// Observer is notified after every successful graph mutation, in mutation
// order. Implementations must not mutate the graph from inside the callback;
// hand the snapshot to another goroutine if follow-up work is needed.
type Observer interface {
	OnGraphChanged(snapshot GraphSnapshot)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(snapshot GraphSnapshot)

// OnGraphChanged implements Observer
func (f ObserverFunc) OnGraphChanged(snapshot GraphSnapshot) {
	f(snapshot)
}

// ChannelObserver forwards snapshots to a channel without ever blocking the
// store. When the consumer lags, the pending snapshot is replaced by the
// newer one, so a slow renderer only ever sees the latest state.
type ChannelObserver struct {
	mu sync.Mutex
	ch chan GraphSnapshot
}

// NewChannelObserver creates a ChannelObserver
func NewChannelObserver() *ChannelObserver {
	return &ChannelObserver{ch: make(chan GraphSnapshot, 1)}
}

// C returns the channel snapshots are delivered on
func (o *ChannelObserver) C() <-chan GraphSnapshot {
	return o.ch
}

// OnGraphChanged implements Observer
func (o *ChannelObserver) OnGraphChanged(snapshot GraphSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	select {
	case o.ch <- snapshot:
		return
	default:
	}

	// drop the stale pending snapshot
	select {
	case <-o.ch:
	default:
	}
	o.ch <- snapshot
}
