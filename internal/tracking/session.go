package tracking

import (
	"log"
	"sync"
)

// WriteFunc persists one throttled update to the order record.
type WriteFunc func(Update) error

// Session subscribes a Tracker to a location sample stream and persists the
// updates that clear the throttle. It models the device-side watcher as a
// cancellable subscription: Stop tears the stream down explicitly and
// guarantees no further writes once it returns. A new Session can be started
// later against the same order (restartable).
type Session struct {
	tracker *Tracker
	samples <-chan Sample
	write   WriteFunc

	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func NewSession(tracker *Tracker, samples <-chan Sample, write WriteFunc) *Session {
	return &Session{
		tracker:  tracker,
		samples:  samples,
		write:    write,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start consumes samples on a new goroutine until the stream closes or Stop
// is called. Each sample is handled independently; at most one write is
// outstanding at a time.
func (s *Session) Start() {
	go s.run()
}

func (s *Session) run() {
	defer close(s.finished)
	for {
		select {
		case <-s.done:
			return
		case sample, ok := <-s.samples:
			if !ok {
				return
			}
			// Re-check teardown before writing; a Stop racing the sample
			// channel must win.
			select {
			case <-s.done:
				return
			default:
			}
			upd, persist := s.tracker.Observe(sample)
			if !persist {
				continue
			}
			if err := s.write(upd); err != nil {
				// A failed write degrades to "distance unknown" on the
				// merchant side; it never tears the session down.
				log.Printf("tracking: failed to persist update: %v", err)
			}
		}
	}
}

// Stop tears the subscription down and blocks until the consuming goroutine
// has exited, so callers know no write can land afterward. Safe to call more
// than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.finished
}
