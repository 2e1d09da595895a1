package alerts

import (
	"sync"
	"time"
)

// NotifyFunc re-alerts the cafe about an order that is still pending.
type NotifyFunc func(orderID int64)

// Repeater re-notifies a cafe about an unactioned pending order on a fixed
// interval until the order is accepted or declined. It is an explicit
// stateful service with Start/Stop per order, owned by whoever drives the
// merchant flow, rather than a shared module-level timer.
type Repeater struct {
	interval time.Duration
	notify   NotifyFunc

	mu     sync.Mutex
	active map[int64]chan struct{}
}

func NewRepeater(interval time.Duration, notify NotifyFunc) *Repeater {
	return &Repeater{
		interval: interval,
		notify:   notify,
		active:   map[int64]chan struct{}{},
	}
}

// Start begins repeating alerts for an order. Calling Start for an order
// that is already alerting is a no-op.
func (r *Repeater) Start(orderID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[orderID]; ok {
		return
	}
	stop := make(chan struct{})
	r.active[orderID] = stop

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.notify(orderID)
			}
		}
	}()
}

// Stop ends the alerts for an order. Idempotent.
func (r *Repeater) Stop(orderID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.active[orderID]; ok {
		close(stop)
		delete(r.active, orderID)
	}
}

// StopAll tears down every active alert loop (server shutdown).
func (r *Repeater) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, stop := range r.active {
		close(stop)
		delete(r.active, id)
	}
}
