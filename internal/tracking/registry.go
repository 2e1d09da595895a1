package tracking

import "sync"

// Registry holds one Tracker per active order for the HTTP ingest path,
// where each device sample arrives as its own request. Trackers are removed
// when the order leaves preparing/ready so no further writes occur.
type Registry struct {
	mu       sync.Mutex
	trackers map[int64]*Tracker
}

func NewRegistry() *Registry {
	return &Registry{trackers: map[int64]*Tracker{}}
}

// GetOrCreate returns the tracker for an order, creating it against the
// cafe's fixed coordinates on first use.
func (r *Registry) GetOrCreate(orderID int64, cafeLat, cafeLng float64) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[orderID]
	if !ok {
		t = NewTracker(cafeLat, cafeLng)
		r.trackers[orderID] = t
	}
	return t
}

// Remove tears down the tracker for an order. Idempotent.
func (r *Registry) Remove(orderID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, orderID)
}
