package tracking

import (
	"sync"
	"time"

	"github.com/curbsidehq/curbside-golang/internal/geo"
	"github.com/curbsidehq/curbside-golang/internal/models"
)

// Tuning constants for auto-share, arrival detection, and write throttling.
const (
	autoShareRadiusMeters = 2500.0
	autoShareEtaSeconds   = 300
	arrivedRadiusMeters   = 80.0
	minSpeedMPS           = 0.5

	// Throttle: a sample is persisted only when the customer has moved more
	// than minMoveMeters since the last persisted sample AND at least
	// minWriteInterval has elapsed. This bounds write volume to roughly one
	// write per interval during active approach, whatever the sample rate.
	minMoveMeters    = 15.0
	minWriteInterval = 12 * time.Second
)

// Sample is one raw location reading from the customer's device.
// SpeedMPS <= 0 means the device did not report a usable speed.
type Sample struct {
	Lat       float64   `json:"lat" binding:"required"`
	Lng       float64   `json:"lng" binding:"required"`
	SpeedMPS  float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

// Update is the computed state for one sample. Persist says whether it
// cleared the auto-share envelope and the write throttle; updates that
// should not be written are still returned so the device UI can show them.
type Update struct {
	Lat            float64
	Lng            float64
	DistanceMeters float64
	EtaSeconds     int64
	HasEta         bool
	ApproachState  string
	IsArriving     bool
	Timestamp      time.Time
}

// Tracker turns a stream of noisy location samples for one order into
// throttled, reliable proximity updates relative to the cafe's fixed
// coordinates. Safe for concurrent use: overlapping requests for the same
// order (a device retry racing the original) serialize on the mutex, so at
// most one of them wins the write throttle.
type Tracker struct {
	mu      sync.Mutex
	cafeLat float64
	cafeLng float64

	approachState string
	arriving      bool

	hasPersisted  bool
	lastLat       float64
	lastLng       float64
	lastWriteTime time.Time
}

func NewTracker(cafeLat, cafeLng float64) *Tracker {
	return &Tracker{
		cafeLat:       cafeLat,
		cafeLng:       cafeLng,
		approachState: models.ApproachNone,
	}
}

// Observe processes one sample and reports whether it should be persisted.
func (t *Tracker) Observe(s Sample) (Update, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	distance := geo.DistanceMeters(s.Lat, s.Lng, t.cafeLat, t.cafeLng)

	var etaSeconds int64
	hasEta := s.SpeedMPS > minSpeedMPS
	if hasEta {
		etaSeconds = int64(distance / s.SpeedMPS)
	}

	// Far-away noise is computed locally but kept off the merchant's screen.
	eligible := distance <= autoShareRadiusMeters || (hasEta && etaSeconds <= autoShareEtaSeconds)

	switch {
	case distance <= arrivedRadiusMeters:
		t.approachState = models.ApproachArrived
		t.arriving = true
	case eligible:
		t.approachState = models.ApproachApproaching
	}
	// Outside the envelope the approach state is left unchanged.

	upd := Update{
		Lat:            s.Lat,
		Lng:            s.Lng,
		DistanceMeters: distance,
		EtaSeconds:     etaSeconds,
		HasEta:         hasEta,
		ApproachState:  t.approachState,
		IsArriving:     t.arriving,
		Timestamp:      s.Timestamp,
	}

	if !eligible {
		return upd, false
	}

	if t.hasPersisted {
		moved := geo.DistanceMeters(s.Lat, s.Lng, t.lastLat, t.lastLng)
		elapsed := s.Timestamp.Sub(t.lastWriteTime)
		if moved <= minMoveMeters || elapsed < minWriteInterval {
			return upd, false
		}
	}

	t.hasPersisted = true
	t.lastLat = s.Lat
	t.lastLng = s.Lng
	t.lastWriteTime = s.Timestamp
	return upd, true
}

// ApproachState returns the current classification.
func (t *Tracker) ApproachState() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.approachState
}

// IsArriving reports whether arrival has been signaled. The flag is sticky:
// once set it stays set even if later samples move away again.
func (t *Tracker) IsArriving() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.arriving
}
