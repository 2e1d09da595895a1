package alerts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/curbsidehq/curbside-golang/internal/alerts"
)

func TestRepeaterNotifiesUntilStopped(t *testing.T) {
	fired := make(chan int64, 32)
	r := alerts.NewRepeater(5*time.Millisecond, func(orderID int64) {
		fired <- orderID
	})

	r.Start(42)

	select {
	case id := <-fired:
		assert.Equal(t, int64(42), id)
	case <-time.After(time.Second):
		t.Fatal("expected at least one alert")
	}

	r.Stop(42)

	// Drain anything in flight, then verify the loop is really gone.
	time.Sleep(20 * time.Millisecond)
	for len(fired) > 0 {
		<-fired
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fired)
}

func TestStartIsIdempotent(t *testing.T) {
	fired := make(chan int64, 64)
	r := alerts.NewRepeater(5*time.Millisecond, func(orderID int64) {
		fired <- orderID
	})
	defer r.StopAll()

	r.Start(7)
	r.Start(7) // second Start must not spawn a second loop

	<-fired
	time.Sleep(12 * time.Millisecond)

	// One loop at 5 ms produces at most ~3 more alerts in 12 ms; two loops
	// would produce roughly double. Allow generous slack.
	assert.LessOrEqual(t, len(fired), 5)
}

func TestStopUnknownOrderIsNoOp(t *testing.T) {
	r := alerts.NewRepeater(time.Minute, func(int64) {})
	r.Stop(999)
	r.StopAll()
}
