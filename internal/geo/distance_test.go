package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curbsidehq/curbside-golang/internal/geo"
)

func TestDistanceSamePoint(t *testing.T) {
	d := geo.DistanceMeters(3.139, 101.6869, 3.139, 101.6869)
	assert.Equal(t, 0.0, d)
}

func TestDistanceOneDegreeLatitude(t *testing.T) {
	// One degree of latitude is about 111,195 m on a sphere with the mean
	// Earth radius. Allow 1%.
	d := geo.DistanceMeters(3.0, 101.0, 4.0, 101.0)
	assert.InDelta(t, 111195.0, d, 111195.0*0.01)
}

func TestDistanceSymmetric(t *testing.T) {
	d1 := geo.DistanceMeters(3.139, 101.6869, 3.15, 101.7)
	d2 := geo.DistanceMeters(3.15, 101.7, 3.139, 101.6869)
	assert.InDelta(t, d1, d2, 0.0001)
}

func TestDistanceShortRange(t *testing.T) {
	// ~90 m of latitude offset (90 / 111195 degrees).
	d := geo.DistanceMeters(3.139, 101.6869, 3.139+90.0/111195.0, 101.6869)
	assert.InDelta(t, 90.0, d, 1.0)
}
