package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	t.Parallel()

	// Berlin to Munich, roughly 504 km
	distance := HaversineKm(52.5200, 13.4050, 48.1371, 11.5754)
	assert.InDelta(t, 504, distance, 5)

	// same point
	assert.InDelta(t, 0, HaversineKm(52.52, 13.405, 52.52, 13.405), 0.0001)

	// symmetric
	forward := HaversineKm(52.52, 13.405, 48.1371, 11.5754)
	backward := HaversineKm(48.1371, 11.5754, 52.52, 13.405)
	assert.InDelta(t, forward, backward, 0.0001)
}
