package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_Reflexive(t *testing.T) {
	t.Parallel()

	for _, p := range []Point{{0, 0}, {34, 69}, {-33.86, 151.2}, {89.9, -179.9}} {
		assert.Equal(t, 0.0, Distance(p, p))
	}
}

func TestDistance_Symmetric(t *testing.T) {
	t.Parallel()

	a := Point{Lat: 34.0, Lon: 69.0}
	b := Point{Lat: 34.05, Lon: 69.05}

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestDistance_KnownValues(t *testing.T) {
	t.Parallel()

	kabul := Point{Lat: 34.0, Lon: 69.0}
	nearby := Point{Lat: 34.05, Lon: 69.05}
	assert.InDelta(t, 7.22, Distance(kabul, nearby), 0.01)

	// One degree of longitude on the equator.
	assert.InDelta(t, 111.195, Distance(Point{0, 0}, Point{0, 1}), 0.001)
}

func TestDistance_InvalidInputPropagatesNaN(t *testing.T) {
	t.Parallel()

	d := Distance(Point{Lat: math.NaN(), Lon: 0}, Point{0, 0})
	assert.True(t, math.IsNaN(d))
}

func TestValidCoordinates(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidCoordinates(0, 0))
	assert.True(t, ValidCoordinates(-90, 180))
	assert.False(t, ValidCoordinates(91, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
	assert.False(t, ValidCoordinates(math.NaN(), 0))

	assert.ErrorIs(t, Point{Lat: 100}.Validate(), ErrInvalidCoordinates)
	assert.NoError(t, Point{Lat: 34, Lon: 69}.Validate())
}
