package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMiles(t *testing.T) {
	// Philadelphia to New York is roughly 80 miles as the crow flies.
	d := DistanceMiles(39.9526, -75.1652, 40.7128, -74.0060)
	assert.InDelta(t, 80.5, d, 1.5)

	assert.Zero(t, DistanceMiles(39.9526, -75.1652, 39.9526, -75.1652))
}

func TestStaticServiceGeocode(t *testing.T) {
	s := NewStaticService()
	s.Add("Philadelphia, PA", 39.9526, -75.1652)

	lat, lon, confidence, err := s.Geocode(context.Background(), "Philadelphia, PA")
	require.NoError(t, err)
	assert.Equal(t, 39.9526, lat)
	assert.Equal(t, -75.1652, lon)
	assert.Equal(t, 1.0, confidence)

	_, _, confidence, err = s.Geocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Zero(t, confidence)
}
