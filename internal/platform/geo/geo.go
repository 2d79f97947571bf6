package geo

import (
	"context"
	"math"
	"sync"
)

// Service resolves a free-text address into coordinates.
type Service interface {
	Geocode(ctx context.Context, address string) (lat, lon, confidence float64, err error)
}

// DistanceMiles returns the great-circle distance between two points.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusMiles = 3958.8

	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// StaticService serves geocode lookups from a fixed table. Used in tests and
// as the default when no external geocoder is configured.
type StaticService struct {
	mu        sync.RWMutex
	locations map[string][2]float64
}

func NewStaticService() *StaticService {
	return &StaticService{locations: make(map[string][2]float64)}
}

func (s *StaticService) Add(address string, lat, lon float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[address] = [2]float64{lat, lon}
}

func (s *StaticService) Geocode(ctx context.Context, address string) (float64, float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if loc, ok := s.locations[address]; ok {
		return loc[0], loc[1], 1.0, nil
	}
	return 0, 0, 0, nil
}
