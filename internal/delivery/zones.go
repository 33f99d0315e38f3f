package delivery

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Zone is a distance-banded delivery pricing tier. Zones form a total
// order by radius; a point belongs to the first zone whose radius
// covers its distance from the restaurant.
type Zone struct {
	Name             string
	RadiusKm         float64
	DeliveryFee      decimal.Decimal
	MinOrder         decimal.Decimal
	EstimatedMinutes int32
	Color            string
}

// OutOfRangeError reports an address outside every configured zone. It
// carries the best-known address string so callers can echo back what
// the user typed.
type OutOfRangeError struct {
	Address    string
	DistanceKm float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("address is outside the delivery area (%.1f km)", e.DistanceKm)
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// SortZones orders zones by ascending radius. Selection assumes this
// order.
func SortZones(zones []Zone) {
	sort.Slice(zones, func(i, j int) bool {
		return zones[i].RadiusKm < zones[j].RadiusKm
	})
}

// SelectZone picks the first zone (ascending radius) whose radius
// covers distanceKm. ok is false when the distance is beyond every
// zone.
func SelectZone(zones []Zone, distanceKm float64) (Zone, bool) {
	for _, z := range zones {
		if z.RadiusKm >= distanceKm {
			return z, true
		}
	}
	return Zone{}, false
}
