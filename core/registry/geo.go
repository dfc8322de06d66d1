package registry

import (
	"math"
	"strings"
)

const earthRadiusMeters = 6371000.0

// Distance returns the great circle distance in meters between two coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Contains reports whether a state is located inside z. States without
// coordinates match when a person or tracker reports the zone as its state.
func (z Zone) Contains(st State) bool {
	if lat, lon, ok := st.Location(); ok {
		return Distance(z.Latitude, z.Longitude, lat, lon) <= z.Radius
	}

	domain, _, _ := strings.Cut(st.EntityID, ".")
	if domain != "person" && domain != "device_tracker" {
		return false
	}
	return strings.EqualFold(st.State, z.ID) || (z.Name != "" && strings.EqualFold(st.State, z.Name))
}
