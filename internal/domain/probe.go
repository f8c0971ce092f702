package domain

// ProbePoint is a fixed sampling location for the upstream flow API.
// The probe set is small, defined at process start and immutable afterwards.
type ProbePoint struct {
	ID  string
	Lat float64
	Lon float64
}

func (p ProbePoint) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// Probe points along the Ayalon corridor (lat, lon).
func DefaultProbes() []ProbePoint {
	return []ProbePoint{
		{ID: "la_guardia", Lat: 32.038, Lon: 34.782},
		{ID: "ha_shalom", Lat: 32.064, Lon: 34.791},
		{ID: "arlozorov", Lat: 32.078, Lon: 34.796},
	}
}
