package domain

import "fmt"

// Immutable geographic coordinate (WGS84 degrees).
type Coordinate struct {
	Lat float64
	Lon float64
}

// Return the coordinate as "lat,lon" for external API compatibility.
func (c Coordinate) PointParam() string {
	return fmt.Sprintf("%g,%g", c.Lat, c.Lon)
}
