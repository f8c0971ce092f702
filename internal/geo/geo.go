// Package geo provides the pure geometry used to bound a probe segment to a
// local neighborhood of the upstream polyline.
package geo

import (
	"math"

	"traffic-probe-service/internal/domain"
)

// Mean Earth radius in km.
const earthRadiusKm = 6371.0088

// DistanceKm returns the great-circle (haversine) distance in km between two
// WGS84 points.
func DistanceKm(a, b domain.Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// PolylineLengthKm sums DistanceKm over consecutive coordinate pairs.
// Fewer than 2 points, or a degenerate polyline of duplicate points, is a
// GeometryError rather than a zero length.
func PolylineLengthKm(coords []domain.Coordinate) (float64, error) {
	if len(coords) < 2 {
		return 0, &domain.GeometryError{Reason: "coordinates missing or insufficient (<2 points)"}
	}
	total := 0.0
	for i := 1; i < len(coords); i++ {
		total += DistanceKm(coords[i-1], coords[i])
	}
	if total <= 0 {
		return 0, &domain.GeometryError{Reason: "computed polyline length is non-positive"}
	}
	return total, nil
}

// NearestIndex returns the index of the coordinate closest to p.
// Ties break to the lowest index.
func NearestIndex(coords []domain.Coordinate, p domain.Coordinate) (int, error) {
	if len(coords) == 0 {
		return 0, &domain.GeometryError{Reason: "coordinates missing for nearest index computation"}
	}
	minIdx := 0
	minDist := math.Inf(1)
	for i, c := range coords {
		if d := DistanceKm(p, c); d < minDist {
			minDist = d
			minIdx = i
		}
	}
	return minIdx, nil
}

// WindowedSlice returns coords[centerIdx-halfWidth : centerIdx+halfWidth+1]
// clipped to the slice bounds. When the clipped window collapses below 2
// points (center at either boundary), the start is re-clamped so the window
// always holds at least 2 points.
func WindowedSlice(coords []domain.Coordinate, centerIdx, halfWidth int) ([]domain.Coordinate, error) {
	n := len(coords)
	if n < 2 {
		return nil, &domain.GeometryError{Reason: "coordinates missing or insufficient (<2 points)"}
	}
	start := max(0, centerIdx-halfWidth)
	end := min(n, centerIdx+halfWidth+1)
	window := coords[start:end]
	if len(window) < 2 {
		start = max(0, min(centerIdx, n-2))
		window = coords[start : start+2]
	}
	return window, nil
}
