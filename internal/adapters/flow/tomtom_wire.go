package flow

import (
	"encoding/json"
	"errors"
	"strings"

	"traffic-probe-service/internal/domain"
)

// Wire types for the TomTom Flow Segment Data v4 payload. Required fields are
// pointers so a missing field is distinguishable from a zero value; tolerance
// for coordinate field aliases lives here, at the decode boundary, so the
// geometry code only ever sees domain.Coordinate.

type flowResponse struct {
	FlowSegmentData *flowSegmentData `json:"flowSegmentData"`
}

type flowSegmentData struct {
	CurrentSpeed       *float64        `json:"currentSpeed"`
	CurrentTravelTime  *float64        `json:"currentTravelTime"`
	FreeFlowSpeed      *float64        `json:"freeFlowSpeed"`
	FreeFlowTravelTime *float64        `json:"freeFlowTravelTime"`
	Confidence         *float64        `json:"confidence"`
	RoadClosure        *flexBool       `json:"roadClosure"`
	Coordinates        json.RawMessage `json:"coordinates"`
}

// flexBool accepts a JSON bool or the strings "true"/"false", which some
// upstream payload variants emit.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("roadClosure is neither bool nor string")
	}
	*f = flexBool(strings.EqualFold(s, "true"))
	return nil
}

type wireCoordinate struct {
	Latitude  *float64 `json:"latitude"`
	Lat       *float64 `json:"lat"`
	Longitude *float64 `json:"longitude"`
	Lon       *float64 `json:"lon"`
	Lng       *float64 `json:"lng"`
}

func (w wireCoordinate) normalize() (domain.Coordinate, error) {
	lat := w.Latitude
	if lat == nil {
		lat = w.Lat
	}
	lon := w.Longitude
	if lon == nil {
		lon = w.Lon
	}
	if lon == nil {
		lon = w.Lng
	}
	if lat == nil || lon == nil {
		return domain.Coordinate{}, errors.New("coordinate missing lat/lon")
	}
	return domain.Coordinate{Lat: *lat, Lon: *lon}, nil
}

// parseCoordinates resolves the coordinates structure: either a container
// object {"coordinate": [...]} or a bare list, with per-point field aliases
// mapped onto the canonical coordinate type.
func parseCoordinates(raw json.RawMessage) ([]domain.Coordinate, error) {
	var wire []wireCoordinate

	var container struct {
		Coordinate []wireCoordinate `json:"coordinate"`
	}
	if err := json.Unmarshal(raw, &container); err == nil && container.Coordinate != nil {
		wire = container.Coordinate
	} else if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.New("coordinates structure invalid")
	}

	coords := make([]domain.Coordinate, 0, len(wire))
	for _, w := range wire {
		c, err := w.normalize()
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	return coords, nil
}
