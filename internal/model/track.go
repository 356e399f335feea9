package model

// Route is the parsed content of one uploaded GPX file.
type Route struct {
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// Track is a recorded GPS route made of one or more segments.
type Track struct {
	Name     string    `json:"name"`
	Segments []Segment `json:"segments"`
}

// Segment is a contiguous run of recorded points. Point order is the
// recording order.
type Segment struct {
	Points []Point `json:"points"`
}

// Point is a single recorded GPS fix.
type Point struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation"` // nil when the fix carries no <ele>
	Index     int      `json:"index"`
}

// HasElevation reports whether the point carries elevation data.
func (p Point) HasElevation() bool {
	return p.Elevation != nil
}

// SegmentCount returns the number of segments across all tracks.
func (r Route) SegmentCount() int {
	n := 0
	for _, t := range r.Tracks {
		n += len(t.Segments)
	}
	return n
}

// PointCount returns the number of recorded points across all tracks.
func (r Route) PointCount() int {
	n := 0
	for _, t := range r.Tracks {
		for _, s := range t.Segments {
			n += len(s.Points)
		}
	}
	return n
}
