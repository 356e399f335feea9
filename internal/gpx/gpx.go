// Package gpx reads GPX 1.0/1.1 documents into a model.Route.
package gpx

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/roadcheck/internal/model"
)

type gpxTrack struct {
	Name     string       `xml:"name"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat string  `xml:"lat,attr"`
	Lon string  `xml:"lon,attr"`
	Ele *string `xml:"ele"`
}

// Parse decodes a GPX document. Tracks, segments, and points keep their
// document order. Elements other than <trk> are skipped.
func Parse(r io.Reader, name string) (model.Route, error) {
	route := model.Route{Name: name}

	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "gpx: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	sawRoot := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Route{}, eris.Wrap(err, "gpx: read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			if se.Name.Local != "gpx" {
				return model.Route{}, eris.Errorf("gpx: unexpected root element <%s>", se.Name.Local)
			}
			sawRoot = true
			continue
		}
		if se.Name.Local != "trk" {
			continue
		}

		var raw gpxTrack
		if err := decoder.DecodeElement(&raw, &se); err != nil {
			return model.Route{}, eris.Wrap(err, "gpx: decode track")
		}
		trk, err := convertTrack(raw, len(route.Tracks))
		if err != nil {
			return model.Route{}, err
		}
		route.Tracks = append(route.Tracks, trk)
	}

	if !sawRoot {
		return model.Route{}, eris.New("gpx: empty document")
	}
	return route, nil
}

// ParseFile opens path and parses it, naming the route after the file.
func ParseFile(path string) (model.Route, error) {
	f, err := os.Open(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return model.Route{}, eris.Wrapf(err, "gpx: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Parse(f, filepath.Base(path))
}

func convertTrack(raw gpxTrack, trackIdx int) (model.Track, error) {
	trk := model.Track{
		Name:     strings.TrimSpace(raw.Name),
		Segments: make([]model.Segment, 0, len(raw.Segments)),
	}
	for s, rs := range raw.Segments {
		seg := model.Segment{Points: make([]model.Point, 0, len(rs.Points))}
		for i, rp := range rs.Points {
			pt, err := convertPoint(rp, i)
			if err != nil {
				return model.Track{}, eris.Wrapf(err, "gpx: track %d segment %d point %d", trackIdx, s, i)
			}
			seg.Points = append(seg.Points, pt)
		}
		trk.Segments = append(trk.Segments, seg)
	}
	return trk, nil
}

func convertPoint(rp gpxPoint, idx int) (model.Point, error) {
	lat, err := parseCoord(rp.Lat, "lat", 90)
	if err != nil {
		return model.Point{}, err
	}
	lon, err := parseCoord(rp.Lon, "lon", 180)
	if err != nil {
		return model.Point{}, err
	}

	pt := model.Point{Latitude: lat, Longitude: lon, Index: idx}
	if rp.Ele != nil {
		if s := strings.TrimSpace(*rp.Ele); s != "" {
			ele, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return model.Point{}, eris.Wrapf(err, "invalid elevation %q", s)
			}
			pt.Elevation = &ele
		}
	}
	return pt, nil
}

func parseCoord(s, attr string, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.Errorf("missing %s attribute", attr)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s %q", attr, s)
	}
	if v < -limit || v > limit {
		return 0, eris.Errorf("%s %v out of range", attr, v)
	}
	return v, nil
}
