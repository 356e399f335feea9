package gpx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoTracks = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <metadata><name>Morning ride</name></metadata>
  <wpt lat="1" lon="1"><name>ignored</name></wpt>
  <trk>
    <name> Loop </name>
    <trkseg>
      <trkpt lat="45.0" lon="7.0"><ele>100.5</ele></trkpt>
      <trkpt lat="45.001" lon="7.001"><ele>102</ele></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="45.002" lon="7.002"></trkpt>
    </trkseg>
  </trk>
  <trk>
    <trkseg>
      <trkpt lat="-33.5" lon="151.25"><ele> </ele></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParse_TracksSegmentsPoints(t *testing.T) {
	route, err := Parse(strings.NewReader(twoTracks), "ride.gpx")
	require.NoError(t, err)

	assert.Equal(t, "ride.gpx", route.Name)
	require.Len(t, route.Tracks, 2)
	assert.Equal(t, 3, route.SegmentCount())
	assert.Equal(t, 4, route.PointCount())

	first := route.Tracks[0]
	assert.Equal(t, "Loop", first.Name)
	require.Len(t, first.Segments, 2)
	pts := first.Segments[0].Points
	require.Len(t, pts, 2)
	assert.Equal(t, 45.0, pts[0].Latitude)
	assert.Equal(t, 7.0, pts[0].Longitude)
	require.NotNil(t, pts[0].Elevation)
	assert.Equal(t, 100.5, *pts[0].Elevation)
	assert.Equal(t, 0, pts[0].Index)
	assert.Equal(t, 1, pts[1].Index)

	assert.False(t, first.Segments[1].Points[0].HasElevation())

	last := route.Tracks[1].Segments[0].Points[0]
	assert.Equal(t, -33.5, last.Latitude)
	assert.Nil(t, last.Elevation, "blank <ele> means no elevation")
}

func TestParse_NoNamespace(t *testing.T) {
	doc := `<gpx><trk><trkseg><trkpt lat="1" lon="2"/></trkseg></trk></gpx>`
	route, err := Parse(strings.NewReader(doc), "plain.gpx")
	require.NoError(t, err)
	assert.Equal(t, 1, route.PointCount())
}

func TestParse_NoTracks(t *testing.T) {
	route, err := Parse(strings.NewReader(`<gpx version="1.1"></gpx>`), "empty.gpx")
	require.NoError(t, err)
	assert.Empty(t, route.Tracks)
	assert.Equal(t, 0, route.PointCount())
}

func TestParse_Latin1(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<gpx><trk><name>Col de l'Iseran \xe9t\xe9</name><trkseg><trkpt lat=\"45.4\" lon=\"7.0\"/></trkseg></trk></gpx>"
	route, err := Parse(strings.NewReader(doc), "latin1.gpx")
	require.NoError(t, err)
	require.Len(t, route.Tracks, 1)
	assert.Equal(t, "Col de l'Iseran été", route.Tracks[0].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty input", doc: "", want: "empty document"},
		{name: "not xml", doc: "hello world", want: "empty document"},
		{name: "wrong root", doc: `<kml><trk/></kml>`, want: "unexpected root"},
		{name: "truncated", doc: `<gpx><trk><trkseg><trkpt lat="1" lon="2">`, want: "gpx:"},
		{name: "missing lat", doc: `<gpx><trk><trkseg><trkpt lon="2"/></trkseg></trk></gpx>`, want: "missing lat"},
		{name: "bad lon", doc: `<gpx><trk><trkseg><trkpt lat="1" lon="east"/></trkseg></trk></gpx>`, want: "invalid lon"},
		{name: "lat out of range", doc: `<gpx><trk><trkseg><trkpt lat="91" lon="2"/></trkseg></trk></gpx>`, want: "out of range"},
		{name: "bad elevation", doc: `<gpx><trk><trkseg><trkpt lat="1" lon="2"><ele>high</ele></trkpt></trkseg></trk></gpx>`, want: "invalid elevation"},
		{name: "unknown charset", doc: `<?xml version="1.0" encoding="x-bogus"?><gpx/>`, want: "gpx:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc), "bad.gpx")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.gpx")
	require.NoError(t, os.WriteFile(path, []byte(twoTracks), 0o600))

	route, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "track.gpx", route.Name)
	assert.Equal(t, 4, route.PointCount())
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.gpx"))
	assert.Error(t, err)
}
