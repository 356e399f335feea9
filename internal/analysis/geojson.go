package analysis

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/roadcheck/internal/model"
)

// FindingsGeoJSON renders each finding of report as a GeoJSON point
// feature. Points with elevation use an XYZ layout.
func FindingsGeoJSON(report *model.AnalysisReport) ([]byte, error) {
	if report == nil {
		return nil, eris.New("analysis: nil report")
	}

	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(report.ProblematicSegments))}
	for i, f := range report.ProblematicSegments {
		var pt *geom.Point
		if f.Elevation != nil {
			pt = geom.NewPointFlat(geom.XYZ, []float64{f.Longitude, f.Latitude, *f.Elevation})
		} else {
			pt = geom.NewPointFlat(geom.XY, []float64{f.Longitude, f.Latitude})
		}

		messages := make([]string, len(f.Warnings))
		categories := make([]string, len(f.Warnings))
		for j, w := range f.Warnings {
			messages[j] = w.Message
			categories[j] = string(w.Category)
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.Itoa(i),
			Geometry: pt,
			Properties: map[string]any{
				"segment_index": f.SegmentIndex,
				"point_index":   f.PointIndex,
				"warnings":      messages,
				"categories":    categories,
				"tags":          f.TagsFound,
			},
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: marshal geojson")
	}
	return data, nil
}
