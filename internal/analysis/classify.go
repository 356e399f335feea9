package analysis

import "github.com/sells-group/roadcheck/internal/model"

var (
	// Surfaces a road bike handles well.
	acceptableSurfaces = map[string]bool{
		"asphalt":   true,
		"paved":     true,
		"concrete":  true,
		"compacted": true,
	}

	// Footways are only rideable on sealed surfaces.
	footwaySurfaces = map[string]bool{
		"asphalt":  true,
		"paved":    true,
		"concrete": true,
	}

	unsuitableHighways = map[string]bool{
		"path":      true,
		"bridleway": true,
		"steps":     true,
	}

	poorTrackGrades = map[string]bool{
		"grade2": true,
		"grade3": true,
		"grade4": true,
		"grade5": true,
	}

	poorSmoothness = map[string]bool{
		"bad":           true,
		"very_bad":      true,
		"horrible":      true,
		"very_horrible": true,
		"impassable":    true,
	}
)

// Classify evaluates road tags for road-bike suitability. Every rule runs
// independently, so one tag set may raise several warnings. A point is
// suitable iff no warning fired; missing tags are not a negative signal
// except for the track and footway rules.
func Classify(tags model.TagSet) (bool, []model.Warning) {
	t := tags.Normalize()
	warnings := []model.Warning{}

	surface := t.Get("surface")
	if surface != "" && !acceptableSurfaces[surface] {
		warnings = append(warnings, model.NewWarning(model.CategoryUnsuitableSurface, surface))
	}

	switch highway := t.Get("highway"); {
	case highway == "track":
		if !acceptableSurfaces[surface] {
			warnings = append(warnings, model.NewWarning(model.CategoryUnsuitableWayType, highway))
		}
	case highway == "footway":
		if !footwaySurfaces[surface] {
			warnings = append(warnings, model.NewWarning(model.CategoryUnsuitableWayType, highway))
		}
	case unsuitableHighways[highway]:
		warnings = append(warnings, model.NewWarning(model.CategoryUnsuitableWayType, highway))
	}

	if grade := t.Get("tracktype"); poorTrackGrades[grade] {
		warnings = append(warnings, model.NewWarning(model.CategoryPoorTrackQuality, grade))
	}

	if t.Get("bicycle") == "no" {
		warnings = append(warnings, model.NewWarning(model.CategoryBicycleForbidden, ""))
	}

	if smoothness := t.Get("smoothness"); poorSmoothness[smoothness] {
		warnings = append(warnings, model.NewWarning(model.CategoryPoorSurfaceQuality, smoothness))
	}

	return len(warnings) == 0, warnings
}
