package model

import "strings"

// WarningCategory is a stable identifier used to aggregate warnings.
type WarningCategory string

const (
	CategoryUnsuitableSurface  WarningCategory = "Unsuitable surface"
	CategoryUnsuitableWayType  WarningCategory = "Unsuitable way type"
	CategoryPoorTrackQuality   WarningCategory = "Poor track quality"
	CategoryBicycleForbidden   WarningCategory = "Bicycle access forbidden"
	CategoryPoorSurfaceQuality WarningCategory = "Poor surface condition"
	CategoryExcessiveSlope     WarningCategory = "Excessive slope"
)

// Warning is one suitability concern raised for a sampled point.
type Warning struct {
	Category WarningCategory `json:"category" yaml:"category"`
	Message  string          `json:"message" yaml:"message"`
}

// NewWarning builds a warning whose message is "<category>: <detail>", or
// just the category when detail is empty.
func NewWarning(category WarningCategory, detail string) Warning {
	msg := string(category)
	if detail != "" {
		msg += ": " + detail
	}
	return Warning{Category: category, Message: msg}
}

// String returns the human-readable message.
func (w Warning) String() string {
	return w.Message
}

// CategoryOf derives a category from the message prefix before the first
// ':' separator.
func CategoryOf(message string) WarningCategory {
	prefix, _, _ := strings.Cut(message, ":")
	return WarningCategory(strings.TrimSpace(prefix))
}
