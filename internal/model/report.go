package model

// SegmentFinding is a sampled point flagged with at least one warning.
type SegmentFinding struct {
	SegmentIndex int       `json:"segment_index" yaml:"segment_index"`
	PointIndex   int       `json:"point_index" yaml:"point_index"`
	Latitude     float64   `json:"latitude" yaml:"latitude"`
	Longitude    float64   `json:"longitude" yaml:"longitude"`
	Elevation    *float64  `json:"elevation" yaml:"elevation"`
	Warnings     []Warning `json:"warnings" yaml:"warnings"`
	TagsFound    TagSet    `json:"tags_found" yaml:"tags_found"`
}

// SlopeSummary describes the gradients measured between sampled points.
type SlopeSummary struct {
	Samples        int     `json:"samples" yaml:"samples"`
	MaxPercent     float64 `json:"max_percent" yaml:"max_percent"`
	MeanAbsPercent float64 `json:"mean_abs_percent" yaml:"mean_abs_percent"`
}

// ReportSummary aggregates findings across the whole route.
type ReportSummary struct {
	TotalWarnings      int                     `json:"total_warnings" yaml:"total_warnings"`
	UnsuitableSegments int                     `json:"unsuitable_segments" yaml:"unsuitable_segments"`
	WarningTypes       map[WarningCategory]int `json:"warning_types" yaml:"warning_types"`
	Slope              SlopeSummary            `json:"slope" yaml:"slope"`
}

// AnalysisReport is the final output of one analysis run.
type AnalysisReport struct {
	Filename            string           `json:"filename" yaml:"filename"`
	TotalPoints         int              `json:"total_points" yaml:"total_points"`
	ProblematicSegments []SegmentFinding `json:"problematic_segments" yaml:"problematic_segments"`
	Summary             ReportSummary    `json:"summary" yaml:"summary"`
}

// NewAnalysisReport returns an empty report for the given source.
func NewAnalysisReport(filename string) *AnalysisReport {
	return &AnalysisReport{
		Filename:            filename,
		ProblematicSegments: []SegmentFinding{},
		Summary: ReportSummary{
			WarningTypes: map[WarningCategory]int{},
		},
	}
}

// Suitable reports whether the route raised no warnings at all.
func (r *AnalysisReport) Suitable() bool {
	return len(r.ProblematicSegments) == 0
}
