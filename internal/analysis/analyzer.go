// Package analysis scores a GPX route for road-bike suitability.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/roadcheck/internal/model"
	"github.com/sells-group/roadcheck/internal/monitoring"
)

// DefaultLookupInterval paces attribute lookups within one run.
const DefaultLookupInterval = 100 * time.Millisecond

// TagLookup resolves road tags near a coordinate. Implementations must not
// fail: an unavailable source yields an empty TagSet.
type TagLookup interface {
	Lookup(ctx context.Context, lat, lon float64) model.TagSet
}

// Options tunes one Analyzer.
type Options struct {
	SlopeThresholdPercent  float64
	MaxSamplesPerSegment   int
	MinSlopeDistanceMeters float64
	LookupInterval         time.Duration
}

// DefaultOptions returns the stock analysis settings.
func DefaultOptions() Options {
	return Options{
		SlopeThresholdPercent:  DefaultSlopeThresholdPercent,
		MaxSamplesPerSegment:   DefaultMaxSamples,
		MinSlopeDistanceMeters: DefaultMinSlopeDistanceMeters,
		LookupInterval:         DefaultLookupInterval,
	}
}

// Analyzer samples each segment, classifies road tags, and checks slope.
type Analyzer struct {
	newLookup func() TagLookup
	opts      Options
}

// New creates an Analyzer that uses lookup for every run. A non-positive
// sample bound falls back to DefaultMaxSamples.
func New(lookup TagLookup, opts Options) *Analyzer {
	return NewScoped(func() TagLookup { return lookup }, opts)
}

// NewScoped creates an Analyzer that calls newLookup once at the start of
// each run. Per-run lookup state such as a cache stays within that run.
func NewScoped(newLookup func() TagLookup, opts Options) *Analyzer {
	if opts.MaxSamplesPerSegment <= 0 {
		opts.MaxSamplesPerSegment = DefaultMaxSamples
	}
	return &Analyzer{newLookup: newLookup, opts: opts}
}

// Options returns the effective settings.
func (a *Analyzer) Options() Options {
	return a.opts
}

// WithSlopeThreshold returns a copy of the analyzer using a different grade
// threshold.
func (a *Analyzer) WithSlopeThreshold(percent float64) *Analyzer {
	cp := *a
	cp.opts.SlopeThresholdPercent = percent
	return &cp
}

// Analyze runs the full analysis over route. Progress events are sent on
// events when it is non-nil; the caller must keep draining it until Analyze
// returns. Only context cancellation aborts a run: lookup failures degrade
// to "no data".
func (a *Analyzer) Analyze(ctx context.Context, route model.Route, source string, events chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
	log := zap.L().With(zap.String("source", source))
	start := time.Now()

	emit := func(step string, percent, total, processed int) error {
		if events == nil {
			return nil
		}
		ev := model.ProgressEvent{
			Step:            step,
			Percent:         model.ClampPercent(percent),
			TotalPoints:     total,
			ProcessedPoints: processed,
		}
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "analysis: emit progress")
		}
	}

	if err := emit("Counting sampled points...", 0, 0, 0); err != nil {
		return nil, err
	}

	maxSamples := a.opts.MaxSamplesPerSegment
	total := 0
	for _, trk := range route.Tracks {
		for _, seg := range trk.Segments {
			total += SampleCount(len(seg.Points), maxSamples)
		}
	}
	log.Info("analysis: starting",
		zap.Int("segments", route.SegmentCount()),
		zap.Int("points", route.PointCount()),
		zap.Int("sampled", total),
		zap.Float64("slope_threshold", a.opts.SlopeThresholdPercent),
	)

	if err := emit(fmt.Sprintf("Total points to analyze: %d", total), 0, total, 0); err != nil {
		return nil, err
	}

	interval := rate.Inf
	if a.opts.LookupInterval > 0 {
		interval = rate.Every(a.opts.LookupInterval)
	}
	pacer := rate.NewLimiter(interval, 1)
	lk := a.newLookup()
	slopes := NewSlopeEvaluator(a.opts.SlopeThresholdPercent, a.opts.MinSlopeDistanceMeters)

	report := model.NewAnalysisReport(source)
	var grades []float64
	processed := 0
	segIdx := 0

	for _, trk := range route.Tracks {
		for _, seg := range trk.Segments {
			if err := emit(fmt.Sprintf("Analyzing segment %d...", segIdx+1), percentOf(processed, total), total, processed); err != nil {
				return nil, err
			}

			var (
				prev        model.Point
				havePrev    bool
				segWarnings []model.Warning
			)
			for _, i := range SampleIndices(len(seg.Points), maxSamples) {
				if err := pacer.Wait(ctx); err != nil {
					return nil, eris.Wrap(err, "analysis: wait for lookup slot")
				}
				pt := seg.Points[i]

				tags := lk.Lookup(ctx, pt.Latitude, pt.Longitude)
				if err := ctx.Err(); err != nil {
					return nil, eris.Wrap(err, "analysis: lookup cancelled")
				}
				_, warnings := Classify(tags)

				if havePrev {
					if grade, w, ok := slopes.Evaluate(prev, pt); ok {
						grades = append(grades, grade)
						if w != nil {
							warnings = append(warnings, *w)
						}
					}
				}
				prev, havePrev = pt, true

				report.TotalPoints++
				processed++

				if len(warnings) > 0 {
					report.ProblematicSegments = append(report.ProblematicSegments, model.SegmentFinding{
						SegmentIndex: segIdx,
						PointIndex:   i,
						Latitude:     pt.Latitude,
						Longitude:    pt.Longitude,
						Elevation:    copyElevation(pt.Elevation),
						Warnings:     warnings,
						TagsFound:    tags.Clone(),
					})
					segWarnings = append(segWarnings, warnings...)
				}

				step := fmt.Sprintf("Analyzing point %d/%d - Lat: %.4f, Lon: %.4f", processed, total, pt.Latitude, pt.Longitude)
				if err := emit(step, percentOf(processed, total), total, processed); err != nil {
					return nil, err
				}
			}

			if len(segWarnings) > 0 {
				report.Summary.UnsuitableSegments++
				for _, w := range segWarnings {
					category := model.CategoryOf(w.Message)
					report.Summary.WarningTypes[category]++
					monitoring.CountWarning(string(category))
				}
			}
			segIdx++
		}
	}

	report.Summary.TotalWarnings = len(report.ProblematicSegments)
	report.Summary.Slope = summarizeSlopes(grades)

	if err := emit("Finalizing analysis...", 100, total, processed); err != nil {
		return nil, err
	}

	log.Info("analysis: complete",
		zap.Int("sampled", report.TotalPoints),
		zap.Int("findings", report.Summary.TotalWarnings),
		zap.Int("unsuitable_segments", report.Summary.UnsuitableSegments),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// percentOf returns floor(done/max(1,total)*100) bounded to [0,100].
func percentOf(done, total int) int {
	if total < 1 {
		total = 1
	}
	return model.ClampPercent(done * 100 / total)
}

func copyElevation(e *float64) *float64 {
	if e == nil {
		return nil
	}
	v := *e
	return &v
}
