package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/roadcheck/internal/analysis"
	"github.com/sells-group/roadcheck/internal/config"
	"github.com/sells-group/roadcheck/internal/lookup"
	"github.com/sells-group/roadcheck/internal/resilience"
	"github.com/sells-group/roadcheck/pkg/overpass"
)

// initAnalyzer wires the Overpass client, the resilient lookup layer, and
// the analyzer from configuration. The returned analyzer is safe to share
// across jobs; each run gets its own lookup cache.
func initAnalyzer(c *config.Config) *analysis.Analyzer {
	ov := overpass.NewClient(
		overpass.WithBaseURL(c.Overpass.BaseURL),
		overpass.WithHTTPClient(&http.Client{Timeout: c.Overpass.Timeout()}),
		overpass.WithRateLimit(c.Overpass.RateLimitRPS),
		overpass.WithUserAgent(c.Overpass.UserAgent),
	)

	breakerCfg := resilience.FromCircuitConfig(c.Overpass.Circuit.FailureThreshold, c.Overpass.Circuit.ResetTimeoutSecs)
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("overpass circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	opts := []lookup.Option{
		lookup.WithRadius(c.Overpass.RadiusMeters),
		lookup.WithRetry(resilience.FromRetryConfig(c.Overpass.Retry.MaxAttempts, c.Overpass.Retry.InitialBackoffMs)),
		lookup.WithCircuitBreaker(resilience.NewCircuitBreaker(breakerCfg)),
	}
	if c.Overpass.CacheEntries > 0 {
		opts = append(opts, lookup.WithRunCache(c.Overpass.CacheEntries, c.Overpass.CacheTTL()))
	}
	lk := lookup.New(ov, opts...)

	return analysis.NewScoped(func() analysis.TagLookup { return lk.ForRun() }, analysis.Options{
		SlopeThresholdPercent:  c.Analysis.SlopeThresholdPercent,
		MaxSamplesPerSegment:   c.Analysis.MaxSamplesPerSegment,
		MinSlopeDistanceMeters: c.Analysis.MinSlopeDistanceMeters,
		LookupInterval:         c.Analysis.LookupInterval(),
	})
}
