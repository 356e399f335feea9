// Package lookup resolves the road attributes around a coordinate. Lookups
// never fail: any error from the external service yields an empty TagSet.
package lookup

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/roadcheck/internal/model"
	"github.com/sells-group/roadcheck/internal/monitoring"
	"github.com/sells-group/roadcheck/internal/resilience"
	"github.com/sells-group/roadcheck/pkg/overpass"
)

// DefaultRadiusMeters is the search radius around each sampled point.
const DefaultRadiusMeters = 50.0

// Client fetches the TagSet around one coordinate.
type Client struct {
	ways    overpass.Client
	radius  float64
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker

	cacheEntries int
	cacheTTL     time.Duration
	cache        *Cache
}

// Option configures the lookup client.
type Option func(*Client)

// WithRadius sets the search radius in meters.
func WithRadius(meters float64) Option {
	return func(c *Client) {
		if meters > 0 {
			c.radius = meters
		}
	}
}

// WithRetry sets the retry policy for transient Overpass failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithCircuitBreaker sets the breaker shared by all lookups.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithRunCache enables a coordinate cache of at most maxEntries sets on
// clients returned by ForRun. Only successful lookups are cached.
func WithRunCache(maxEntries int, ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheEntries = maxEntries
		c.cacheTTL = ttl
	}
}

// New creates a lookup client on top of an Overpass client.
func New(ways overpass.Client, opts ...Option) *Client {
	c := &Client{
		ways:   ways,
		radius: DefaultRadiusMeters,
		retry:  resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("lookup: circuit state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("overpass", "ways_around")
	}
	return c
}

// ForRun returns a copy of c for one analysis run. The copy shares the
// Overpass client and circuit breaker but gets its own empty cache, so
// tags fetched by one run are never served to another.
func (c *Client) ForRun() *Client {
	cp := *c
	cp.cache = nil
	if c.cacheEntries > 0 {
		cp.cache = NewCache(c.cacheEntries, c.cacheTTL)
	}
	return &cp
}

// Lookup returns the merged tags of all road ways within the search radius
// of (lat, lon). It returns an empty TagSet on any failure.
func (c *Client) Lookup(ctx context.Context, lat, lon float64) model.TagSet {
	if c.cache != nil {
		if tags, ok := c.cache.Get(lat, lon); ok {
			monitoring.ObserveLookup(monitoring.LookupCacheHit, 0)
			return tags
		}
	}

	start := time.Now()

	ways, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]overpass.Way, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]overpass.Way, error) {
			return c.ways.WaysAround(ctx, lat, lon, c.radius)
		})
	})
	if err != nil {
		result := monitoring.LookupError
		if errors.Is(err, resilience.ErrCircuitOpen) {
			result = monitoring.LookupCircuitOpen
		}
		monitoring.ObserveLookup(result, time.Since(start))
		zap.L().Warn("lookup: overpass query failed, treating point as no data",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.String("result", result),
			zap.Error(err),
		)
		return model.TagSet{}
	}

	monitoring.ObserveLookup(monitoring.LookupOK, time.Since(start))
	tags := model.TagSet(overpass.MergeTags(ways))
	if c.cache != nil {
		c.cache.Put(lat, lon, tags)
	}
	return tags
}
