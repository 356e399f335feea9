package lookup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadcheck/internal/model"
	"github.com/sells-group/roadcheck/internal/resilience"
	"github.com/sells-group/roadcheck/pkg/overpass"
)

type mockOverpass struct {
	mock.Mock
}

func (m *mockOverpass) WaysAround(ctx context.Context, lat, lon, radius float64) ([]overpass.Way, error) {
	args := m.Called(ctx, lat, lon, radius)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]overpass.Way), args.Error(1)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestLookup_MergesTags(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, 45.0, 6.0, 50.0).Return([]overpass.Way{
		{ID: 2, Tags: map[string]string{"surface": "gravel"}},
		{ID: 1, Tags: map[string]string{"highway": "track", "surface": "compacted"}},
	}, nil)

	c := New(m, WithRetry(fastRetry()))
	tags := c.Lookup(context.Background(), 45.0, 6.0)

	assert.Equal(t, model.TagSet{"highway": "track", "surface": "compacted"}, tags)
	m.AssertExpectations(t)
}

func TestLookup_CustomRadius(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, 1.0, 2.0, 75.0).Return([]overpass.Way{}, nil)

	c := New(m, WithRadius(75), WithRetry(fastRetry()))
	assert.Empty(t, c.Lookup(context.Background(), 1, 2))
	m.AssertExpectations(t)
}

func TestLookup_PermanentFailureReturnsEmpty(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &overpass.StatusError{StatusCode: http.StatusBadRequest, Body: "bad query"}).Once()

	c := New(m, WithRetry(fastRetry()))
	tags := c.Lookup(context.Background(), 1, 2)

	assert.NotNil(t, tags)
	assert.Empty(t, tags)
	m.AssertNumberOfCalls(t, "WaysAround", 1)
}

func TestLookup_TransientFailureRetried(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &overpass.StatusError{StatusCode: http.StatusServiceUnavailable}).Twice()
	m.On("WaysAround", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]overpass.Way{{ID: 1, Tags: map[string]string{"surface": "asphalt"}}}, nil).Once()

	c := New(m, WithRetry(fastRetry()))
	tags := c.Lookup(context.Background(), 1, 2)

	assert.Equal(t, model.TagSet{"surface": "asphalt"}, tags)
	m.AssertNumberOfCalls(t, "WaysAround", 3)
}

func TestLookup_CircuitOpenReturnsEmpty(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("bad gateway"))

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := New(m, WithRetry(resilience.RetryConfig{MaxAttempts: 1}), WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		assert.Empty(t, c.Lookup(context.Background(), 1, 2))
	}
	require.Equal(t, resilience.CircuitOpen, cb.State())

	// Rejected without calling Overpass.
	assert.Empty(t, c.Lookup(context.Background(), 1, 2))
	m.AssertNumberOfCalls(t, "WaysAround", 2)
}

func TestLookup_AgainstHTTPServer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"elements": [{"type": "way", "id": 9, "tags": {"Surface": "Gravel"}}]}`)
	}))
	defer srv.Close()

	oc := overpass.NewClient(overpass.WithBaseURL(srv.URL), overpass.WithRateLimit(0))
	c := New(oc, WithRetry(fastRetry()))

	tags := c.Lookup(context.Background(), 45, 6)
	assert.Equal(t, model.TagSet{"Surface": "Gravel"}, tags)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLookup_MalformedResponseReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	oc := overpass.NewClient(overpass.WithBaseURL(srv.URL), overpass.WithRateLimit(0))
	c := New(oc, WithRetry(fastRetry()))

	assert.Empty(t, c.Lookup(context.Background(), 45, 6))
}

func TestLookup_CacheServesRepeatedCoordinates(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, 45.0, 6.0, 50.0).Return([]overpass.Way{
		{Type: "way", ID: 1, Tags: map[string]string{"surface": "asphalt"}},
	}, nil).Once()

	c := New(m, WithRetry(fastRetry()), WithRunCache(10, time.Hour)).ForRun()

	first := c.Lookup(context.Background(), 45.0, 6.0)
	second := c.Lookup(context.Background(), 45.0, 6.0)

	assert.Equal(t, model.TagSet{"surface": "asphalt"}, first)
	assert.Equal(t, first, second)
	m.AssertNumberOfCalls(t, "WaysAround", 1)
}

func TestLookup_FailuresAreNotCached(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, 45.0, 6.0, 50.0).Return(nil, errors.New("bad request")).Once()
	m.On("WaysAround", mock.Anything, 45.0, 6.0, 50.0).Return([]overpass.Way{
		{Type: "way", ID: 1, Tags: map[string]string{"surface": "gravel"}},
	}, nil).Once()

	c := New(m, WithRetry(resilience.RetryConfig{MaxAttempts: 1}), WithRunCache(10, time.Hour)).ForRun()

	assert.Empty(t, c.Lookup(context.Background(), 45.0, 6.0))
	assert.Equal(t, model.TagSet{"surface": "gravel"}, c.Lookup(context.Background(), 45.0, 6.0))
	m.AssertExpectations(t)
}

func TestLookup_RunsDoNotShareCache(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, 45.0, 6.0, 50.0).Return([]overpass.Way{
		{Type: "way", ID: 1, Tags: map[string]string{"surface": "gravel"}},
	}, nil).Once()
	m.On("WaysAround", mock.Anything, 45.0, 6.0, 50.0).Return([]overpass.Way{
		{Type: "way", ID: 1, Tags: map[string]string{"surface": "asphalt"}},
	}, nil).Once()

	base := New(m, WithRetry(fastRetry()), WithRunCache(10, time.Hour))

	first := base.ForRun()
	assert.Equal(t, model.TagSet{"surface": "gravel"}, first.Lookup(context.Background(), 45.0, 6.0))
	assert.Equal(t, model.TagSet{"surface": "gravel"}, first.Lookup(context.Background(), 45.0, 6.0))

	second := base.ForRun()
	assert.Equal(t, model.TagSet{"surface": "asphalt"}, second.Lookup(context.Background(), 45.0, 6.0))

	assert.Nil(t, base.cache)
	assert.NotSame(t, first.cache, second.cache)
	assert.Same(t, first.breaker, second.breaker)
	m.AssertExpectations(t)
}

func TestLookup_ForRunWithoutCache(t *testing.T) {
	m := new(mockOverpass)
	m.On("WaysAround", mock.Anything, 45.0, 6.0, 50.0).Return([]overpass.Way{}, nil).Twice()

	c := New(m, WithRetry(fastRetry())).ForRun()
	assert.Nil(t, c.cache)

	c.Lookup(context.Background(), 45.0, 6.0)
	c.Lookup(context.Background(), 45.0, 6.0)
	m.AssertExpectations(t)
}
