// Package overpass provides a client for the OpenStreetMap Overpass API,
// limited to the road-way queries used for suitability lookups.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/roadcheck/internal/resilience"
)

const (
	defaultBaseURL      = "https://overpass-api.de"
	interpreterPath     = "/api/interpreter"
	defaultQueryTimeout = 25
	defaultUserAgent    = "roadcheck/1.0"
	maxErrorBody        = 512
)

// filterTags are the tag keys a way must carry to be returned.
var filterTags = []string{"highway", "surface", "tracktype", "bicycle"}

// Client queries road-way features from Overpass.
type Client interface {
	// WaysAround returns the ways within radiusMeters of the coordinate.
	WaysAround(ctx context.Context, lat, lon, radiusMeters float64) ([]Way, error)
}

// Way is an OSM way element with its tags.
type Way struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Tags map[string]string `json:"tags"`
}

// response is the JSON envelope returned by the interpreter endpoint.
type response struct {
	Elements []Way  `json:"elements"`
	Remark   string `json:"remark,omitempty"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("overpass: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status signals a retryable condition.
func (e *StatusError) Temporary() bool {
	return resilience.IsTransientHTTPStatus(e.StatusCode)
}

// RemarkError is returned when Overpass answers 200 but reports a runtime
// error in the remark field.
type RemarkError struct {
	Remark string
}

func (e *RemarkError) Error() string {
	return "overpass: " + e.Remark
}

// Temporary reports whether the remark describes server load rather than a
// bad query.
func (e *RemarkError) Temporary() bool {
	r := strings.ToLower(e.Remark)
	return strings.Contains(r, "timed out") || strings.Contains(r, "out of memory") ||
		strings.Contains(r, "too many requests")
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets the Overpass instance (for mirrors and tests).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit shared by all callers.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header sent with every query.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithQueryTimeout sets the server-side [timeout:N] of each query.
func WithQueryTimeout(secs int) Option {
	return func(c *httpClient) {
		if secs > 0 {
			c.queryTimeout = secs
		}
	}
}

type httpClient struct {
	baseURL      string
	userAgent    string
	queryTimeout int
	http         *http.Client
	limiter      *rate.Limiter
}

// NewClient creates an Overpass client with the given options.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:      defaultBaseURL,
		userAgent:    defaultUserAgent,
		queryTimeout: defaultQueryTimeout,
		http:         &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(2, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WaysAround runs an around-query for road ways near the coordinate.
func (c *httpClient) WaysAround(ctx context.Context, lat, lon, radiusMeters float64) ([]Way, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limit")
	}

	form := url.Values{"data": {BuildAroundQuery(lat, lon, radiusMeters, c.queryTimeout)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+interpreterPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "overpass: parse response")
	}
	if parsed.Remark != "" && len(parsed.Elements) == 0 && strings.Contains(strings.ToLower(parsed.Remark), "error") {
		return nil, &RemarkError{Remark: parsed.Remark}
	}

	ways := make([]Way, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		if el.Type != "" && el.Type != "way" {
			continue
		}
		ways = append(ways, el)
	}
	return ways, nil
}

// BuildAroundQuery returns the Overpass QL query selecting ways within
// radius meters of (lat, lon) that carry any of the road tags.
func BuildAroundQuery(lat, lon, radiusMeters float64, timeoutSecs int) string {
	around := fmt.Sprintf("around:%s,%s,%s",
		strconv.FormatFloat(radiusMeters, 'f', -1, 64),
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
	)

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", timeoutSecs)
	for _, tag := range filterTags {
		fmt.Fprintf(&b, "  way(%s)[%q];\n", around, tag)
	}
	b.WriteString(");\nout tags;")
	return b.String()
}

// MergeTags flattens the tags of several ways into one mapping. Ways are
// visited in ascending id order and the first way to define a key wins, so
// the result does not depend on the order Overpass returned them in.
func MergeTags(ways []Way) map[string]string {
	sorted := make([]Way, len(ways))
	copy(sorted, ways)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	merged := make(map[string]string)
	for _, w := range sorted {
		for k, v := range w.Tags {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return merged
}
