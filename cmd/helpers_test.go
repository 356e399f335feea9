package main

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadcheck/internal/config"
)

const rampGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><name>Ramp</name><trkseg>
    <trkpt lat="45.0000" lon="7.0000"><ele>100</ele></trkpt>
    <trkpt lat="45.0009" lon="7.0000"><ele>115</ele></trkpt>
    <trkpt lat="45.0018" lon="7.0000"><ele>116</ele></trkpt>
  </trkseg></trk>
</gpx>`

// getFreePort returns a free TCP port on localhost.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// fakeOverpass serves a fixed Overpass JSON body for every query.
func fakeOverpass(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/interpreter" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// testConfig returns defaults pointed at baseURL with pacing disabled.
func testConfig(baseURL string) *config.Config {
	c := &config.Config{}
	c.Server.Port = 8000
	c.Server.MaxUploadMB = 20
	c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	c.Log = config.LogConfig{Level: "info", Format: "json"}
	c.Overpass.BaseURL = baseURL
	c.Overpass.RadiusMeters = 50
	c.Overpass.TimeoutSecs = 5
	c.Overpass.RateLimitRPS = 0
	c.Overpass.Retry.MaxAttempts = 1
	c.Overpass.Retry.InitialBackoffMs = 1
	c.Overpass.Circuit.FailureThreshold = 5
	c.Overpass.Circuit.ResetTimeoutSecs = 30
	c.Analysis.SlopeThresholdPercent = 10
	c.Analysis.MaxSamplesPerSegment = 20
	c.Analysis.MinSlopeDistanceMeters = 2
	c.Analysis.LookupIntervalMs = 0
	return c
}

func writeGPX(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ramp.gpx")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
