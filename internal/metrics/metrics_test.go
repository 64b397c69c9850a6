package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_AddFeatures(t *testing.T) {
	b := NewBuild()
	b.AddFeatures("communes", 1000, 3)
	b.AddFeatures("communes", 1000, 2)
	b.AddFeatures("regions", 5, 1)

	assert.Equal(t, 5.0, testutil.ToFloat64(b.features.WithLabelValues("communes", "1000")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.features.WithLabelValues("regions", "5")))
}

func TestBuild_WriteTextfile(t *testing.T) {
	b := NewBuild()
	b.AddFeatures("epci", 50, 7)
	b.ObserveStage("extract", 50, 1500*time.Millisecond)
	b.MarkSuccess(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "contours.prom")
	require.NoError(t, b.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `contours_features_written_total{interval="50",layer="epci"} 7`)
	assert.Contains(t, body, `contours_stage_duration_seconds_count{interval="50",stage="extract"} 1`)
	assert.Contains(t, body, `contours_last_success_timestamp_seconds 1.7e+09`)
}

func TestBuild_WriteTextfileBadPath(t *testing.T) {
	b := NewBuild()
	err := b.WriteTextfile(filepath.Join(t.TempDir(), "missing", "contours.prom"))
	assert.Error(t, err)
}

func TestServer_Handler(t *testing.T) {
	s := NewServer()
	s.ObserveRequest("/layers/{layer}/{interval}/{code}", http.StatusOK, 2*time.Millisecond)
	s.ObserveRequest("/layers/{layer}/{interval}/{code}", http.StatusNotFound, time.Millisecond)
	s.CacheLookup(true)
	s.CacheLookup(false)
	s.CacheLookup(false)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `contours_http_requests_total{code="404",route="/layers/{layer}/{interval}/{code}"} 1`)
	assert.Contains(t, string(body), `contours_cache_lookups_total{result="miss"} 2`)
	assert.Contains(t, string(body), "go_goroutines")
}
