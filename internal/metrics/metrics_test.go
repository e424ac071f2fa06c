package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareIncrementsCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	InitMetrics()

	r := gin.New()
	r.Use(Middleware())
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/test", "200"))

	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/test", "200"))
	if after != before+1 {
		t.Fatalf("expected request counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestObserveCacheLookupLabelsResult(t *testing.T) {
	InitMetrics()

	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("miss"))

	ObserveCacheLookup(true)
	ObserveCacheLookup(false)
	ObserveCacheLookup(false)

	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("hit")); got != hits+1 {
		t.Fatalf("expected one more hit, got %v", got-hits)
	}
	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues("miss")); got != misses+2 {
		t.Fatalf("expected two more misses, got %v", got-misses)
	}
}

func TestRegisterExposesMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	InitMetrics()
	ObserveStorageList(150*time.Millisecond, errors.New("boom"))
	ObserveUpstreamFetch("ok")

	r := gin.New()
	Register(r, "/metrics")

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "mediagate_storage_list_duration_seconds") {
		t.Fatalf("expected storage list histogram in /metrics output")
	}
}
