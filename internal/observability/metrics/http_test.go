package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestHTTPMetricsCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetricsWithRegisterer(reg)
	if err != nil {
		t.Fatalf("new http metrics: %v", err)
	}

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/responses/:id", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	for _, path := range []string{"/api/responses/1", "/api/responses/2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var counter *dto.MetricFamily
	for _, family := range families {
		if family.GetName() == "flowpulse_http_requests_total" {
			counter = family
		}
	}
	if counter == nil {
		t.Fatal("expected request counter to be registered")
	}
	if len(counter.GetMetric()) != 1 {
		t.Fatalf("expected a single route series, got %d", len(counter.GetMetric()))
	}
	metric := counter.GetMetric()[0]
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	labels := map[string]string{}
	for _, pair := range metric.GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	if labels["route"] != "/api/responses/:id" || labels["status_code"] != "404" {
		t.Fatalf("unexpected labels %v", labels)
	}
}
