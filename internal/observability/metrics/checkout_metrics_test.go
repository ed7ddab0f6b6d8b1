package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"gorm.io/gorm"
)

func TestClassifyCheckoutFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: CheckoutReasonDeadline},
		{name: "serialization_pgx", err: &pgconn.PgError{Code: "40001"}, want: CheckoutReasonSerialize},
		{name: "deadlock_pq", err: fmt.Errorf("tx: %w", &pq.Error{Code: "40P01"}), want: CheckoutReasonDeadlock},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: CheckoutReasonLockWait},
		{name: "unique", err: gorm.ErrDuplicatedKey, want: CheckoutReasonUnique},
		{name: "unknown", err: errors.New("boom"), want: CheckoutReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyCheckoutFailure(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObservePlacement(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := newCheckoutMetrics(registry, Config{ServiceName: "storefront", Environment: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.ObservePlacement(CheckoutResultPlaced, 20*time.Millisecond)
	m.ObservePlacement(CheckoutResultPlaced, 30*time.Millisecond)
	m.IncRetry(&pgconn.PgError{Code: "40001"})

	if got := testutil.ToFloat64(m.placements.WithLabelValues(CheckoutResultPlaced)); got != 2 {
		t.Fatalf("expected 2 placements, got %v", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues(CheckoutReasonSerialize)); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := newHTTPMetrics(registry, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := newHTTPMetrics(registry, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.requests != second.requests {
		t.Fatalf("expected the registered collector to be reused")
	}
}

func TestHTTPMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := newHTTPMetrics(registry, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/shipping-methods", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/shipping-methods", nil))

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/shipping-methods", "200"))
	if got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}

func TestCheckoutMetricsCarryServiceLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := newCheckoutMetrics(registry, Config{ServiceName: "shop", Environment: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.ObserveLockWait(5 * time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var lockWait *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "storefront_checkout_lock_wait_seconds" {
			lockWait = f
		}
	}
	if lockWait == nil || len(lockWait.GetMetric()) != 1 {
		t.Fatalf("expected lock wait histogram to be gathered")
	}
	labels := map[string]string{}
	for _, lp := range lockWait.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["service"] != "shop" || labels["env"] != "test" {
		t.Fatalf("unexpected labels %v", labels)
	}
	if lockWait.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one observation")
	}
}
