package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latencies for the Prometheus endpoint.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) (*HTTPMetrics, error) {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) (*HTTPMetrics, error) {
	constLabels := serviceLabels(cfg)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_http_requests_total",
		Help:        "HTTP requests processed, partitioned by route and status code.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "storefront_http_request_duration_seconds",
		Help:        "HTTP request latency.",
		ConstLabels: constLabels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"method", "route"})

	var err error
	if requests, err = registerOrReuse(registerer, requests); err != nil {
		return nil, err
	}
	if duration, err = registerOrReuse(registerer, duration); err != nil {
		return nil, err
	}

	return &HTTPMetrics{requests: requests, duration: duration}, nil
}

// GinMiddleware records request metrics after the handler chain completes.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := strings.ToUpper(c.Request.Method)
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func serviceLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "storefront"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{"service": serviceName, "env": environment}
}

func registerOrReuse[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}
