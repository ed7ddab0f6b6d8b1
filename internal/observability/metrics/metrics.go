package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	couponValidations metric.Int64Counter
	ordersPlaced      metric.Int64Counter
	orderTransitions  metric.Int64Counter
	stockAdjustments  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "storefront"
	}
	meter := provider.Meter(name)

	couponValidations, err := meter.Int64Counter("storefront_coupon_validations_total")
	if err != nil {
		return nil, err
	}
	ordersPlaced, err := meter.Int64Counter("storefront_orders_placed_total")
	if err != nil {
		return nil, err
	}
	orderTransitions, err := meter.Int64Counter("storefront_order_transitions_total")
	if err != nil {
		return nil, err
	}
	stockAdjustments, err := meter.Int64Counter("storefront_stock_adjustments_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		couponValidations: couponValidations,
		ordersPlaced:      ordersPlaced,
		orderTransitions:  orderTransitions,
		stockAdjustments:  stockAdjustments,
	}, nil
}

// NewNoop returns instruments backed by a no-op provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// Coupon validation stages. A checkout re-validates a coupon the customer
// already quoted, so the two are counted apart.
const (
	CouponStageQuote    = "quote"
	CouponStageCheckout = "checkout"
)

// RecordCouponValidation counts coupon validations by stage and outcome.
func (m *Metrics) RecordCouponValidation(ctx context.Context, stage, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("stage", strings.TrimSpace(stage)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.couponValidations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrderPlaced counts placed orders, split by whether a coupon was used.
func (m *Metrics) RecordOrderPlaced(ctx context.Context, shippingMethod string, withCoupon bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("shipping_method", strings.TrimSpace(shippingMethod)),
		attribute.Bool("with_coupon", withCoupon),
	)
	m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrderTransition counts order status transitions.
func (m *Metrics) RecordOrderTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.orderTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStockAdjustment counts stock ledger movements by reason.
func (m *Metrics) RecordStockAdjustment(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.stockAdjustments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"result":          {},
	"stage":           {},
	"reason":          {},
	"shipping_method": {},
	"with_coupon":     {},
	"from_status":     {},
	"to_status":       {},
	"status_code":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
