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

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes domain counters exported over OTLP.
type Metrics struct {
	bookingsCreated    metric.Int64Counter
	bookingTransitions metric.Int64Counter
	bookingConflicts   metric.Int64Counter
	ledgerAdjustments  metric.Int64Counter
	ledgerRejections   metric.Int64Counter
	paymentEvents      metric.Int64Counter
	sideEffectFailures metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
	ledgerDrift        metric.Int64Counter
	stalePayments      metric.Int64Counter
	schedulerJobs      metric.Int64Counter
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
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New creates the domain instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "appointly"
	}
	meter := provider.Meter(name)

	counters := map[string]*metric.Int64Counter{}
	m := &Metrics{}
	counters["appointly_bookings_created_total"] = &m.bookingsCreated
	counters["appointly_booking_transitions_total"] = &m.bookingTransitions
	counters["appointly_booking_conflicts_total"] = &m.bookingConflicts
	counters["appointly_ledger_adjustments_total"] = &m.ledgerAdjustments
	counters["appointly_ledger_rejections_total"] = &m.ledgerRejections
	counters["appointly_payment_events_total"] = &m.paymentEvents
	counters["appointly_side_effect_failures_total"] = &m.sideEffectFailures
	counters["appointly_rate_limit_denied_total"] = &m.rateLimitDenied
	counters["appointly_ledger_drift_total"] = &m.ledgerDrift
	counters["appointly_stale_payment_events_total"] = &m.stalePayments
	counters["appointly_scheduler_job_runs_total"] = &m.schedulerJobs

	for instrument, target := range counters {
		counter, err := meter.Int64Counter(instrument)
		if err != nil {
			return nil, err
		}
		*target = counter
	}
	return m, nil
}

func (m *Metrics) RecordBookingCreated(ctx context.Context, actorType string) {
	if m == nil {
		return
	}
	m.bookingsCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("actor_type", actorType),
	)...))
}

func (m *Metrics) RecordBookingTransition(ctx context.Context, action, to string) {
	if m == nil {
		return
	}
	m.bookingTransitions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("action", action),
		attribute.String("status", to),
	)...))
}

func (m *Metrics) RecordBookingConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.bookingConflicts.Add(ctx, 1)
}

func (m *Metrics) RecordLedgerAdjustment(ctx context.Context, txType string, replayed bool) {
	if m == nil {
		return
	}
	m.ledgerAdjustments.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("type", txType),
		attribute.Bool("replayed", replayed),
	)...))
}

func (m *Metrics) RecordLedgerRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.ledgerRejections.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("reason", reason),
	)...))
}

func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType, outcome string) {
	if m == nil {
		return
	}
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", provider),
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	)...))
}

func (m *Metrics) RecordSideEffectFailure(ctx context.Context, effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("effect", effect),
	)...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", endpoint),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
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
	"actor_type": {},
	"action":     {},
	"status":     {},
	"type":       {},
	"replayed":   {},
	"reason":     {},
	"provider":   {},
	"event_type": {},
	"outcome":    {},
	"effect":     {},
	"endpoint":   {},
	"job":        {},
}

// FilterAttributes strips labels outside the allow list to keep cardinality bounded.
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

func (m *Metrics) RecordLedgerDrift(ctx context.Context) {
	if m == nil {
		return
	}
	m.ledgerDrift.Add(ctx, 1)
}

func (m *Metrics) RecordStalePaymentEvents(ctx context.Context, provider string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.stalePayments.Add(ctx, int64(count), metric.WithAttributes(FilterAttributes(
		attribute.String("provider", provider),
	)...))
}

func (m *Metrics) RecordSchedulerJob(ctx context.Context, job, outcome string) {
	if m == nil {
		return
	}
	m.schedulerJobs.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("job", job),
		attribute.String("outcome", outcome),
	)...))
}
