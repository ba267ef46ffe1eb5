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

// Metrics exposes the response pipeline instruments.
type Metrics struct {
	responsesRecorded metric.Int64Counter
	duplicates        metric.Int64Counter
	orphans           metric.Int64Counter
	deliveriesSent    metric.Int64Counter
	ambiguousMatches  metric.Int64Counter
	webhookEvents     metric.Int64Counter
	webhookDenied     metric.Int64Counter
	jobRuns           metric.Int64Counter
	jobDuration       metric.Float64Histogram
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
		name = "flowpulse"
	}
	meter := provider.Meter(name)

	responsesRecorded, err := meter.Int64Counter("flowpulse_responses_recorded_total",
		metric.WithDescription("Survey responses persisted, by NPS category."))
	if err != nil {
		return nil, err
	}
	duplicates, err := meter.Int64Counter("flowpulse_responses_duplicate_total",
		metric.WithDescription("Replies rejected because the delivery was already answered."))
	if err != nil {
		return nil, err
	}
	orphans, err := meter.Int64Counter("flowpulse_responses_orphan_total",
		metric.WithDescription("Replies with no matching outstanding delivery."))
	if err != nil {
		return nil, err
	}
	deliveriesSent, err := meter.Int64Counter("flowpulse_deliveries_sent_total")
	if err != nil {
		return nil, err
	}
	ambiguousMatches, err := meter.Int64Counter("flowpulse_delivery_match_ambiguous_total",
		metric.WithDescription("Replies matched while more than one delivery was outstanding."))
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("flowpulse_webhook_events_total")
	if err != nil {
		return nil, err
	}
	webhookDenied, err := meter.Int64Counter("flowpulse_webhook_denied_total")
	if err != nil {
		return nil, err
	}
	jobRuns, err := meter.Int64Counter("flowpulse_scheduler_job_runs_total")
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram("flowpulse_scheduler_job_duration_seconds",
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		responsesRecorded: responsesRecorded,
		duplicates:        duplicates,
		orphans:           orphans,
		deliveriesSent:    deliveriesSent,
		ambiguousMatches:  ambiguousMatches,
		webhookEvents:     webhookEvents,
		webhookDenied:     webhookDenied,
		jobRuns:           jobRuns,
		jobDuration:       jobDuration,
	}, nil
}

// RecordResponse counts a persisted response.
func (m *Metrics) RecordResponse(ctx context.Context, category string, isTest bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("category", strings.TrimSpace(category)),
		attribute.Bool("is_test", isTest),
	)
	m.responsesRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordDuplicate(ctx context.Context) {
	if m == nil {
		return
	}
	m.duplicates.Add(ctx, 1)
}

func (m *Metrics) RecordOrphan(ctx context.Context) {
	if m == nil {
		return
	}
	m.orphans.Add(ctx, 1)
}

func (m *Metrics) RecordDeliverySent(ctx context.Context, isTest bool) {
	if m == nil {
		return
	}
	m.deliveriesSent.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.Bool("is_test", isTest))...))
}

// RecordAmbiguousMatch counts replies resolved against one of several outstanding deliveries.
func (m *Metrics) RecordAmbiguousMatch(ctx context.Context, policy string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("policy", strings.TrimSpace(policy)))
	m.ambiguousMatches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhookEvent counts inbound provider events by type and outcome.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordWebhookDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.webhookDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobRun counts one scheduler job run and its duration.
func (m *Metrics) RecordJobRun(ctx context.Context, job, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("job", strings.TrimSpace(job)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
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

// Labels stay low-cardinality: no org_id and nothing derived from a phone number.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"category":    {},
	"is_test":     {},
	"policy":      {},
	"event_type":  {},
	"outcome":     {},
	"reason":      {},
	"job":         {},
	"status_code": {},
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
