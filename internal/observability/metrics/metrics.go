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

const exportInterval = 10 * time.Second

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes ledger-level OTel instruments.
type Metrics struct {
	assignmentsCreated metric.Int64Counter
	duplicatesSkipped  metric.Int64Counter
	hierarchyChanges   metric.Int64Counter
}

// NewProvider installs the global meter provider. Disabled export yields a
// no-op provider so instruments stay safe to use.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		noopProvider := noop.NewMeterProvider()
		otel.SetMeterProvider(noopProvider)
		return noopProvider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	if log != nil {
		log.Named("metrics").Info("otlp metric export enabled",
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
		name = "territorial"
	}
	meter := provider.Meter(name)

	assignmentsCreated, err := meter.Int64Counter("territorial_assignments_created_total")
	if err != nil {
		return nil, err
	}
	duplicatesSkipped, err := meter.Int64Counter("territorial_assignment_duplicates_total")
	if err != nil {
		return nil, err
	}
	hierarchyChanges, err := meter.Int64Counter("territorial_hierarchy_changes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		assignmentsCreated: assignmentsCreated,
		duplicatesSkipped:  duplicatesSkipped,
		hierarchyChanges:   hierarchyChanges,
	}, nil
}

// RecordAssignmentCreated counts ledger rows by assignment and assignable type.
func (m *Metrics) RecordAssignmentCreated(ctx context.Context, assignmentType, assignableType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("assignment_type", strings.TrimSpace(assignmentType)),
		attribute.String("assignable_type", strings.TrimSpace(assignableType)),
	)
	m.assignmentsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDuplicateSkipped counts automatic writes absorbed by the idempotency check.
func (m *Metrics) RecordDuplicateSkipped(ctx context.Context, assignableType, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("assignable_type", strings.TrimSpace(assignableType)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.duplicatesSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHierarchyChange counts territory tree mutations (create, reparent, delete, restore).
func (m *Metrics) RecordHierarchyChange(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.hierarchyChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(protocol) {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"assignment_type": {},
	"assignable_type": {},
	"operation":       {},
	"outcome":         {},
	"reason":          {},
	"route":           {},
	"status_code":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Territory and record identifiers are never labels.
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
