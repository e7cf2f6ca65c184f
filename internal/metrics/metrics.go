package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	Refreshes        metric.Int64Counter
	RefreshFailures  metric.Int64Counter
	RefreshDuration  metric.Float64Histogram
	FeedSelections   metric.Int64Counter
	FeedMismatches   metric.Int64Counter
	Unlockable       metric.Int64UpDownCounter
	HTTPRequests     metric.Int64Counter
	HTTPDuration     metric.Float64Histogram
	SinkWriteFailure metric.Int64Counter

	mu             sync.Mutex
	lastUnlockable int64
}

// Setup builds the meters on a private Prometheus registry and returns the
// handler that serves it.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	m := &Metrics{}

	if m.Refreshes, err = meter.Int64Counter(
		"vaultscope_refreshes_total",
		metric.WithDescription("Vault refresh attempts"),
	); err != nil {
		return nil, nil, err
	}
	if m.RefreshFailures, err = meter.Int64Counter(
		"vaultscope_refresh_failures_total",
		metric.WithDescription("Vault refreshes that failed"),
	); err != nil {
		return nil, nil, err
	}
	if m.RefreshDuration, err = meter.Float64Histogram(
		"vaultscope_refresh_duration_seconds",
		metric.WithDescription("Duration of a full refresh round in seconds"),
	); err != nil {
		return nil, nil, err
	}
	if m.FeedSelections, err = meter.Int64Counter(
		"vaultscope_feed_selections_total",
		metric.WithDescription("Effective feed chosen per vault refresh"),
	); err != nil {
		return nil, nil, err
	}
	if m.FeedMismatches, err = meter.Int64Counter(
		"vaultscope_feed_mismatches_total",
		metric.WithDescription("Refreshes where the contract used a different feed"),
	); err != nil {
		return nil, nil, err
	}
	if m.Unlockable, err = meter.Int64UpDownCounter(
		"vaultscope_unlockable_vaults",
		metric.WithDescription("Tracked vaults that can be withdrawn"),
	); err != nil {
		return nil, nil, err
	}
	if m.HTTPRequests, err = meter.Int64Counter(
		"vaultscope_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, nil, err
	}
	if m.HTTPDuration, err = meter.Float64Histogram(
		"vaultscope_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, nil, err
	}
	if m.SinkWriteFailure, err = meter.Int64Counter(
		"vaultscope_sink_failures_total",
		metric.WithDescription("Snapshot sink writes that failed"),
	); err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) RecordRefresh(ctx context.Context, vaults, failures int, duration time.Duration) {
	m.Refreshes.Add(ctx, int64(vaults))
	m.RefreshFailures.Add(ctx, int64(failures))
	m.RefreshDuration.Record(ctx, duration.Seconds())
}

func (m *Metrics) RecordFeed(ctx context.Context, asset, source string, mismatch bool) {
	attrs := metric.WithAttributes(
		attribute.String("asset", asset),
		attribute.String("source", source),
	)
	m.FeedSelections.Add(ctx, 1, attrs)
	if mismatch {
		m.FeedMismatches.Add(ctx, 1, metric.WithAttributes(attribute.String("asset", asset)))
	}
}

// RecordUnlockable sets the unlockable gauge to count.
func (m *Metrics) RecordUnlockable(ctx context.Context, count int) {
	m.mu.Lock()
	delta := int64(count) - m.lastUnlockable
	m.lastUnlockable = int64(count)
	m.mu.Unlock()
	if delta != 0 {
		m.Unlockable.Add(ctx, delta)
	}
}

func (m *Metrics) RecordSinkFailure(ctx context.Context, sink string) {
	m.SinkWriteFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}
