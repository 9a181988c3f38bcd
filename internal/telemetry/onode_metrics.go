package internaltelemetry

import (
	"go.opentelemetry.io/otel/metric"
)

// OnodeManagerMetrics holds the metric instruments for the onode manager.
type OnodeManagerMetrics struct {
	OpsStartedCounter      metric.Int64Counter
	OpsHandledCounter      metric.Int64Counter
	OpLatencyHistogram     metric.Int64Histogram
	ActiveOpsUpDownCounter metric.Int64UpDownCounter
	ListedKeysCounter      metric.Int64Counter
}

// NewOnodeManagerMetrics creates and registers all the metrics for the onode manager.
func NewOnodeManagerMetrics(meter metric.Meter) (*OnodeManagerMetrics, error) {
	opsStartedCounter, err := meter.Int64Counter(
		"onode.manager.started_total",
		metric.WithDescription("Total number of onode manager operations started."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	opsHandledCounter, err := meter.Int64Counter(
		"onode.manager.handled_total",
		metric.WithDescription("Total number of onode manager operations completed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	opLatencyHistogram, err := meter.Int64Histogram(
		"onode.manager.duration",
		metric.WithDescription("The latency of onode manager operations."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	activeOpsUpDownCounter, err := meter.Int64UpDownCounter(
		"onode.manager.active_ops",
		metric.WithDescription("Number of onode manager operations in flight."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	listedKeysCounter, err := meter.Int64Counter(
		"onode.manager.listed_keys_total",
		metric.WithDescription("Total number of keys returned by listings."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &OnodeManagerMetrics{
		OpsStartedCounter:      opsStartedCounter,
		OpsHandledCounter:      opsHandledCounter,
		OpLatencyHistogram:     opLatencyHistogram,
		ActiveOpsUpDownCounter: activeOpsUpDownCounter,
		ListedKeysCounter:      listedKeysCounter,
	}, nil
}
