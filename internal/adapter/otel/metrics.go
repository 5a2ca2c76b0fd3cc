package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "atelier"

// Metrics holds all chat runtime metric instruments.
type Metrics struct {
	TurnsStarted  metric.Int64Counter
	TurnsFinished metric.Int64Counter
	TurnsFailed   metric.Int64Counter
	ToolCalls     metric.Int64Counter
	TurnDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsStarted, err = meter.Int64Counter("atelier.turns.started",
		metric.WithDescription("Number of chat turns started"))
	if err != nil {
		return nil, err
	}

	m.TurnsFinished, err = meter.Int64Counter("atelier.turns.finished",
		metric.WithDescription("Number of chat turns finished"))
	if err != nil {
		return nil, err
	}

	m.TurnsFailed, err = meter.Int64Counter("atelier.turns.failed",
		metric.WithDescription("Number of chat turns that ended in an error frame"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("atelier.toolcalls",
		metric.WithDescription("Number of tool calls dispatched"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("atelier.turn.duration_seconds",
		metric.WithDescription("Chat turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
