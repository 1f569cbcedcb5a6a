package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/petal-labs/foundryctl/tool"
)

// DeploymentObservation describes one finished deployment attempt.
type DeploymentObservation struct {
	Kind      string
	Name      string
	Succeeded bool
	Duration  time.Duration
}

// DeploymentObserver receives finished deployment attempts.
type DeploymentObserver interface {
	ObserveDeployment(DeploymentObservation)
}

// Metrics records tool registry and deployment signals. It implements
// tool.Observer so it can be installed with tool.SetObserver.
type Metrics struct {
	toolWarnings metric.Int64Counter
	toolBuilds   metric.Int64Counter
	toolsBuilt   metric.Int64Counter
	deployments  metric.Int64Counter
	deployTime   metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	warnings, err := meter.Int64Counter("foundryctl.tool.warnings",
		metric.WithDescription("Number of tool declarations skipped or degraded"),
	)
	if err != nil {
		return nil, err
	}

	builds, err := meter.Int64Counter("foundryctl.tool.builds",
		metric.WithDescription("Number of tool registry builds"),
	)
	if err != nil {
		return nil, err
	}

	built, err := meter.Int64Counter("foundryctl.tool.descriptors",
		metric.WithDescription("Number of tool descriptors produced"),
	)
	if err != nil {
		return nil, err
	}

	deployments, err := meter.Int64Counter("foundryctl.deployments",
		metric.WithDescription("Number of deployment attempts"),
	)
	if err != nil {
		return nil, err
	}

	deployTime, err := meter.Float64Histogram("foundryctl.deployment.duration",
		metric.WithDescription("Duration of deployments in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		toolWarnings: warnings,
		toolBuilds:   builds,
		toolsBuilt:   built,
		deployments:  deployments,
		deployTime:   deployTime,
	}, nil
}

// ObserveWarning counts one per-entry registry warning.
func (m *Metrics) ObserveWarning(w tool.Warning) {
	if m == nil {
		return
	}
	m.toolWarnings.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("code", w.Code),
		attribute.String("tool_type", w.Type),
	))
}

// ObserveBuild counts one registry build and the descriptors it produced.
func (m *Metrics) ObserveBuild(o tool.BuildObservation) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := []attribute.KeyValue{attribute.Bool("success", !o.Failed)}
	if o.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", o.ErrorCode))
	}
	m.toolBuilds.Add(ctx, 1, metric.WithAttributes(attrs...))
	if o.Built > 0 {
		m.toolsBuilt.Add(ctx, int64(o.Built))
	}
}

// ObserveDeployment counts a deployment and records its duration.
func (m *Metrics) ObserveDeployment(o DeploymentObservation) {
	if m == nil {
		return
	}
	ctx := context.Background()
	options := metric.WithAttributes(
		attribute.String("kind", o.Kind),
		attribute.String("name", o.Name),
		attribute.Bool("success", o.Succeeded),
	)
	m.deployments.Add(ctx, 1, options)
	m.deployTime.Record(ctx, o.Duration.Seconds(), options)
}

var (
	_ tool.Observer      = (*Metrics)(nil)
	_ DeploymentObserver = (*Metrics)(nil)
)
