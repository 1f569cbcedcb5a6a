package otel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"

	foundryotel "github.com/petal-labs/foundryctl/otel"
)

func TestSetup_InstallsGlobalProviders(t *testing.T) {
	prevTracer := otel.GetTracerProvider()
	prevMeter := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
	})

	reader := metric.NewManualReader()
	p, err := foundryotel.Setup(context.Background(), foundryotel.Config{
		ServiceVersion: "test",
		MetricReader:   reader,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.Same(t, p.Tracer, otel.GetTracerProvider())
	assert.Same(t, p.Meter, otel.GetMeterProvider())

	m, err := foundryotel.NewMetrics(otel.Meter(foundryotel.ScopeName))
	require.NoError(t, err)
	m.ObserveDeployment(foundryotel.DeploymentObservation{Kind: "guardrails", Succeeded: true})

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "foundryctl.deployments")))

	_, span := otel.Tracer(foundryotel.ScopeName).Start(context.Background(), "setup-check")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestSetup_WithEndpoint(t *testing.T) {
	prevTracer := otel.GetTracerProvider()
	prevMeter := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
	})

	p, err := foundryotel.Setup(context.Background(), foundryotel.Config{
		Endpoint: "http://127.0.0.1:4318/v1/traces",
	})
	require.NoError(t, err)
	require.NotNil(t, p.Tracer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}

func TestProviders_NilShutdown(t *testing.T) {
	var p *foundryotel.Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}
