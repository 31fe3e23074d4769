package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/wayfinder/pkg/config"
)

func TestInitDisabledUsesNoopTracer(t *testing.T) {
	require.NoError(t, Init(config.TelemetryConfig{Enabled: false}))
	ctx, span := StartSpan(context.Background(), "test.span")
	require.NotNil(t, ctx)
	span.End()
}

func TestInitStdoutExporter(t *testing.T) {
	require.NoError(t, Init(config.TelemetryConfig{Enabled: true, ExporterType: "stdout", ServiceName: "wf-test"}))
	_, span := StartSpan(context.Background(), "test.stdout")
	span.End()
	require.NoError(t, Shutdown(context.Background()))
}

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.LeafExecutions.WithLabelValues("move_to", "success").Inc()
	m.ActivePlans.Set(3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}
