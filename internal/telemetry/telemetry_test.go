package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dues-dev/dues/internal/config"
)

func TestSetup_NoEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetup_WithEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Endpoint: "localhost:4318", Insecure: true})
	require.NoError(t, err)
	assert.NotEqual(t, before, otel.GetTracerProvider())

	// Nothing was recorded, so shutdown does not need the collector.
	assert.NoError(t, shutdown(context.Background()))
}

func TestResource(t *testing.T) {
	res := Resource(config.TelemetryConfig{ServiceName: "dues-test"})
	v, ok := res.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "dues-test", v.AsString())

	v, ok = Resource(config.TelemetryConfig{}).Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "dues", v.AsString())
}
