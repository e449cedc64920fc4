package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// withRecorder installs a recording tracer provider for the test
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		provider.Shutdown(context.Background())
	})
	return recorder
}

func TestNewTracerProvider(t *testing.T) {
	tests := []struct {
		name   string
		config TracerConfig
	}{
		{
			name:   "disabled",
			config: TracerConfig{ServiceName: "chaos-swarm-helper"},
		},
		{
			name: "enabled insecure",
			config: TracerConfig{
				Enabled:        true,
				Endpoint:       "localhost:4317",
				ServiceName:    "chaos-swarm-helper",
				ServiceVersion: "test",
				SampleRate:     0.5,
				Insecure:       true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := otel.GetTracerProvider()
			t.Cleanup(func() { otel.SetTracerProvider(previous) })

			tp, err := NewTracerProvider(tt.config, zap.NewNop())
			require.NoError(t, err)
			require.NotNil(t, tp)

			// W3C trace context is always installed
			fields := otel.GetTextMapPropagator().Fields()
			assert.Contains(t, fields, "traceparent")

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			assert.NoError(t, tp.Shutdown(ctx))
		})
	}
}

func TestStartSpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "coordinator.Submit")
	assert.True(t, span.SpanContext().IsValid())

	_, child := StartSpan(ctx, "coordinator.Resolve")
	child.End()
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "coordinator.Resolve", ended[0].Name())
	assert.Equal(t, "coordinator.Submit", ended[1].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

func TestRecordError(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "agent.Execute")
	RecordError(ctx, errors.New("pumba: command not found"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "pumba: command not found", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestSetSpanStatus(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "coordinator.Dispatch")
	SetSpanStatus(ctx, codes.Ok, "")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
}

func TestSpanFunctions_NoActiveSpan(t *testing.T) {
	// Both are no-ops on a context without a span
	assert.NotPanics(t, func() {
		RecordError(context.Background(), errors.New("boom"))
		SetSpanStatus(context.Background(), codes.Error, "boom")
	})
}

func TestPropagator_RoundTrip(t *testing.T) {
	withRecorder(t)
	_, err := NewTracerProvider(TracerConfig{}, zap.NewNop())
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "client")
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	require.NotEmpty(t, carrier.Get("traceparent"))

	extracted := otel.GetTextMapPropagator().Extract(context.Background(), carrier)
	_, server := StartSpan(extracted, "server")
	defer server.End()
	assert.Equal(t, span.SpanContext().TraceID(), server.SpanContext().TraceID())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sampler(tt.rate).Description(), "rate %v", tt.rate)
	}
}

func TestHelperResource(t *testing.T) {
	res := helperResource(TracerConfig{ServiceName: "chaos-swarm-helper", ServiceVersion: "1.2.3", Role: "executor"})

	attrs := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "chaos-swarm-helper", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, "executor", attrs["chaosswarm.role"])

	bare := helperResource(TracerConfig{ServiceName: "chaos-swarm-helper"})
	_, ok := bare.Set().Value("chaosswarm.role")
	assert.False(t, ok)
}
