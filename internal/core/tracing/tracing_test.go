package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_WithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(Options{ServiceName: "docpipe-ingest"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := StartSpan(context.Background(), "ingest.start")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		root  string
	}{
		{ratio: 1, root: "root:AlwaysOnSampler"},
		{ratio: 2, root: "root:AlwaysOnSampler"},
		{ratio: 0, root: "root:AlwaysOffSampler"},
		{ratio: -1, root: "root:AlwaysOffSampler"},
		{ratio: 0.5, root: "root:TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		desc := sampler(tt.ratio).Description()
		assert.Contains(t, desc, "ParentBased")
		assert.Contains(t, desc, tt.root, "ratio %v", tt.ratio)
	}
}

func TestSampler_DecidesNewTraces(t *testing.T) {
	for ratio, sampled := range map[float64]bool{1: true, 0: false} {
		provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler(ratio)))
		_, span := provider.Tracer(tracerName).Start(context.Background(), "ingest.start")
		assert.Equal(t, sampled, span.SpanContext().IsSampled(), "ratio %v", ratio)
		span.End()
		require.NoError(t, provider.Shutdown(context.Background()))
	}
}
