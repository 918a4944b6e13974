package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func tracedOrchestrator(t *testing.T) (*Orchestrator, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return newOrchestrator(t, Deps{Tracer: tp.Tracer(instrumentationName)}), exporter
}

func TestInterpretSpans(t *testing.T) {
	o, exporter := tracedOrchestrator(t)

	res, err := o.Interpret(context.Background(), sheet(planView(), sectionView()), RunOptions{})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	byName := map[string]tracetest.SpanStub{}
	var names []string
	for _, s := range spans {
		byName[s.Name] = s
		names = append(names, s.Name)
	}
	// children end before their parent
	assert.Equal(t, []string{
		"interpret.classify",
		"interpret.levels",
		"interpret.match",
		"interpret.correlate",
		"interpret.merge",
		"interpret",
	}, names)

	root := byName["interpret"]
	assert.Contains(t, root.Attributes, attribute.String("session_id", res.SessionID))
	assert.Contains(t, root.Attributes, attribute.String("sheet", "A-101"))
	assert.Contains(t, root.Attributes, attribute.Int("views", 2))
	assert.NotEqual(t, codes.Error, root.Status.Code)

	for _, name := range names[:len(names)-1] {
		assert.Equal(t, root.SpanContext.SpanID(), byName[name].Parent.SpanID(), name)
	}
}

func TestInterpretSpanRecordsFailure(t *testing.T) {
	o, exporter := tracedOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Interpret(ctx, sheet(planView()), RunOptions{})
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "no phase starts after cancellation")
	assert.Equal(t, "interpret", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, ErrCancelled.Error(), spans[0].Status.Description)
	assert.NotEmpty(t, spans[0].Events, "error recorded as a span event")
}
