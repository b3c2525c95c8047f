package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, SplitBrokers(" k1:9092, ,k2:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestExtractEventMetaFallsBackToOffset(t *testing.T) {
	first := ExtractEventMeta(kafka.Message{Topic: "appointment.outcome.v1", Key: []byte("appt-1"), Partition: 0, Offset: 1})
	second := ExtractEventMeta(kafka.Message{Topic: "appointment.outcome.v1", Key: []byte("appt-1"), Partition: 0, Offset: 2})
	assert.Equal(t, EventMeta{EventID: "appointment.outcome.v1/0/1", EventType: "appointment.outcome.v1"}, first)
	assert.NotEqual(t, first.EventID, second.EventID)

	meta := ExtractEventMeta(kafka.Message{
		Topic: "appointment.outcome.v1",
		Key:   []byte("appt-1"),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-9")},
			{Key: "event_type", Value: []byte("appointment.outcome.v1")},
		},
	})
	assert.Equal(t, "evt-9", meta.EventID)

	meta = ExtractEventMeta(kafka.Message{Topic: "appointment.outcome.v1", Partition: 2, Offset: 41})
	assert.Equal(t, "appointment.outcome.v1/2/41", meta.EventID)
}

func TestEventHeaders(t *testing.T) {
	a := EventHeaders("appointment.updated.v1")
	b := EventHeaders("appointment.updated.v1")
	assert.Equal(t, "appointment.updated.v1", HeaderValue(a, HeaderEventType))
	assert.NotEmpty(t, HeaderValue(a, HeaderEventID))
	assert.NotEqual(t, HeaderValue(a, HeaderEventID), HeaderValue(b, HeaderEventID))
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "event_id", Value: []byte("e1")}})
	assert.NotEmpty(t, HeaderValue(headers, "traceparent"))

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	assert.Equal(t, traceID, got.TraceID())
}
