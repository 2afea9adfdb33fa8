package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to dispatch spans.
const (
	AttrActionName = attribute.Key("agent.action_name")
	AttrRequestID  = attribute.Key("agent.request_id")
	AttrItemKind   = attribute.Key("agent.item_kind")
	AttrDurationMs = attribute.Key("agent.duration_ms")
	AttrQueueDepth = attribute.Key("agent.queue_depth")
)

// StartEnqueueSpan opens a span covering Queue.Enqueue for one request.
func StartEnqueueSpan(ctx context.Context, actionName, requestID string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "queue.enqueue")
	span.SetAttributes(
		AttrActionName.String(actionName),
		AttrRequestID.String(requestID),
	)
	return ctx, span
}

// StartDispatchSpan opens a span covering one worker's handling of a
// dequeued request, from pop through the handler callback.
func StartDispatchSpan(ctx context.Context, actionName, requestID string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "dispatch.handle")
	span.SetAttributes(
		AttrActionName.String(actionName),
		AttrRequestID.String(requestID),
	)
	return ctx, span
}

// StartTransmitSpan opens a span covering delivery of a result or
// telemetry/alarm item over the configured transport.
func StartTransmitSpan(ctx context.Context, itemKind string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "transport.transmit")
	span.SetAttributes(AttrItemKind.String(itemKind))
	return ctx, span
}

// SetSpanError marks span as failed and records err.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks span as having completed successfully.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// SpanFromContext returns the current span in ctx.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
