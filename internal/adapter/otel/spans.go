package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "jega"

// StartProvisioningSpan starts a span for one payment event.
func StartProvisioningSpan(ctx context.Context, reference, status string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "provisioning",
		trace.WithAttributes(
			attribute.String("payment.reference", reference),
			attribute.String("payment.status", status),
		),
	)
}

// StartAuthorityCheckSpan starts a span for an outbound access check.
func StartAuthorityCheckSpan(ctx context.Context, userID, moduleName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "authority.check",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("module.name", moduleName),
		),
	)
}
