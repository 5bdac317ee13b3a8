package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "jega"

// Metrics holds all Jega metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	Webhooks             metric.Int64Counter
	Provisionings        metric.Int64Counter
	ProvisioningDuration metric.Float64Histogram
	AccessDecisions      metric.Int64Counter
	AuthorityLatency     metric.Float64Histogram
	TenantResolutions    metric.Int64Counter
	BreakerTransitions   metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Webhooks, err = meter.Int64Counter("jega.webhooks",
		metric.WithDescription("Gateway webhook deliveries by result"))
	if err != nil {
		return nil, err
	}

	m.Provisionings, err = meter.Int64Counter("jega.provisionings",
		metric.WithDescription("Payment events processed by outcome"))
	if err != nil {
		return nil, err
	}

	m.ProvisioningDuration, err = meter.Float64Histogram("jega.provisioning.duration_seconds",
		metric.WithDescription("Time spent handling one payment event"))
	if err != nil {
		return nil, err
	}

	m.AccessDecisions, err = meter.Int64Counter("jega.access.decisions",
		metric.WithDescription("Module access decisions (allow, deny, fail_open, fail_closed)"))
	if err != nil {
		return nil, err
	}

	m.AuthorityLatency, err = meter.Float64Histogram("jega.authority.latency_seconds",
		metric.WithDescription("Authority check round-trip time"))
	if err != nil {
		return nil, err
	}

	m.TenantResolutions, err = meter.Int64Counter("jega.tenant.resolutions",
		metric.WithDescription("Tenant context resolutions by source"))
	if err != nil {
		return nil, err
	}

	m.BreakerTransitions, err = meter.Int64Counter("jega.breaker.transitions",
		metric.WithDescription("Authority circuit breaker state changes"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordWebhook counts one webhook delivery.
func (m *Metrics) RecordWebhook(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.Webhooks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordProvisioning counts one processed payment event and its duration.
func (m *Metrics) RecordProvisioning(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Provisionings.Add(ctx, 1, attrs)
	m.ProvisioningDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordAccessDecision counts one authorizer decision for a module.
func (m *Metrics) RecordAccessDecision(ctx context.Context, moduleName, decision string) {
	if m == nil {
		return
	}
	m.AccessDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("module", moduleName),
		attribute.String("decision", decision),
	))
}

// RecordAuthorityLatency records one authority round trip.
func (m *Metrics) RecordAuthorityLatency(ctx context.Context, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.AuthorityLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordTenantResolution counts which source supplied the tenant id.
func (m *Metrics) RecordTenantResolution(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.TenantResolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordBreakerTransition counts a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
