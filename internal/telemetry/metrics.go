package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Auth operation names recorded by AuthMetrics.
const (
	OpRegister    = "register"
	OpVerify      = "verify"
	OpResend      = "resend_verification"
	OpComplete    = "complete_registration"
	OpLogin       = "login"
	OpRefresh     = "refresh"
	OpLogout      = "logout"
	OutcomeOK     = "success"
	OutcomeFailed = "failure"
)

// AuthMetrics counts auth operations by outcome.
type AuthMetrics struct {
	ops          metric.Int64Counter
	mailFailures metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on mp. A nil mp yields no-op counters.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter("laundry.auth")
	ops, err := meter.Int64Counter("auth.operations",
		metric.WithDescription("Auth operations by name and outcome"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, err
	}
	mailFailures, err := meter.Int64Counter("auth.mail.failures",
		metric.WithDescription("Verification mails the transport did not accept"),
		metric.WithUnit("{mail}"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{ops: ops, mailFailures: mailFailures}, nil
}

// Record counts one operation. Safe on a nil receiver.
func (m *AuthMetrics) Record(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// MailFailed counts one undelivered verification mail. Safe on a nil receiver.
func (m *AuthMetrics) MailFailed(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.mailFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}
