package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"laundry-service/backend/internal/telemetry"
	"laundry-service/backend/internal/telemetry/domain"
)

const instrumentationName = "laundry.auth.events"

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger otellog.Logger) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(otellog.SeverityInfo)
	if event.Outcome == telemetry.OutcomeFailed {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	rec.SetEventName(event.EventType)
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	attrs := []struct{ key, val string }{
		{"user_id", event.UserID},
		{"event_type", event.EventType},
		{"source", event.Source},
		{"outcome", event.Outcome},
	}
	for _, a := range attrs {
		if a.val != "" {
			rec.AddAttributes(otellog.String(a.key, a.val))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
