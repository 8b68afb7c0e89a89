package telemetry

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestAuthMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewAuthMetrics(mp)
	if err != nil {
		t.Fatalf("NewAuthMetrics: %v", err)
	}
	ctx := context.Background()
	m.Record(ctx, OpLogin, nil)
	m.Record(ctx, OpLogin, errors.New("bad password"))
	m.Record(ctx, OpLogin, nil)
	m.MailFailed(ctx, OpRegister)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				totals[metric.Name+"/"+outcome.AsString()] += dp.Value
			}
		}
	}
	if totals["auth.operations/success"] != 2 {
		t.Errorf("success = %d, want 2", totals["auth.operations/success"])
	}
	if totals["auth.operations/failure"] != 1 {
		t.Errorf("failure = %d, want 1", totals["auth.operations/failure"])
	}
	if totals["auth.mail.failures/"] != 1 {
		t.Errorf("mail failures = %d, want 1", totals["auth.mail.failures/"])
	}
}

func TestAuthMetrics_NilSafe(t *testing.T) {
	var m *AuthMetrics
	m.Record(context.Background(), OpLogout, nil)
	m.MailFailed(context.Background(), OpResend)

	if _, err := NewAuthMetrics(nil); err != nil {
		t.Fatalf("NewAuthMetrics(nil): %v", err)
	}
}
