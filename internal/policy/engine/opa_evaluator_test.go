package engine

import (
	"context"
	"testing"
)

func newTestEvaluator(t *testing.T, policy string) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background(), policy, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e := newTestEvaluator(t, "")
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	e := newTestEvaluator(t, "")
	blocked := []string{"Mailinator.com"}
	tests := []struct {
		name string
		in   AdmissionInput
		want Decision
	}{
		{"valid mx advisory", AdmissionInput{Mode: ModeAdvisory, Domain: "ex.com", MXValid: true}, DecisionAllow},
		{"no mx advisory", AdmissionInput{Mode: ModeAdvisory, Domain: "ex.com"}, DecisionWarn},
		{"no mx enforce", AdmissionInput{Mode: ModeEnforce, Domain: "ex.com"}, DecisionDeny},
		{"no mx off", AdmissionInput{Mode: ModeOff, Domain: "ex.com"}, DecisionAllow},
		{"blocked valid mx", AdmissionInput{Mode: ModeOff, Domain: "mailinator.com", MXValid: true, BlockedDomains: blocked}, DecisionDeny},
		{"blocked no mx advisory", AdmissionInput{Mode: ModeAdvisory, Domain: "mailinator.com", BlockedDomains: blocked}, DecisionDeny},
		{"not blocked", AdmissionInput{Mode: ModeEnforce, Domain: "ex.com", MXValid: true, BlockedDomains: blocked}, DecisionAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateRegistration(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("EvaluateRegistration: %v", err)
			}
			if got != tt.want {
				t.Errorf("decision = %q, want %q", got, tt.want)
			}
			if fb := FallbackDecision(tt.in); fb != tt.want {
				t.Errorf("FallbackDecision = %q, want %q", fb, tt.want)
			}
		})
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	policy := `package laundry.registration

default decision := "deny"

decision := "allow" if {
	endswith(input.domain, ".edu")
}
`
	e := newTestEvaluator(t, policy)
	got, _ := e.EvaluateRegistration(context.Background(), AdmissionInput{Domain: "uni.edu"})
	if got != DecisionAllow {
		t.Errorf("uni.edu decision = %q, want allow", got)
	}
	got, _ = e.EvaluateRegistration(context.Background(), AdmissionInput{Domain: "ex.com", MXValid: true})
	if got != DecisionDeny {
		t.Errorf("ex.com decision = %q, want deny", got)
	}
}

func TestOPAEvaluator_BadDecisionFallsBack(t *testing.T) {
	policy := `package laundry.registration

decision := 42
`
	e := newTestEvaluator(t, policy)
	got, err := e.EvaluateRegistration(context.Background(), AdmissionInput{Mode: ModeEnforce, Domain: "ex.com"})
	if err != nil {
		t.Fatalf("EvaluateRegistration should not fail: %v", err)
	}
	if got != DecisionDeny {
		t.Errorf("fallback decision = %q, want deny", got)
	}
	if err := e.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck should report a policy with a non-string decision")
	}
}

func TestNewOPAEvaluator_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), "package broken\n\nallow if {", nil); err == nil {
		t.Fatal("NewOPAEvaluator should reject a policy that does not compile")
	}
}
