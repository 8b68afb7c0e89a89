package engine

import "context"

// Decision is the outcome of the registration admission policy.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionDeny  Decision = "deny"
)

// MX policy modes.
const (
	ModeOff      = "off"
	ModeAdvisory = "advisory"
	ModeEnforce  = "enforce"
)

// AdmissionInput is what the policy sees about a registration attempt.
type AdmissionInput struct {
	Mode           string
	Domain         string
	MXValid        bool
	BlockedDomains []string
}

// Evaluator decides whether an email domain may register.
type Evaluator interface {
	EvaluateRegistration(ctx context.Context, in AdmissionInput) (Decision, error)
}
