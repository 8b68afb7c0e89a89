package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const decisionQuery = "data.laundry.registration.decision"

// DefaultRegoPolicy denies blocked domains and, depending on mode, warns about or denies
// domains without a usable mail exchange.
const DefaultRegoPolicy = `package laundry.registration

default decision := "allow"

blocked if {
	some d in input.blocked_domains
	lower(d) == lower(input.domain)
}

decision := "deny" if {
	blocked
}

decision := "deny" if {
	not blocked
	input.mode == "enforce"
	not input.mx_valid
}

decision := "warn" if {
	not blocked
	input.mode == "advisory"
	not input.mx_valid
}
`

// OPAEvaluator evaluates the registration admission policy with OPA Rego.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
	log   *slog.Logger
}

// NewOPAEvaluator compiles policy (DefaultRegoPolicy when empty) and prepares the decision query.
func NewOPAEvaluator(ctx context.Context, policy string, log *slog.Logger) (*OPAEvaluator, error) {
	if strings.TrimSpace(policy) == "" {
		policy = DefaultRegoPolicy
	}
	if log == nil {
		log = slog.Default()
	}
	compiler, err := ast.CompileModules(map[string]string{"registration.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile registration policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare registration policy: %w", err)
	}
	return &OPAEvaluator{query: pq, log: log}, nil
}

// EvaluateRegistration returns the policy decision for in. If evaluation fails or yields
// no usable value, the decision implied by the mode applies and the failure is logged.
func (e *OPAEvaluator) EvaluateRegistration(ctx context.Context, in AdmissionInput) (Decision, error) {
	d, err := e.eval(ctx, in)
	if err != nil {
		e.log.WarnContext(ctx, "policy: evaluation failed, using mode default", "mode", in.Mode, "error", err)
		return FallbackDecision(in), nil
	}
	return d, nil
}

// HealthCheck evaluates the prepared query against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, AdmissionInput{Mode: ModeAdvisory, Domain: "example.com", MXValid: true})
	return err
}

func (e *OPAEvaluator) eval(ctx context.Context, in AdmissionInput) (Decision, error) {
	blocked := make([]interface{}, 0, len(in.BlockedDomains))
	for _, d := range in.BlockedDomains {
		blocked = append(blocked, d)
	}
	input := map[string]interface{}{
		"mode":            in.Mode,
		"domain":          in.Domain,
		"mx_valid":        in.MXValid,
		"blocked_domains": blocked,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("policy query returned no result")
	}
	s, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("policy decision has type %T, want string", rs[0].Expressions[0].Value)
	}
	switch d := Decision(s); d {
	case DecisionAllow, DecisionWarn, DecisionDeny:
		return d, nil
	}
	return "", fmt.Errorf("unknown policy decision %q", s)
}

// FallbackDecision mirrors DefaultRegoPolicy without OPA.
func FallbackDecision(in AdmissionInput) Decision {
	for _, d := range in.BlockedDomains {
		if strings.EqualFold(d, in.Domain) {
			return DecisionDeny
		}
	}
	if in.MXValid {
		return DecisionAllow
	}
	switch in.Mode {
	case ModeEnforce:
		return DecisionDeny
	case ModeAdvisory:
		return DecisionWarn
	}
	return DecisionAllow
}
