package service

import (
	"strconv"
	"strings"

	"laundry-service/backend/internal/apperr"
	"laundry-service/backend/internal/security"
)

// Registration steps carried in the next_step marker.
const (
	StepVerify   = 1
	StepComplete = 2
)

// StepProof is what the caller presents to enter a registration step: the signed step
// token (temp_jwt cookie) and the plain step marker (next_step cookie).
type StepProof struct {
	Token  string
	Marker string
}

// requireStep checks both signals. Absent proof and a bad signature are Unauthorized; a
// marker or token for another step is WrongStep.
func (s *AuthService) requireStep(p StepProof, step int) (security.StepClaims, error) {
	token := strings.TrimSpace(p.Token)
	marker := strings.TrimSpace(p.Marker)
	if token == "" || marker == "" {
		return security.StepClaims{}, apperr.Unauthorized(MsgMissingToken)
	}
	if n, err := strconv.Atoi(marker); err != nil || n != step {
		return security.StepClaims{}, apperr.WrongStep(MsgWrongStep)
	}
	claims, err := s.codec.ParseStep(token)
	if err != nil {
		return security.StepClaims{}, apperr.Unauthorized(MsgInvalidToken)
	}
	if claims.Step != step {
		return security.StepClaims{}, apperr.WrongStep(MsgWrongStep)
	}
	return claims, nil
}

func (s *AuthService) stepResult(email string, step int) (*StepResult, error) {
	token, err := s.codec.IssueStep(email, step)
	if err != nil {
		return nil, apperr.Internal("could not issue step token", err)
	}
	return &StepResult{Email: email, StepToken: token, NextStep: step}, nil
}
