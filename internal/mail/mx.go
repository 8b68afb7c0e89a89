package mail

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Resolver is the subset of *net.Resolver used by MXValidator.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// MXValidator reports whether a domain has a usable mail exchange.
type MXValidator struct {
	resolver Resolver
	timeout  time.Duration
}

// NewMXValidator returns an MXValidator. A nil resolver uses net.DefaultResolver.
func NewMXValidator(resolver Resolver, timeout time.Duration) *MXValidator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MXValidator{resolver: resolver, timeout: timeout}
}

// HasValidMailExchange reports whether domain publishes at least one MX host other than
// the null MX ("." per RFC 7505). Lookup failures count as no valid exchange; a temporary
// DNS failure is returned as an error so callers can tell it apart.
func (v *MXValidator) HasValidMailExchange(ctx context.Context, domain string) (bool, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
			return false, err
		}
		return false, nil
	}
	for _, mx := range records {
		if host := strings.TrimSuffix(mx.Host, "."); host != "" {
			return true, nil
		}
	}
	return false, nil
}

// DomainOf returns the part of email after the last "@", or "".
func DomainOf(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return email[i+1:]
}
