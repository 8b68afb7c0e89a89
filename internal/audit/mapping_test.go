package audit

import "testing"

func TestParseRoute(t *testing.T) {
	tests := []struct {
		method, path string
		want         ActionResource
	}{
		{"POST", "/api/auth/register", ActionResource{"register", "auth"}},
		{"POST", "/api/auth/complete-registration", ActionResource{"complete_registration", "auth"}},
		{"POST", "/api/auth/resend-verification/", ActionResource{"resend_verification", "auth"}},
		{"GET", "/api/auth/me", ActionResource{"get_me", "auth"}},
		{"GET", "/dev/verification-code", ActionResource{"get_verification_code", "dev"}},
		{"GET", "/healthz", ActionResource{"get_healthz", "healthz"}},
		{"POST", "/", ActionResource{"unknown", "unknown"}},
		{"POST", "/api", ActionResource{"unknown", "unknown"}},
	}
	for _, tt := range tests {
		if got := ParseRoute(tt.method, tt.path); got != tt.want {
			t.Errorf("ParseRoute(%q, %q) = %+v, want %+v", tt.method, tt.path, got, tt.want)
		}
	}
}
