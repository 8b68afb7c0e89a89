package mail

import (
	"bytes"
	"embed"
	"html/template"
	"net/url"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// VerificationSubject is the subject line of the verification email.
const VerificationSubject = "Verify Your Email"

// VerificationData fills the verification email.
type VerificationData struct {
	Code             string
	ExpiresInMinutes int
	Link             string
}

// VerificationLink builds FRONTEND_URL/verify?token=<digest>. Returns "" when baseURL is empty.
func VerificationLink(baseURL, digest string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return ""
	}
	return baseURL + "/verify?token=" + url.QueryEscape(digest)
}

// RenderVerification renders the verification email body.
func RenderVerification(code string, ttl time.Duration, link string) (string, error) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "verification.html", VerificationData{
		Code:             code,
		ExpiresInMinutes: int(ttl.Minutes()),
		Link:             link,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
