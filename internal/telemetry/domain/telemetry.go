package domain

import "time"

// Event is an auth or audit event exported as an OTel log record.
type Event struct {
	UserID    string
	EventType string
	Source    string
	Outcome   string
	Metadata  []byte // JSON
	CreatedAt time.Time
}
