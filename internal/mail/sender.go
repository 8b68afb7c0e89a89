// Package mail sends transactional email and checks mail domains.
package mail

import (
	"context"
	"errors"
)

// ErrRejected is wrapped by senders when the transport did not accept a message.
var ErrRejected = errors.New("mail: message not accepted")

// Sender delivers one HTML message. A nil error means the transport accepted it.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
