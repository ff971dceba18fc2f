package mail

import "context"

// Sender delivers one transactional email. No local retry: a provider or
// network failure is returned to the caller as-is.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlContent string) error
}
