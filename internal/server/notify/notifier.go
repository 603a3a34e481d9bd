// Package notify delivers account activation messages.
package notify

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Notifier sends an activation link to a freshly registered account.
type Notifier interface {
	SendActivation(ctx context.Context, email, activationURL string) error
}

// LogNotifier writes activation links to the log. Used in development and
// whenever no outbox bucket is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "notifier")}
}

func (n *LogNotifier) SendActivation(ctx context.Context, email, activationURL string) error {
	n.logger.Info(ctx, "activation link", "email", email, "url", activationURL)
	return nil
}
