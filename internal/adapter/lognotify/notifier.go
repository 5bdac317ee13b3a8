// Package lognotify provides a notifier that writes notifications to the
// structured log. It stands in for email in development.
package lognotify

import (
	"context"
	"log/slog"

	"github.com/jegasuite/jega/internal/port/notifier"
)

const notifierName = notifier.DefaultBackend

func init() {
	notifier.Register(notifierName, func(map[string]string) (notifier.Notifier, error) {
		return New(), nil
	})
}

// Notifier logs notifications instead of delivering them.
type Notifier struct{}

// New creates a log notifier.
func New() *Notifier { return &Notifier{} }

// Name returns the notifier identifier.
func (*Notifier) Name() string { return notifierName }

// Send logs the notification at info level. The body is omitted.
func (*Notifier) Send(ctx context.Context, n notifier.Notification) error {
	slog.InfoContext(ctx, "notification", "kind", n.Kind, "to", n.To, "subject", n.Subject)
	return nil
}
