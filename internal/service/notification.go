// Package service contains application services.
package service

import (
	"context"
	"log/slog"

	"github.com/jegasuite/jega/internal/port/notifier"
)

// NotificationService dispatches notifications to all registered notifiers.
type NotificationService struct {
	notifiers    []notifier.Notifier
	enabledKinds map[notifier.Kind]bool
}

// NewNotificationService creates a NotificationService with the given
// notifiers. If enabledKinds is empty, every kind is delivered.
func NewNotificationService(notifiers []notifier.Notifier, enabledKinds []notifier.Kind) *NotificationService {
	enabled := make(map[notifier.Kind]bool, len(enabledKinds))
	for _, k := range enabledKinds {
		enabled[k] = true
	}
	return &NotificationService{
		notifiers:    notifiers,
		enabledKinds: enabled,
	}
}

// Notify sends n to every notifier and reports whether at least one
// accepted it. Errors are logged but do not interrupt delivery to others.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) bool {
	if s == nil {
		return false
	}
	if len(s.enabledKinds) > 0 && !s.enabledKinds[n.Kind] {
		return false
	}

	delivered := false
	for _, provider := range s.notifiers {
		if err := provider.Send(ctx, n); err != nil {
			slog.WarnContext(ctx, "notification send failed",
				"provider", provider.Name(),
				"kind", n.Kind,
				"error", err,
			)
			continue
		}
		delivered = true
		slog.DebugContext(ctx, "notification sent", "provider", provider.Name(), "kind", n.Kind)
	}
	return delivered
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}
