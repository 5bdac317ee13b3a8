// Package notifier defines the notification port (interface).
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Kind classifies a notification.
type Kind string

const (
	KindWelcome      Kind = "tenant.welcome"
	KindModulesAdded Kind = "tenant.modules_added"
)

// Notification is the payload sent through a Notifier.
type Notification struct {
	Kind    Kind   `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "email", "log").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, n Notification) error
}
