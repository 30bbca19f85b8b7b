// Package notification defines the outbound notification contract. The
// engine never calls a notifier directly: transitions enqueue outbox
// rows inside their transaction, and the dispatcher worker delivers them
// after commit.
package notification

import (
	"context"

	"go.uber.org/zap"
)

// Message describes who must act next after a transition.
type Message struct {
	TenantID   string
	InstanceID string
	Category   string
	// TargetTier is the tier that must act; zero when the message
	// targets a specific user (normally the requestor).
	TargetTier int
	TargetUser string
	Summary    string
}

// Notifier delivers a notification. Implementations wrap the push
// fan-out of the surrounding application; delivery is fire-and-forget
// from the engine's point of view.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the log. It stands in for the
// real push fan-out in development and tests.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs every message
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info("Notification",
		zap.String("tenant_id", msg.TenantID),
		zap.String("instance_id", msg.InstanceID),
		zap.String("category", msg.Category),
		zap.Int("target_tier", msg.TargetTier),
		zap.String("target_user", msg.TargetUser),
		zap.String("summary", msg.Summary))
	return nil
}
