package notifier

import (
	"context"

	"github.com/rentiva/rentiva-backend/pkg/logger"
)

// Notifier delivers a billing notification to a recipient. Callers treat
// delivery as fire-and-forget; a failed send must never fail the operation
// that triggered it.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier writes notifications to the structured log. Serves dev and
// environments without a Pub/Sub topic.
type LogNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	if n == nil || n.logg == nil {
		return nil
	}
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"recipient": recipient,
		"subject":   subject,
	})
	n.logg.Info(logCtx, "notification emitted")
	return nil
}
