package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes messages to a logger instead of sending them. It is
// meant for local development; the body contains the passcode.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "outgoing message", "to", to, "subject", subject, "body", body)
	return nil
}
