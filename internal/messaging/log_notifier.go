package messaging

import (
	"context"
	"log/slog"
)

// LogNotifier records that a reset was requested without delivering the token anywhere.
// It is used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyPasswordReset(ctx context.Context, notice ResetNotice) error {
	n.logger.InfoContext(ctx, "password reset issued, no broker configured",
		slog.String("user_id", notice.UserID.String()),
		slog.Time("expires_at", notice.ExpiresAt),
	)
	return nil
}
