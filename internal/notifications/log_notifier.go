package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes emails to the log instead of sending them. Used in dev.
type LogNotifier struct {
	log   *slog.Logger
	links Links
}

func NewLogNotifier(log *slog.Logger, links Links) *LogNotifier {
	return &LogNotifier{log: log, links: links}
}

func (n *LogNotifier) SendAccountConfirmation(ctx context.Context, input AccountEmail) error {
	n.log.InfoContext(ctx, "notification.account_confirmation",
		"email", input.Email, "name", input.Name, "link", n.links.Confirm(input.Token))
	return nil
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, input AccountEmail) error {
	n.log.InfoContext(ctx, "notification.password_reset",
		"email", input.Email, "name", input.Name, "link", n.links.ResetPassword(input.Token))
	return nil
}
