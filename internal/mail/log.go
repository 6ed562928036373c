package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. Meant for
// local development only: the body carries live secrets.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail (log driver)", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}
