package service

import (
	"context"
	"log/slog"
)

// EmailSender delivers transactional mail. Delivery itself is an external
// collaborator; this service only needs the contract.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes outbound mail to the log instead of sending it. Used in
// development and tests.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "outbound email", "to", to, "subject", subject, "body", body)
	return nil
}
