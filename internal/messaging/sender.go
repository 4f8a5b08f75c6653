package messaging

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/guard-registry/internal/common"
)

// Sender delivers a text reply to a messaging address (e.g. "whatsapp:+569...").
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// LogSender only logs outbound messages. Used when no provider credentials are configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, body string) error {
	common.LoggerFrom(ctx, s.logger).Info("outbound message (not sent)", "to", to, "body", body)
	return nil
}

// New picks the Twilio sender when credentials are complete, the log sender otherwise.
func New(cfg common.MessagingConfig, logger *slog.Logger) Sender {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled() {
		logger.Warn("twilio credentials missing; outbound messages will only be logged")
		return NewLogSender(logger)
	}
	return NewTwilioSender(cfg, logger)
}
