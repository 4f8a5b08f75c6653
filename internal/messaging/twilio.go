package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/joseph-ayodele/guard-registry/internal/common"
)

// messageCreator is the slice of the Twilio REST API we use.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends WhatsApp messages through the Twilio REST API. No retries.
type TwilioSender struct {
	api    messageCreator
	from   string
	logger *slog.Logger
}

func NewTwilioSender(cfg common.MessagingConfig, logger *slog.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioSender(client.Api, cfg.FromNumber, logger)
}

func newTwilioSender(api messageCreator, from string, logger *slog.Logger) *TwilioSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioSender{api: api, from: from, logger: logger}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	logger := common.LoggerFrom(ctx, s.logger)
	if err := ctx.Err(); err != nil {
		return common.NewMessagingError("context done before send", err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	start := time.Now()
	resp, err := s.api.CreateMessage(params)
	if err != nil {
		logger.Error("twilio.send_error", "to", to, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return common.NewMessagingError("send message", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	logger.Info("twilio.sent", "to", to, "sid", sid, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
