package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/conversation"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/messaging"
	"github.com/joseph-ayodele/guard-registry/internal/metrics"
	"github.com/joseph-ayodele/guard-registry/internal/pipeline"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
	"github.com/joseph-ayodele/guard-registry/internal/session"
)

const defaultReplyTimeout = 10 * time.Second

type MediaProcessor interface {
	ProcessURL(ctx context.Context, url string) (pipeline.Result, error)
}

// MediaMessage is an inbound attachment.
type MediaMessage struct {
	From        string
	URL         string
	ContentType string // as reported by the provider; informational only
}

// Service runs one webhook turn: either a media submission or a text reply.
type Service struct {
	processor    MediaProcessor
	engine       *conversation.Engine
	sessions     session.Store
	store        repository.RecordStore
	sender       messaging.Sender
	metrics      *metrics.Metrics
	now          func() time.Time
	replyTimeout time.Duration
	logger       *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithReplyTimeout(d time.Duration) Option {
	return func(s *Service) { s.replyTimeout = d }
}

func New(processor MediaProcessor, sessions session.Store, store repository.RecordStore, sender messaging.Sender, opts ...Option) (*Service, error) {
	if processor == nil {
		return nil, errors.New("media processor is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if sender == nil {
		return nil, errors.New("message sender is required")
	}
	s := &Service{
		processor:    processor,
		sessions:     sessions,
		store:        store,
		sender:       sender,
		now:          time.Now,
		replyTimeout: defaultReplyTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.replyTimeout <= 0 {
		s.replyTimeout = defaultReplyTimeout
	}
	s.engine = conversation.NewEngine(store, s.logger)
	return s, nil
}

// HandleMedia runs the pipeline on the attachment, stores the result as the sender's
// pending record and asks for confirmation. On pipeline failure a best-effort
// apology is sent and the typed error is returned.
func (s *Service) HandleMedia(ctx context.Context, msg MediaMessage) (identity.Record, error) {
	ctx = common.WithSender(ctx, msg.From)
	logger := common.LoggerFrom(ctx, s.logger)
	logger.Info("intake.media.received", "content_type", msg.ContentType)

	res, err := s.processor.ProcessURL(ctx, msg.URL)
	if err != nil {
		s.reply(ctx, msg.From, constants.ReplyProcessingFailed)
		return identity.Record{}, err
	}

	if err := s.sessions.Put(ctx, msg.From, res.Record); err != nil {
		logger.Error("intake.media.pending_save_failed", "error", err)
		return res.Record, err
	}

	s.reply(ctx, msg.From, conversation.ConfirmationPrompt(res.Record))
	return res.Record, nil
}

// HandleText answers a free-text reply and applies its side effects.
func (s *Service) HandleText(ctx context.Context, from, body string) (conversation.Outcome, error) {
	ctx = common.WithSender(ctx, from)
	logger := common.LoggerFrom(ctx, s.logger)

	turn := conversation.NewTurn(from, body)
	pendingRec, ok, err := s.sessions.Get(ctx, from)
	if err != nil {
		logger.Error("intake.text.pending_load_failed", "error", err)
		return conversation.Outcome{}, err
	}
	var pending *identity.Record
	if ok {
		pending = &pendingRec
	}

	out, err := s.engine.Respond(ctx, turn, pending)
	s.metrics.IncrementIntent(out.Intent)
	if err != nil {
		return out, err
	}

	switch {
	case out.Persist != nil:
		out, err = s.confirm(ctx, from, out)
		if err != nil {
			return out, err
		}
	case out.ClearPending:
		if err := s.sessions.Delete(ctx, from); err != nil {
			logger.Error("intake.text.pending_clear_failed", "error", err)
			return out, err
		}
	}

	logger.Info("intake.text.handled", "intent", out.Intent, "had_pending", pending != nil)
	s.reply(ctx, from, out.Reply)
	return out, nil
}

// confirm takes the pending record atomically, so two concurrent "sí" replies append once.
func (s *Service) confirm(ctx context.Context, from string, out conversation.Outcome) (conversation.Outcome, error) {
	logger := common.LoggerFrom(ctx, s.logger)

	rec, err := s.sessions.Take(ctx, from)
	if errors.Is(err, session.ErrNoPending) {
		return conversation.Outcome{Intent: out.Intent, Reply: constants.ReplyNothingToConfirm}, nil
	}
	if err != nil {
		return out, err
	}

	stored := repository.NewStoredRecord(rec, from, s.now())
	if err := s.store.Append(ctx, stored); err != nil {
		logger.Error("intake.confirm.append_failed", "error", err)
		// give the submitter another chance to confirm
		if perr := s.sessions.Put(ctx, from, rec); perr != nil {
			logger.Error("intake.confirm.pending_restore_failed", "error", perr)
		}
		return out, err
	}
	s.metrics.IncrementAppended()
	logger.Info("intake.confirm.appended", "record_id", stored.ID)
	out.Persist = &rec
	return out, nil
}

// reply is best effort: delivery failures are logged and counted, never surfaced to the webhook.
// It runs detached from ctx cancellation, bounded by its own timeout.
func (s *Service) reply(ctx context.Context, to, body string) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.replyTimeout)
	defer cancel()
	if err := s.sender.Send(sendCtx, to, body); err != nil {
		s.metrics.IncrementOutboundFailure()
		common.LoggerFrom(ctx, s.logger).Error("intake.reply.failed", "error", err)
	}
}
