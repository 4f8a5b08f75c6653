package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/messaging/mocks"
	"github.com/joseph-ayodele/guard-registry/internal/metrics"
	"github.com/joseph-ayodele/guard-registry/internal/pipeline"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
	"github.com/joseph-ayodele/guard-registry/internal/session"
)

const sender = "whatsapp:+56911111111"

type stubProcessor struct {
	rec       identity.Record
	err       error
	untilDone bool
}

func (p *stubProcessor) ProcessURL(ctx context.Context, _ string) (pipeline.Result, error) {
	if p.untilDone {
		<-ctx.Done()
		return pipeline.Result{}, common.NewTransportError("download media", ctx.Err())
	}
	return pipeline.Result{Record: p.rec}, p.err
}

type IntakeSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	sender    *mocks.MockSender
	processor *stubProcessor
	sessions  *session.Memory
	store     *repository.JSONStore
	service   *Service
	ctx       context.Context
}

func TestIntakeSuite(t *testing.T) {
	suite.Run(t, new(IntakeSuite))
}

func (s *IntakeSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.sender = mocks.NewMockSender(s.ctrl)
	s.processor = &stubProcessor{rec: identity.Record{NationalID: identity.Matched("12.345.678-5")}}
	s.sessions = session.NewMemory(time.Minute)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := repository.NewJSONStore(filepath.Join(s.T().TempDir(), "guardias.json"), logger)
	s.Require().NoError(err)
	s.store = store

	s.service, err = New(s.processor, s.sessions, s.store, s.sender,
		WithLogger(logger),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }),
	)
	s.Require().NoError(err)
}

func (s *IntakeSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *IntakeSuite) expectReply(body string) {
	s.sender.EXPECT().Send(gomock.Any(), sender, body).Return(nil)
}

func (s *IntakeSuite) submitMedia() {
	s.sender.EXPECT().Send(gomock.Any(), sender, gomock.Any()).Return(nil)
	_, err := s.service.HandleMedia(s.ctx, MediaMessage{From: sender, URL: "https://media.example/1"})
	s.Require().NoError(err)
}

func (s *IntakeSuite) records() []repository.StoredRecord {
	recs, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	return recs
}

func (s *IntakeSuite) TestNew() {
	s.Run("missing dependencies are rejected", func() {
		_, err := New(nil, s.sessions, s.store, s.sender)
		s.Error(err)
		_, err = New(s.processor, nil, s.store, s.sender)
		s.Error(err)
		_, err = New(s.processor, s.sessions, nil, s.sender)
		s.Error(err)
		_, err = New(s.processor, s.sessions, s.store, nil)
		s.Error(err)
	})
}

func (s *IntakeSuite) TestMediaSendsConfirmationPrompt() {
	s.expectReply("Nombre: N/A\nApellidos: N/A\nRUT: 12.345.678-5\n\n¿Es correcto? (Sí/No)")

	rec, err := s.service.HandleMedia(s.ctx, MediaMessage{From: sender, URL: "https://media.example/1"})
	s.Require().NoError(err)
	s.Equal("12.345.678-5", rec.NationalID.Or(""))

	pending, ok, err := s.sessions.Get(s.ctx, sender)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(rec, pending)
}

func (s *IntakeSuite) TestEmptyOCRStillAsksForConfirmation() {
	s.processor.rec = identity.Record{}
	s.expectReply("Nombre: N/A\nApellidos: N/A\nRUT: N/A\n\n¿Es correcto? (Sí/No)")

	rec, err := s.service.HandleMedia(s.ctx, MediaMessage{From: sender, URL: "https://media.example/1"})
	s.Require().NoError(err)
	s.True(rec.Empty())
}

func (s *IntakeSuite) TestConfirmAppendsOnce() {
	s.submitMedia()
	s.expectReply(constants.ReplyConfirmed)

	out, err := s.service.HandleText(s.ctx, sender, "Si")
	s.Require().NoError(err)
	s.Equal(constants.IntentConfirm, out.Intent)
	s.Require().NotNil(out.Persist)

	recs := s.records()
	s.Require().Len(recs, 1)
	s.Equal("12.345.678-5", recs[0].NationalID.Or(""))
	s.Equal(sender, recs[0].Sender)

	// the pending record is gone: a second "sí" persists nothing
	s.expectReply(constants.ReplyNothingToConfirm)
	_, err = s.service.HandleText(s.ctx, sender, "sí")
	s.Require().NoError(err)
	s.Len(s.records(), 1)
}

func (s *IntakeSuite) TestRejectDoesNotAppend() {
	s.submitMedia()
	s.expectReply(constants.ReplyCorrection)

	out, err := s.service.HandleText(s.ctx, sender, "no")
	s.Require().NoError(err)
	s.Equal(constants.IntentReject, out.Intent)
	s.Empty(s.records())

	_, ok, err := s.sessions.Get(s.ctx, sender)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *IntakeSuite) TestUnknownKeepsPending() {
	s.submitMedia()
	s.expectReply(constants.ReplyUnknownCommand)

	_, err := s.service.HandleText(s.ctx, sender, "hola")
	s.Require().NoError(err)

	_, ok, err := s.sessions.Get(s.ctx, sender)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *IntakeSuite) TestListReflectsStore() {
	s.expectReply(constants.ReplyListEmpty)
	_, err := s.service.HandleText(s.ctx, sender, "cuantos registrados hay")
	s.Require().NoError(err)

	s.submitMedia()
	s.expectReply(constants.ReplyConfirmed)
	_, err = s.service.HandleText(s.ctx, sender, "Sí")
	s.Require().NoError(err)

	var got string
	s.sender.EXPECT().Send(gomock.Any(), sender, gomock.Any()).
		DoAndReturn(func(_ context.Context, _, body string) error {
			got = body
			return nil
		})
	_, err = s.service.HandleText(s.ctx, sender, "cuantos registrados hay")
	s.Require().NoError(err)
	s.True(strings.HasPrefix(got, constants.ReplyListHeader))
	s.Contains(got, "12.345.678-5")
}

func (s *IntakeSuite) TestPipelineFailureSendsApology() {
	s.processor.err = common.NewTransportError("status 404", nil)
	s.expectReply(constants.ReplyProcessingFailed)

	_, err := s.service.HandleMedia(s.ctx, MediaMessage{From: sender, URL: "https://media.example/gone"})
	s.Require().Error(err)
	s.ErrorIs(err, common.ErrTransport)

	_, ok, _ := s.sessions.Get(s.ctx, sender)
	s.False(ok)
}

func (s *IntakeSuite) TestOutboundFailureIsNotFatal() {
	s.sender.EXPECT().Send(gomock.Any(), sender, gomock.Any()).Return(errors.New("twilio down"))

	_, err := s.service.HandleMedia(s.ctx, MediaMessage{From: sender, URL: "https://media.example/1"})
	s.NoError(err)
}

func (s *IntakeSuite) TestApologySurvivesPipelineDeadline() {
	s.processor.untilDone = true
	var sent []string
	s.sender.EXPECT().Send(gomock.Any(), sender, gomock.Any()).DoAndReturn(
		func(ctx context.Context, _, body string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sent = append(sent, body)
			return nil
		})

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Millisecond)
	defer cancel()
	_, err := s.service.HandleMedia(ctx, MediaMessage{From: sender, URL: "https://media.example/slow"})

	s.Require().ErrorIs(err, common.ErrTransport)
	s.Equal([]string{constants.ReplyProcessingFailed}, sent)
}
