package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/conversation"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/intake"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
)

// ErrorCodeHeader carries the AppError code on failed webhook responses.
const ErrorCodeHeader = "X-Error-Code"

type Intake interface {
	HandleMedia(ctx context.Context, msg intake.MediaMessage) (identity.Record, error)
	HandleText(ctx context.Context, from, body string) (conversation.Outcome, error)
}

type RecordReader interface {
	List(ctx context.Context) ([]repository.StoredRecord, error)
	Ping(ctx context.Context) error
}

type Exporter interface {
	ExportRecordsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
}

// Handler serves the webhook and the read-only record endpoints.
type Handler struct {
	intake          Intake
	records         RecordReader
	exporter        Exporter
	pipelineTimeout time.Duration
	logger          *slog.Logger
}

func NewHandler(in Intake, records RecordReader, exporter Exporter, pipelineTimeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if pipelineTimeout <= 0 {
		pipelineTimeout = 2 * time.Minute
	}
	return &Handler{
		intake:          in,
		records:         records,
		exporter:        exporter,
		pipelineTimeout: pipelineTimeout,
		logger:          logger,
	}
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, constants.Greeting)
}

// handleIncoming is the provider webhook. Twilio posts form fields:
// NumMedia, MediaUrl0, MediaContentType0, From, Body.
func (h *Handler) handleIncoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := common.LoggerFrom(ctx, h.logger)

	if err := r.ParseForm(); err != nil {
		logger.Warn("webhook.bad_form", "error", err)
		h.writeFailure(w, common.NewAppError(common.CodeInvalidInput, "malformed form body", common.ErrInvalidInput))
		return
	}

	from := strings.TrimSpace(r.PostForm.Get("From"))
	numMedia, _ := strconv.Atoi(r.PostForm.Get("NumMedia"))
	mediaURL := strings.TrimSpace(r.PostForm.Get("MediaUrl0"))

	v := common.NewValidator().Field("From", from, common.Required)
	if numMedia > 0 {
		v.Field("MediaUrl0", mediaURL, common.Required, common.HTTPURL)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		logger.Warn("webhook.invalid", "error", err)
		h.writeFailure(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.pipelineTimeout)
	defer cancel()

	if numMedia > 0 {
		_, err := h.intake.HandleMedia(ctx, intake.MediaMessage{
			From:        from,
			URL:         mediaURL,
			ContentType: r.PostForm.Get("MediaContentType0"),
		})
		if err != nil {
			logger.Error("webhook.media.failed", "code", common.CodeOf(err), "error", err)
			h.writeFailure(w, err)
			return
		}
		writeText(w, http.StatusOK, constants.StatusProcessed)
		return
	}

	if _, err := h.intake.HandleText(ctx, from, r.PostForm.Get("Body")); err != nil {
		logger.Error("webhook.text.failed", "code", common.CodeOf(err), "error", err)
		h.writeFailure(w, err)
		return
	}
	writeText(w, http.StatusOK, constants.StatusReplied)
}

// writeFailure answers with a generic body; the code header lets callers tell failures apart.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	code := common.CodeOf(err)
	status := http.StatusInternalServerError
	if code == common.CodeInvalidInput {
		status = http.StatusBadRequest
	}
	w.Header().Set(ErrorCodeHeader, code)
	writeText(w, status, constants.StatusFailed)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
