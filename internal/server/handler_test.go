package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/conversation"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/intake"
	"github.com/joseph-ayodele/guard-registry/internal/metrics"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
)

type stubIntake struct {
	media    []intake.MediaMessage
	texts    []string
	mediaErr error
	textErr  error
	deadline bool
}

func (s *stubIntake) HandleMedia(ctx context.Context, msg intake.MediaMessage) (identity.Record, error) {
	_, s.deadline = ctx.Deadline()
	s.media = append(s.media, msg)
	return identity.Record{}, s.mediaErr
}

func (s *stubIntake) HandleText(_ context.Context, from, body string) (conversation.Outcome, error) {
	s.texts = append(s.texts, from+"|"+body)
	return conversation.Outcome{}, s.textErr
}

type stubRecords struct {
	recs    []repository.StoredRecord
	listErr error
	pingErr error
}

func (s *stubRecords) List(context.Context) ([]repository.StoredRecord, error) {
	return s.recs, s.listErr
}

func (s *stubRecords) Ping(context.Context) error { return s.pingErr }

type stubExporter struct {
	from, to *time.Time
}

func (s *stubExporter) ExportRecordsXLSX(_ context.Context, from, to *time.Time) ([]byte, error) {
	s.from, s.to = from, to
	return []byte("xlsx"), nil
}

type fixture struct {
	intake   *stubIntake
	records  *stubRecords
	exporter *stubExporter
	router   http.Handler
}

func newFixture() *fixture {
	f := &fixture{intake: &stubIntake{}, records: &stubRecords{}, exporter: &stubExporter{}}
	h := NewHandler(f.intake, f.records, f.exporter, time.Minute, nil)
	f.router = NewRouter(h, nil)
	return f
}

func (f *fixture) post(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/incoming", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRootGreeting(t *testing.T) {
	rec := newFixture().get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, constants.Greeting, rec.Body.String())
}

func TestIncoming(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		mediaErr   error
		textErr    error
		wantStatus int
		wantBody   string
		wantCode   string
		wantMedia  int
		wantTexts  int
	}{
		{
			name: "media is processed",
			form: url.Values{
				"From": {"whatsapp:+56911111111"}, "NumMedia": {"1"},
				"MediaUrl0": {"https://api.twilio.com/m/1"}, "MediaContentType0": {"image/jpeg"},
			},
			wantStatus: http.StatusOK,
			wantBody:   constants.StatusProcessed,
			wantMedia:  1,
		},
		{
			name:       "text is replied",
			form:       url.Values{"From": {"whatsapp:+56911111111"}, "NumMedia": {"0"}, "Body": {"Sí"}},
			wantStatus: http.StatusOK,
			wantBody:   constants.StatusReplied,
			wantTexts:  1,
		},
		{
			name:       "missing NumMedia is treated as text",
			form:       url.Values{"From": {"whatsapp:+1"}, "Body": {"hola"}},
			wantStatus: http.StatusOK,
			wantBody:   constants.StatusReplied,
			wantTexts:  1,
		},
		{
			name:       "missing sender is rejected",
			form:       url.Values{"Body": {"hola"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   constants.StatusFailed,
			wantCode:   common.CodeInvalidInput,
		},
		{
			name:       "media without url is rejected",
			form:       url.Values{"From": {"whatsapp:+1"}, "NumMedia": {"1"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   constants.StatusFailed,
			wantCode:   common.CodeInvalidInput,
		},
		{
			name: "pipeline failure surfaces the error code",
			form: url.Values{
				"From": {"whatsapp:+1"}, "NumMedia": {"1"}, "MediaUrl0": {"https://x.test/m"},
			},
			mediaErr:   common.NewOCRError("tesseract failed", errors.New("exit 1")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   constants.StatusFailed,
			wantCode:   common.CodeOCR,
			wantMedia:  1,
		},
		{
			name:       "store failure on confirm",
			form:       url.Values{"From": {"whatsapp:+1"}, "Body": {"si"}},
			textErr:    common.NewStoreError("append", errors.New("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   constants.StatusFailed,
			wantCode:   common.CodeStore,
			wantTexts:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.intake.mediaErr = tt.mediaErr
			f.intake.textErr = tt.textErr

			rec := f.post(tt.form)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, tt.wantCode, rec.Header().Get(ErrorCodeHeader))
			assert.Len(t, f.intake.media, tt.wantMedia)
			assert.Len(t, f.intake.texts, tt.wantTexts)
		})
	}
}

func TestIncomingPassesMediaFields(t *testing.T) {
	f := newFixture()
	f.post(url.Values{
		"From": {"whatsapp:+56922222222"}, "NumMedia": {"2"},
		"MediaUrl0": {"https://x.test/a"}, "MediaContentType0": {"application/pdf"},
		"MediaUrl1": {"https://x.test/b"},
	})
	require.Len(t, f.intake.media, 1)
	assert.Equal(t, intake.MediaMessage{
		From: "whatsapp:+56922222222", URL: "https://x.test/a", ContentType: "application/pdf",
	}, f.intake.media[0])
	assert.True(t, f.intake.deadline, "pipeline must run under a deadline")
}

func TestListRecords(t *testing.T) {
	f := newFixture()
	rec := f.get("/records")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	stored := repository.NewStoredRecord(identity.Record{NationalID: identity.Matched("12.345.678-5")},
		"whatsapp:+1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	f.records.recs = []repository.StoredRecord{stored}
	rec = f.get("/records")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "12.345.678-5", got[0]["national_id"])
	assert.Nil(t, got[0]["name"])

	f.records.listErr = common.NewStoreError("read", errors.New("boom"))
	rec = f.get("/records")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, common.CodeStore, rec.Header().Get(ErrorCodeHeader))
}

func TestExportWindowParsing(t *testing.T) {
	f := newFixture()
	rec := f.get("/records/export.xlsx?from=2024-03-01&to=2024-03-31")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "guardias.xlsx")
	require.NotNil(t, f.exporter.from)
	require.NotNil(t, f.exporter.to)
	assert.Equal(t, "2024-03-01", f.exporter.from.Format("2006-01-02"))
	assert.Equal(t, "2024-03-31", f.exporter.to.Format("2006-01-02"))

	rec = f.get("/records/export.xlsx?from=03/01/2024")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, common.CodeInvalidInput, rec.Header().Get(ErrorCodeHeader))
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusOK, f.get("/healthz").Code)

	f.records.pingErr = common.NewStoreError("ping", errors.New("down"))
	rec := f.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, common.CodeStore, rec.Header().Get(ErrorCodeHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncrementAppended()

	f := newFixture()
	router := NewRouter(NewHandler(f.intake, f.records, f.exporter, time.Minute, nil), reg)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "guardbot_records_appended_total")
}

func TestNoMetricsRouteWithoutGatherer(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, newFixture().get("/metrics").Code)
}
