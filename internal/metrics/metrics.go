package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joseph-ayodele/guard-registry/constants"
)

// Metrics provides observability for the intake pipeline and conversation.
type Metrics struct {
	PipelineRuns     *prometheus.CounterVec   // by media kind and outcome error code ("OK" on success)
	PipelineDuration *prometheus.HistogramVec // by stage
	FieldsMatched    *prometheus.CounterVec   // by field
	Intents          *prometheus.CounterVec
	RecordsAppended  prometheus.Counter
	OutboundFailures prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PipelineRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guardbot_pipeline_runs_total",
			Help: "Media pipeline executions by media kind and result code",
		}, []string{"kind", "code"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardbot_pipeline_stage_duration_seconds",
			Help:    "Duration of each media pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		FieldsMatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guardbot_fields_matched_total",
			Help: "Identity fields recognized in OCR text",
		}, []string{"field"}),
		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guardbot_conversation_intents_total",
			Help: "Classified text replies",
		}, []string{"intent"}),
		RecordsAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "guardbot_records_appended_total",
			Help: "Confirmed records persisted",
		}),
		OutboundFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "guardbot_outbound_failures_total",
			Help: "Outbound messages that could not be delivered",
		}),
	}
}

// ObserveStage records the duration of a pipeline stage.
// Call with time.Now() at the start of the stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRun(kind constants.MediaKind, code string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(string(kind), code).Inc()
}

func (m *Metrics) IncrementField(field string) {
	if m == nil {
		return
	}
	m.FieldsMatched.WithLabelValues(field).Inc()
}

func (m *Metrics) IncrementIntent(intent constants.Intent) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(string(intent)).Inc()
}

func (m *Metrics) IncrementAppended() {
	if m == nil {
		return
	}
	m.RecordsAppended.Inc()
}

func (m *Metrics) IncrementOutboundFailure() {
	if m == nil {
		return
	}
	m.OutboundFailures.Inc()
}
