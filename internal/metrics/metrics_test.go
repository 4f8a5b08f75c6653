package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/guard-registry/constants"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementRun(constants.IMAGE, "OK")
	m.IncrementRun(constants.IMAGE, "OK")
	m.IncrementRun(constants.PDF, "CONVERSION_ERROR")
	m.IncrementIntent(constants.IntentConfirm)
	m.IncrementAppended()
	m.IncrementOutboundFailure()
	m.IncrementField("national_id")
	m.ObserveStage("ocr", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues("IMAGE", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues("PDF", "CONVERSION_ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Intents.WithLabelValues("CONFIRM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsAppended))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PipelineDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRun(constants.IMAGE, "OK")
		m.ObserveStage("fetch", time.Now())
		m.IncrementAppended()
	})
}
