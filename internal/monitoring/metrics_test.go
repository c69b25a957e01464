package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetricsForTesting()

	m.ScenesAccepted.Inc()
	m.ScenesAccepted.Inc()
	m.ScenesSkipped.WithLabelValues("invalid_fraction").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScenesAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScenesSkipped.WithLabelValues("invalid_fraction")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ScenesSkipped.WithLabelValues("outside_range")))
}

func TestMetrics_GaugeLifecycle(t *testing.T) {
	m := NewMetricsForTesting()

	m.PipelineActive.Set(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineActive))
	m.PipelineActive.Set(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PipelineActive))
}
