package measure_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-filter-sequence/pkg/pipeline/measure"
)

func TestDefaultMetric(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()
	mt := m.AddMetric("step", 2)
	assert.Same(t, mt, m.AddMetric("step", 5))

	mt.AddDuration(2 * time.Millisecond)
	mt.AddDuration(4 * time.Millisecond)
	mt.AddTransportDuration("root", 8*time.Millisecond)
	mt.AddTransportDuration("root", 4*time.Millisecond)

	assert.Equal(t, int64(2), mt.Entries())
	assert.Equal(t, 3*time.Millisecond, mt.AVGDuration())
	assert.Equal(t, 3*time.Millisecond, mt.AVGTransportDuration()["root"].Elapsed)
	assert.Equal(t, 12*time.Millisecond, mt.AllTransports()["root"].Elapsed)
	assert.Nil(t, m.GetMetric("unknown"))
	assert.Len(t, m.AllMetrics(), 1)
}

func TestCollector(t *testing.T) {
	t.Parallel()

	m := measure.NewDefaultMeasure()
	step := m.AddMetric("step", 1)
	step.AddDuration(2 * time.Second)
	sink := m.AddMetric("sink", 1)
	sink.AddDuration(time.Second)
	sink.SetTotalDuration(3 * time.Second)

	expected := `
# HELP pipeline_step_entries_total Entries pushed by a pipeline step.
# TYPE pipeline_step_entries_total counter
pipeline_step_entries_total{step="sink"} 1
pipeline_step_entries_total{step="step"} 1
# HELP pipeline_step_total_duration_seconds Time between the start of the pipeline and the end of a sink.
# TYPE pipeline_step_total_duration_seconds gauge
pipeline_step_total_duration_seconds{step="sink"} 3
`
	err := testutil.CollectAndCompare(measure.NewCollector(m), strings.NewReader(expected),
		"pipeline_step_entries_total", "pipeline_step_total_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 5, testutil.CollectAndCount(measure.NewCollector(m)))
}
