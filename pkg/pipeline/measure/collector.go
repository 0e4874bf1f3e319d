package measure

import "github.com/prometheus/client_golang/prometheus"

var (
	entriesDesc = prometheus.NewDesc(
		"pipeline_step_entries_total",
		"Entries pushed by a pipeline step.",
		[]string{"step"}, nil,
	)
	avgDurationDesc = prometheus.NewDesc(
		"pipeline_step_avg_duration_seconds",
		"Average time spent computing one entry.",
		[]string{"step"}, nil,
	)
	totalDurationDesc = prometheus.NewDesc(
		"pipeline_step_total_duration_seconds",
		"Time between the start of the pipeline and the end of a sink.",
		[]string{"step"}, nil,
	)
)

type collector struct {
	m Measure
}

// NewCollector exports the metrics of m to prometheus.
func NewCollector(m Measure) prometheus.Collector {
	return &collector{m: m}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- entriesDesc
	ch <- avgDurationDesc
	ch <- totalDurationDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for name, mt := range c.m.AllMetrics() {
		ch <- prometheus.MustNewConstMetric(entriesDesc, prometheus.CounterValue, float64(mt.Entries()), name)
		ch <- prometheus.MustNewConstMetric(avgDurationDesc, prometheus.GaugeValue, mt.AVGDuration().Seconds(), name)
		if total := mt.GetTotalDuration(); total > 0 {
			ch <- prometheus.MustNewConstMetric(totalDurationDesc, prometheus.GaugeValue, total.Seconds(), name)
		}
	}
}
