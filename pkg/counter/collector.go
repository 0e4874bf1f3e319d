package counter

import "github.com/prometheus/client_golang/prometheus"

var valueDesc = prometheus.NewDesc(
	"filter_sequence_counter_value",
	"Current value of a shared sequence counter.",
	[]string{"lookup"}, nil,
)

var createdDesc = prometheus.NewDesc(
	"filter_sequence_counters_created_total",
	"Number of counters constructed by the registry.",
	nil, nil,
)

type collector struct {
	reg *Registry
}

// NewCollector returns a prometheus collector exporting the value of every counter registered in
// reg at scrape time.
func NewCollector(reg *Registry) prometheus.Collector {
	return &collector{reg: reg}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- valueDesc
	ch <- createdDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	// counter locks are taken after the registry lock is released
	for name, cnt := range c.reg.snapshot() {
		ch <- prometheus.MustNewConstMetric(valueDesc, prometheus.GaugeValue, float64(cnt.Value()), name)
	}
	ch <- prometheus.MustNewConstMetric(createdDesc, prometheus.CounterValue, float64(c.reg.Created()))
}
