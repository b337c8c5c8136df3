package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Encode pipeline metrics
	EncodeBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redshield_encode_bytes_total",
			Help: "Total bytes protected by the encode pipeline across all ranks",
		},
	)

	EncodeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redshield_encode_duration_seconds",
			Help:    "Wall-clock duration of encode operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	EncodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redshield_encodes_total",
			Help: "Total encode operations by result",
		},
		[]string{"result"},
	)

	// Decode pipeline metrics
	RebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redshield_rebuilds_total",
			Help: "Total rebuild operations by result",
		},
		[]string{"result"},
	)

	RemovesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redshield_removes_total",
			Help: "Total remove operations by result",
		},
		[]string{"result"},
	)

	// Descriptor metrics
	DescriptorsEnabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "redshield_descriptors_enabled",
			Help: "Number of enabled redundancy descriptors in the table",
		},
	)

	// Flush engine metrics
	FlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redshield_flushes_total",
			Help: "Total async flush operations by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(EncodeBytesTotal)
	prometheus.MustRegister(EncodeDuration)
	prometheus.MustRegister(EncodesTotal)
	prometheus.MustRegister(RebuildsTotal)
	prometheus.MustRegister(RemovesTotal)
	prometheus.MustRegister(DescriptorsEnabled)
	prometheus.MustRegister(FlushesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures a duration and records it into a histogram
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into the histogram and
// returns the elapsed seconds.
func (t *Timer) ObserveDuration(h prometheus.Histogram) float64 {
	elapsed := time.Since(t.start).Seconds()
	h.Observe(elapsed)
	return elapsed
}
