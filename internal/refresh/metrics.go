package refresh

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for refresh attempts.
type Observer interface {
	RecordRefresh(duration time.Duration, kind Kind, strategy string, records int)
}

// PrometheusObserver exports refresh metrics to Prometheus.
type PrometheusObserver struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	records  prometheus.Gauge
}

// NewPrometheusObserver registers the refresh metrics with reg
// (the default registerer when nil).
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "vfeed"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Latency of refresh attempts, including the upstream fetch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh attempts by outcome and winning extraction strategy.",
		}, []string{"outcome", "strategy"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_records",
			Help:      "Number of records in the current snapshot.",
		}),
	}
	collectors := []prometheus.Collector{observer.duration, observer.outcomes, observer.records}
	for i, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, fmt.Errorf("register refresh metric: %w", err)
			}
			switch i {
			case 0:
				observer.duration = are.ExistingCollector.(*prometheus.HistogramVec)
			case 1:
				observer.outcomes = are.ExistingCollector.(*prometheus.CounterVec)
			case 2:
				observer.records = are.ExistingCollector.(prometheus.Gauge)
			}
		}
	}
	return observer, nil
}

func (o *PrometheusObserver) RecordRefresh(duration time.Duration, kind Kind, strategy string, records int) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(string(kind)).Observe(duration.Seconds())
	o.outcomes.WithLabelValues(string(kind), strategy).Inc()
	o.records.Set(float64(records))
}

type nopObserver struct{}

func (nopObserver) RecordRefresh(time.Duration, Kind, string, int) {}
