package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensor_monitor"

// Metrics holds the Prometheus counters, histograms, and gauges for the monitor.
type Metrics struct {
	ReadingsReceived   prometheus.Counter
	ReadingsClassified *prometheus.CounterVec // labels: band
	IngestErrors       *prometheus.CounterVec // labels: reason={invalid_payload,unknown_topic}

	// Sink delivery metrics.
	EventsDelivered   *prometheus.CounterVec   // labels: sink
	EventsDropped     *prometheus.CounterVec   // labels: sink
	SinkFailures      *prometheus.CounterVec   // labels: sink
	SinkWriteDuration *prometheus.HistogramVec // labels: sink

	// Registry metrics.
	RegistrySensors prometheus.Gauge
	RegistryReloads *prometheus.CounterVec // labels: outcome={success,error}

	MQTTConnected prometheus.Gauge
}

// NewMetrics creates and registers all monitor metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_received_total",
			Help:      "Total raw readings handed to the ingestor.",
		}),
		ReadingsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_classified_total",
			Help:      "Readings classified, by band.",
		}, []string{"band"}),
		IngestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Readings rejected by the ingestor, by reason.",
		}, []string{"reason"}),
		EventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Classification events written to a sink.",
		}, []string{"sink"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Classification events dropped because a sink queue was full or closed.",
		}, []string{"sink"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Classification events abandoned after exhausting retries.",
		}, []string{"sink"}),
		SinkWriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_write_duration_seconds",
			Help:      "Duration of a single sink write attempt.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"sink"}),
		RegistrySensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_sensors",
			Help:      "Number of sensor topics in the active registry.",
		}),
		RegistryReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_reloads_total",
			Help:      "Registry reload attempts by outcome.",
		}, []string{"outcome"}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT client holds a broker connection, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReadingsReceived,
		m.ReadingsClassified,
		m.IngestErrors,
		m.EventsDelivered,
		m.EventsDropped,
		m.SinkFailures,
		m.SinkWriteDuration,
		m.RegistrySensors,
		m.RegistryReloads,
		m.MQTTConnected,
	}
}
