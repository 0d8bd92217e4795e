package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Runs *prometheus.CounterVec // result label: success|failure

	EventsRead     prometheus.Counter
	EventsDropped  *prometheus.CounterVec // reason label: marker|duplicate|outside_boundary|repair
	TripsAssembled prometheus.Counter

	ValidationFailures *prometheus.CounterVec // stage label: preprocess|transform

	StageDuration *prometheus.HistogramVec // stage label

	SinkWrites   *prometheus.CounterVec // sink label
	SinkErrors   *prometheus.CounterVec // sink label
	SinkDuration *prometheus.HistogramVec

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	GeoWorkers prometheus.Gauge
}

func NewCollector(geoWorkers int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripprep_runs_total",
			Help: "Pipeline runs by result.",
		}, []string{"result"}),
		EventsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripprep_events_read_total",
			Help: "Raw scan events read from input.",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripprep_events_dropped_total",
			Help: "Events removed during cleaning, by reason.",
		}, []string{"reason"}),
		TripsAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripprep_trips_assembled_total",
			Help: "Trips produced by pairing start and end events.",
		}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripprep_validation_failures_total",
			Help: "Structural validation failures, by stage.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripprep_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"stage"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripprep_sink_trips_written_total",
			Help: "Trips delivered to a sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripprep_sink_errors_total",
			Help: "Failed sink deliveries.",
		}, []string{"sink"}),
		SinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripprep_sink_duration_seconds",
			Help:    "Duration of a sink delivery.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"sink"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripprep_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripprep_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripprep_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripprep_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		GeoWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripprep_geo_workers",
			Help: "Partitions used by the boundary filter.",
		}),
	}

	reg.MustRegister(
		c.Runs,
		c.EventsRead, c.EventsDropped, c.TripsAssembled,
		c.ValidationFailures, c.StageDuration,
		c.SinkWrites, c.SinkErrors, c.SinkDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.GeoWorkers,
	)

	c.GeoWorkers.Set(float64(geoWorkers))

	return c
}

// ObserveStage records how long a pipeline stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
