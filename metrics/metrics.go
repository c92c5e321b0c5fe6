// Package metrics exposes Prometheus counters for the recording
// pipeline: poll cycles, processed runs, extraction methods and
// created tickets.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the pipeline metrics. Each collector carries its own
// registry so repeated construction in tests does not collide.
type Collector struct {
	registry *prometheus.Registry

	pollCycles    prometheus.Counter
	pollSkipped   prometheus.Counter
	runsProcessed prometheus.Counter
	runsFailed    prometheus.Counter
	tasksByMethod *prometheus.CounterVec
	ticketsMade   prometheus.Counter
	runsInFlight  prometheus.Gauge
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		pollCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetingflow_poll_cycles_total",
			Help: "Total number of recording directory poll cycles run",
		}),
		pollSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetingflow_poll_cycles_skipped_total",
			Help: "Poll cycles skipped because the previous cycle was still running",
		}),
		runsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetingflow_runs_processed_total",
			Help: "Total number of recordings processed to completion",
		}),
		runsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetingflow_runs_failed_total",
			Help: "Total number of recordings whose pipeline ended with an error",
		}),
		tasksByMethod: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetingflow_tasks_extracted_total",
			Help: "Total number of action items extracted, by extraction method",
		}, []string{"method"}),
		ticketsMade: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetingflow_tickets_created_total",
			Help: "Total number of tracker tickets created from action items",
		}),
		runsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "meetingflow_runs_in_flight",
			Help: "Number of recordings currently being processed",
		}),
	}
}

func (c *Collector) RecordPollCycle()   { c.pollCycles.Inc() }
func (c *Collector) RecordPollSkipped() { c.pollSkipped.Inc() }

func (c *Collector) RecordRunStarted()  { c.runsInFlight.Inc() }
func (c *Collector) RecordRunFinished(failed bool) {
	c.runsInFlight.Dec()
	if failed {
		c.runsFailed.Inc()
	} else {
		c.runsProcessed.Inc()
	}
}

func (c *Collector) RecordTasksExtracted(method string, count int) {
	c.tasksByMethod.WithLabelValues(method).Add(float64(count))
}

func (c *Collector) RecordTicketCreated() { c.ticketsMade.Inc() }

// Handler serves this collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
