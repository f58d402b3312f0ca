// Package metrics exposes the tracker's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
)

// Collector groups every collector of the process. All methods are safe on a
// nil receiver so components can run without metrics.
type Collector struct {
	registry *prometheus.Registry

	accrualTicks   *prometheus.CounterVec
	xpIncrements   prometheus.Counter
	levelUps       prometheus.Counter
	records        prometheus.Gauge
	flushDuration  *prometheus.HistogramVec
	backups        *prometheus.CounterVec
	eventsHandled  *prometheus.CounterVec
	announceErrors prometheus.Counter
	commands       *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewCollector registers the collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		accrualTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicexp_accrual_ticks_total",
			Help: "Accrual ticks by outcome.",
		}, []string{"outcome"}),
		xpIncrements: f.NewCounter(prometheus.CounterOpts{
			Name: "voicexp_xp_increments_total",
			Help: "XP points granted.",
		}),
		levelUps: f.NewCounter(prometheus.CounterOpts{
			Name: "voicexp_level_ups_total",
			Help: "Level-up events emitted.",
		}),
		records: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicexp_records",
			Help: "Members holding a record.",
		}),
		flushDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicexp_flush_duration_seconds",
			Help:    "Duration of record flushes to the durable store.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		backups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicexp_backups_total",
			Help: "Backups shipped by sink and outcome.",
		}, []string{"sink", "outcome"}),
		eventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicexp_events_handled_total",
			Help: "Event handler executions by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		announceErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "voicexp_announce_failures_total",
			Help: "Level-up announcements that could not be delivered.",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicexp_commands_total",
			Help: "Slash commands served by command and outcome.",
		}, []string{"command", "outcome"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicexp_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveTick records one accrual tick.
func (c *Collector) ObserveTick(outcome string, increments, levelUps, records int) {
	if c == nil {
		return
	}
	c.accrualTicks.WithLabelValues(outcome).Inc()
	c.xpIncrements.Add(float64(increments))
	c.levelUps.Add(float64(levelUps))
	c.records.Set(float64(records))
}

// ObserveFlush records one flush.
func (c *Collector) ObserveFlush(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.flushDuration.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// ObserveBackup records one backup shipment.
func (c *Collector) ObserveBackup(sink string, err error) {
	if c == nil {
		return
	}
	c.backups.WithLabelValues(sink, outcome(err)).Inc()
}

// ObserveEvent records one event handler execution.
func (c *Collector) ObserveEvent(eventType string, err error) {
	if c == nil {
		return
	}
	c.eventsHandled.WithLabelValues(eventType, outcome(err)).Inc()
}

// ObserveAnnounceFailure records an undelivered announcement.
func (c *Collector) ObserveAnnounceFailure() {
	if c == nil {
		return
	}
	c.announceErrors.Inc()
}

// ObserveCommand records one slash command.
func (c *Collector) ObserveCommand(command string, err error) {
	if c == nil {
		return
	}
	c.commands.WithLabelValues(command, outcome(err)).Inc()
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
