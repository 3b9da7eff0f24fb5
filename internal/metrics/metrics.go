// Package metrics exposes Prometheus counters for logins, provisioning and
// lesson progress.
package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is safe to use as a nil pointer; every method is then a no-op.
type Collector struct {
	logins      *prometheus.CounterVec
	provisioned *prometheus.CounterVec
	completions *prometheus.CounterVec
	storeOps    *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "course_logins_total",
			Help: "Google callback outcomes.",
		}, []string{"outcome"}),
		provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "course_users_provisioned_total",
			Help: "Provisioning results, split by whether a row was inserted.",
		}, []string{"created"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "course_progress_completions_total",
			Help: "Progress completion upserts, split by whether the lesson was newly completed.",
		}, []string{"first"}),
		storeOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "course_store_op_seconds",
			Help:    "Latency of store calls made by the services.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(c.logins, c.provisioned, c.completions, c.storeOps)
	return c
}

// Login records one callback outcome (success, rejected, provider_error, ...).
func (c *Collector) Login(outcome string) {
	if c == nil {
		return
	}
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) Provisioned(created bool) {
	if c == nil {
		return
	}
	c.provisioned.WithLabelValues(boolLabel(created)).Inc()
}

func (c *Collector) Completed(first bool) {
	if c == nil {
		return
	}
	c.completions.WithLabelValues(boolLabel(first)).Inc()
}

func (c *Collector) ObserveStore(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.storeOps.WithLabelValues(op).Observe(d.Seconds())
}

// Handler serves the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
