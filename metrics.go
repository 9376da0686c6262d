package loom

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Metrics middleware.
type MetricsConfig struct {
	Registerer prometheus.Registerer // default: prometheus.DefaultRegisterer
	Namespace  string                // metric name prefix
}

// Metrics returns middleware that records request count, latency, and
// in-flight gauge per request. The route label is the matched pattern, not
// the raw path, so cardinality stays bounded by the route table; unmatched
// requests are labeled "unmatched". Register the middleware once per
// registry: instruments are created and registered when Metrics is called.
func Metrics(cfg ...MetricsConfig) Middleware {
	var conf MetricsConfig
	if len(cfg) > 0 {
		conf = cfg[0]
	}
	reg := conf.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: conf.Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests served, by method, matched route, and status.",
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: conf.Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Request latency, by method and matched route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: conf.Namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests currently inside the chain.",
	})

	reg.MustRegister(requests, duration, inflight)

	return func(c *Context, next Next) error {
		start := time.Now()
		inflight.Inc()
		err := next()
		inflight.Dec()

		route := c.RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := c.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if err != nil {
			status = statusForError(err)
		}

		requests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		duration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())

		return err
	}
}

// ServeMetrics registers a GET route at pattern serving g in Prometheus
// exposition format.
func (a *App) ServeMetrics(pattern string, g prometheus.Gatherer) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	a.Get(pattern, WrapHTTP(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
