package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "khadimemillat"

// Metrics holds Prometheus metrics for the service
type Metrics struct {
	RequestCounter      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	CampaignTransitions *prometheus.CounterVec
	RecheckResults      *prometheus.CounterVec
	AudienceEvaluation  *prometheus.HistogramVec
	DeliveriesSent      *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Passing nil uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CampaignTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "campaigns",
				Name:      "transitions_total",
				Help:      "Campaign state transitions",
			},
			[]string{"from", "to"},
		),
		RecheckResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "recheck_results_total",
				Help:      "Payment recheck outcomes",
			},
			[]string{"outcome"},
		),
		AudienceEvaluation: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "audience",
				Name:      "evaluation_duration_seconds",
				Help:      "Audience evaluation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DeliveriesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "delivery",
				Name:      "messages_total",
				Help:      "Messages handed to channel gateways",
			},
			[]string{"channel", "status"},
		),
	}
}

// GinMiddleware records request count and latency per matched route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// ObserveTransition counts one campaign state change. Safe on a nil receiver.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.CampaignTransitions.WithLabelValues(from, to).Inc()
}

// ObserveRecheck counts one recheck outcome. Safe on a nil receiver.
func (m *Metrics) ObserveRecheck(outcome string) {
	if m == nil {
		return
	}
	m.RecheckResults.WithLabelValues(outcome).Inc()
}

// ObserveAudience records how long an evaluation took. Safe on a nil receiver.
func (m *Metrics) ObserveAudience(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.AudienceEvaluation.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveDelivery counts one message hand-off. Safe on a nil receiver.
func (m *Metrics) ObserveDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.DeliveriesSent.WithLabelValues(channel, status).Inc()
}
