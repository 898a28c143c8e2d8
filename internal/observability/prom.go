package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Mail
	MailDuration *prometheus.HistogramVec
	MailResults  *prometheus.CounterVec

	MailBreaker  *prometheus.GaugeVec

	// Token lifecycle
	TokenTransitions *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bienesraices",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bienesraices",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				// bcrypt dominates the POST handlers
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bienesraices",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bienesraices",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bienesraices",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		MailDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bienesraices",
				Subsystem: "mail",
				Name:      "send_duration_seconds",
				Help:      "Time spent handing an email to the transport or the outbox.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		),
		MailResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bienesraices",
				Subsystem: "mail",
				Name:      "results_total",
				Help:      "Email outcomes by kind and result.",
			},
			[]string{"kind", "result"}, // result=sent|failed
		),
		MailBreaker: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bienesraices",
				Subsystem: "mail",
				Name:      "breaker_state",
				Help:      "1 for the current SMTP circuit breaker state, 0 otherwise.",
			},
			[]string{"state"},
		),
		TokenTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bienesraices",
				Subsystem: "tokens",
				Name:      "transitions_total",
				Help:      "Account token transitions (issued, confirmed, password_reset, rejected).",
			},
			[]string{"transition"},
		),
	}
	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.DbQueryDuration, p.DbErrorsTotal, p.MailDuration, p.MailResults, p.MailBreaker, p.TokenTransitions)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

func (p *Prom) ObserveMail(kind string, fn func() error) error {
	start := time.Now()
	err := fn()

	result := "sent"
	if err != nil {
		result = "failed"
	}

	p.MailDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	p.MailResults.WithLabelValues(kind, result).Inc()

	return err
}

func (p *Prom) TokenTransition(transition string) {
	p.TokenTransitions.WithLabelValues(transition).Inc()
}

// BreakerState records a circuit breaker transition.
func (p *Prom) BreakerState(from, to string) {
	p.MailBreaker.WithLabelValues(from).Set(0)
	p.MailBreaker.WithLabelValues(to).Set(1)
}
