package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interaction_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interaction_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interaction_mutations_total",
		Help: "Like and comment mutations by outcome",
	}, []string{"kind", "outcome"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// metricsMiddleware doit envelopper directement le mux : r.Pattern est
// renseigné par le mux sur la même requête.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// recordMutation : "ok", "conflict" (like redondant) ou la classe d'erreur.
func recordMutation(kind string, err error) {
	outcome := "ok"
	if err != nil {
		status, _ := mapDomainError(err)
		switch {
		case status == http.StatusConflict:
			outcome = "conflict"
		case status < http.StatusInternalServerError:
			outcome = "rejected"
		default:
			outcome = "error"
		}
	}
	mutationsTotal.WithLabelValues(kind, outcome).Inc()
}
