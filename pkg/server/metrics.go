package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jameshartig/chargeplan/pkg/types"
)

var requestCounts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chargeplan",
	Name:      "http_requests_total",
	Help:      "Total number of API requests by path and status code.",
}, []string{"path", "code"})

var resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "chargeplan",
	Name:      "composite_resolve_seconds",
	Help:      "Time spent resolving composite schedules.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
}, []string{"outcome"})

var actionCounts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chargeplan",
	Name:      "control_actions_total",
	Help:      "Total number of control loop actions by reason.",
}, []string{"reason", "applied"})

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		// keep the label set bounded
		if rec.code == http.StatusNotFound || rec.code == http.StatusMethodNotAllowed {
			path = "unmatched"
		}
		requestCounts.With(prometheus.Labels{"path": path, "code": strconv.Itoa(rec.code)}).Inc()
	})
}

func observeResolve(start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	resolveDuration.With(prometheus.Labels{"outcome": outcome}).Observe(time.Since(start).Seconds())
}

func observeAction(action types.Action) {
	applied := "true"
	if action.NoChange || action.DryRun || action.Failed {
		applied = "false"
	}
	actionCounts.With(prometheus.Labels{"reason": string(action.Reason), "applied": applied}).Inc()
}
