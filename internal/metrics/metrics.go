package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	initOnce sync.Once

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_uploads_total",
		Help: "Media uploads by storage strategy and outcome.",
	}, []string{"strategy", "outcome"})

	deletes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_deletes_total",
		Help: "Media deletions by outcome.",
	}, []string{"outcome"})

	authOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Auth gateway operations by operation and outcome.",
	}, []string{"operation", "outcome"})
)

// InitMetrics registers the collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, uploads, deletes, authOps)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// ObserveUpload counts one upload attempt.
func ObserveUpload(strategy string, err error) {
	uploads.WithLabelValues(strategy, outcome(err)).Inc()
}

// ObserveDelete counts one delete attempt.
func ObserveDelete(err error) {
	deletes.WithLabelValues(outcome(err)).Inc()
}

// ObserveAuth counts one auth gateway operation.
func ObserveAuth(operation string, ok bool) {
	o := OutcomeSuccess
	if !ok {
		o = OutcomeFailure
	}
	authOps.WithLabelValues(operation, o).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
