package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "test_attempts_started_total",
			Help: "Test attempts successfully started",
		},
	)

	AttemptStartRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_attempt_start_rejected_total",
			Help: "Rejected attempt starts by reason",
		},
		[]string{"reason"},
	)

	AttemptsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_attempts_finished_total",
			Help: "Finished test attempts by outcome",
		},
		[]string{"outcome"},
	)

	AttemptBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "test_attempt_blocks_total",
			Help: "Cooldowns issued after consecutive failures",
		},
	)

	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_answers_submitted_total",
			Help: "Answers stored by question type",
		},
		[]string{"question_type"},
	)

	PartialScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "test_answer_partial_score",
			Help:    "Partial score of auto-graded answers",
			Buckets: []float64{0, 0.25, 0.5, 0.75, 1},
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptsStarted,
			AttemptStartRejected,
			AttemptsFinished,
			AttemptBlocks,
			AnswersSubmitted,
			PartialScores,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
