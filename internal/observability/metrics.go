package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "grader"

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec
	httpInFlight       *prometheus.GaugeVec

	gradingRunsTotal          *prometheus.CounterVec
	gradingSubmissionsTotal   *prometheus.CounterVec
	gradingScorePercent       prometheus.Histogram
	gradingSubmissionDuration prometheus.Histogram
	submissionCacheTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grader.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 10, 60},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		httpInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "API requests currently being served, by operation.",
		}, []string{"operation"})

		gradingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grading",
			Name:      "runs_total",
			Help:      "Grading runs by final status.",
		}, []string{"status"})

		gradingSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grading",
			Name:      "submissions_total",
			Help:      "Submissions processed by outcome.",
		}, []string{"outcome"})

		gradingScorePercent = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grading",
			Name:      "score_percent",
			Help:      "Total scores as a percentage of the rubric maximum.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		})

		gradingSubmissionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grading",
			Name:      "submission_duration_seconds",
			Help:      "Time to download, evaluate and store one submission.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		})

		submissionCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "cache_total",
			Help:      "Submission text cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal, httpInFlight,
			gradingRunsTotal, gradingSubmissionsTotal, gradingScorePercent,
			gradingSubmissionDuration, submissionCacheTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// HTTPInFlight tracks requests in progress, split into grade and read operations.
func HTTPInFlight() *prometheus.GaugeVec {
	RegisterMetrics()
	return httpInFlight
}

// GradingRuns counts grading runs by status.
func GradingRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRunsTotal
}

// GradingSubmissions counts processed submissions by outcome.
func GradingSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingSubmissionsTotal
}

// GradingScores observes total scores as percentages.
func GradingScores() prometheus.Histogram {
	RegisterMetrics()
	return gradingScorePercent
}

// GradingSubmissionDuration observes per-submission processing time.
func GradingSubmissionDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingSubmissionDuration
}

// SubmissionCache counts text cache hits and misses.
func SubmissionCache() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionCacheTotal
}

