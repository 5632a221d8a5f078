package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	attemptsStartedTotal     *prometheus.CounterVec
	attemptsClosedTotal      *prometheus.CounterVec
	answersSavedTotal        *prometheus.CounterVec
	answersRejectedTotal     *prometheus.CounterVec
	violationsTotal          *prometheus.CounterVec
	violationFailuresTotal   prometheus.Counter
	marksPublishedTotal      prometheus.Counter
	sweepRunsTotal           *prometheus.CounterVec
	sweepClosedTotal         prometheus.Counter
	notificationsPublished   *prometheus.CounterVec
	streamClients            *prometheus.GaugeVec
	answerSheetLatency       prometheus.Histogram
	answerSheetRejectedTotal *prometheus.CounterVec
	leaderboardRequests      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the attempt engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rankpaper_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		attemptsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_attempts_started_total",
			Help: "Attempt start requests by outcome.",
		}, []string{"outcome"})

		attemptsClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_attempts_closed_total",
			Help: "Terminal attempt transitions by close reason.",
		}, []string{"reason"})

		answersSavedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_answers_saved_total",
			Help: "Accepted answer writes by section.",
		}, []string{"section"})

		answersRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_answers_rejected_total",
			Help: "Rejected answer writes by reason.",
		}, []string{"reason"})

		violationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_integrity_violations_total",
			Help: "Recorded integrity violations by kind.",
		}, []string{"kind"})

		violationFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankpaper_integrity_violation_failures_total",
			Help: "Violation reports that could not be persisted.",
		})

		marksPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankpaper_marks_published_total",
			Help: "Number of marks transitioned to published.",
		})

		sweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_expiry_sweep_runs_total",
			Help: "Expiry sweep passes by outcome.",
		}, []string{"outcome"})

		sweepClosedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankpaper_expiry_sweep_closed_total",
			Help: "Attempts auto-closed by the expiry sweep.",
		})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_notifications_published_total",
			Help: "Notifications published by type.",
		}, []string{"type"})

		streamClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rankpaper_stream_clients_active",
			Help: "Active websocket stream connections by stream.",
		}, []string{"stream"})

		answerSheetLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rankpaper_answer_sheet_upload_seconds",
			Help:    "Latency of answer sheet uploads.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		})

		answerSheetRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_answer_sheet_rejected_total",
			Help: "Rejected answer sheet uploads by reason.",
		}, []string{"reason"})

		leaderboardRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankpaper_leaderboard_requests_total",
			Help: "Leaderboard reads by outcome.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			attemptsStartedTotal, attemptsClosedTotal,
			answersSavedTotal, answersRejectedTotal,
			violationsTotal, violationFailuresTotal,
			marksPublishedTotal,
			sweepRunsTotal, sweepClosedTotal,
			notificationsPublished, streamClients,
			answerSheetLatency, answerSheetRejectedTotal,
			leaderboardRequests,
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

func AttemptsStarted() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsStartedTotal
}

func AttemptsClosed() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsClosedTotal
}

func AnswersSaved() *prometheus.CounterVec {
	RegisterMetrics()
	return answersSavedTotal
}

func AnswersRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return answersRejectedTotal
}

func Violations() *prometheus.CounterVec {
	RegisterMetrics()
	return violationsTotal
}

func ViolationFailures() prometheus.Counter {
	RegisterMetrics()
	return violationFailuresTotal
}

func MarksPublished() prometheus.Counter {
	RegisterMetrics()
	return marksPublishedTotal
}

// SweepRuns counts expiry sweep passes labelled ran, skipped or failed.
func SweepRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepRunsTotal
}

func SweepClosed() prometheus.Counter {
	RegisterMetrics()
	return sweepClosedTotal
}

func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// StreamClients tracks open websocket streams labelled notifications or attempt_status.
func StreamClients() *prometheus.GaugeVec {
	RegisterMetrics()
	return streamClients
}

func AnswerSheetLatency() prometheus.Histogram {
	RegisterMetrics()
	return answerSheetLatency
}

func AnswerSheetRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return answerSheetRejectedTotal
}

// LeaderboardRequests counts leaderboard reads labelled ok or error.
func LeaderboardRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardRequests
}
