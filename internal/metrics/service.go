package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

type Service struct {
	TournamentsStarted   *prometheus.CounterVec
	TournamentsFinished  *prometheus.CounterVec
	ResultsRecorded      prometheus.Counter
	ConcurrencyConflicts prometheus.Counter
	CacheRequests        *prometheus.CounterVec
	NotificationsFailed  prometheus.Counter
	OperationDuration    *prometheus.HistogramVec
}

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		TournamentsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bracket_tournaments_started_total",
			Help: "Tournaments started, by format.",
		}, []string{"format"}),
		TournamentsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bracket_tournaments_finished_total",
			Help: "Tournaments that reached a terminal status, by status.",
		}, []string{"status"}),
		ResultsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_results_recorded_total",
			Help: "Match results applied to a bracket.",
		}),
		ConcurrencyConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_concurrency_conflicts_total",
			Help: "Mutations rejected because the tournament changed underneath them.",
		}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bracket_standings_cache_requests_total",
			Help: "Standings cache lookups, by result.",
		}, []string{"result"}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bracket_notifications_failed_total",
			Help: "Notifications the dispatcher failed to deliver.",
		}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bracket_operation_duration_seconds",
			Help:    "Duration of lifecycle operations.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}

	reg.MustRegister(
		s.TournamentsStarted,
		s.TournamentsFinished,
		s.ResultsRecorded,
		s.ConcurrencyConflicts,
		s.CacheRequests,
		s.NotificationsFailed,
		s.OperationDuration,
	)

	return s
}

func (s *Service) IncTournamentsStarted(format string) {
	s.TournamentsStarted.WithLabelValues(format).Inc()
}

func (s *Service) IncTournamentsFinished(status string) {
	s.TournamentsFinished.WithLabelValues(status).Inc()
}

func (s *Service) IncResultsRecorded() {
	s.ResultsRecorded.Inc()
}

func (s *Service) IncConcurrencyConflicts() {
	s.ConcurrencyConflicts.Inc()
}

func (s *Service) IncCacheHits() {
	s.CacheRequests.WithLabelValues("hit").Inc()
}

func (s *Service) IncCacheMisses() {
	s.CacheRequests.WithLabelValues("miss").Inc()
}

func (s *Service) IncNotificationsFailed() {
	s.NotificationsFailed.Inc()
}

func (s *Service) ObserveOperationDuration(operation string, seconds float64) {
	s.OperationDuration.WithLabelValues(operation).Observe(seconds)
}
