package metrics

// Metrics is what the services report. It keeps the engine independent of
// the Prometheus client.
type Metrics interface {
	IncTournamentsStarted(format string)
	IncTournamentsFinished(status string)
	IncResultsRecorded()
	IncConcurrencyConflicts()
	IncCacheHits()
	IncCacheMisses()
	IncNotificationsFailed()
	ObserveOperationDuration(operation string, seconds float64)
}
