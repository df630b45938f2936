package metrics

// Discard drops every measurement. Used when no registry is wired in.
var Discard Metrics = discard{}

type discard struct{}

func (discard) IncTournamentsStarted(string) {}
func (discard) IncTournamentsFinished(string) {}
func (discard) IncResultsRecorded() {}
func (discard) IncConcurrencyConflicts() {}
func (discard) IncCacheHits() {}
func (discard) IncCacheMisses() {}
func (discard) IncNotificationsFailed() {}
func (discard) ObserveOperationDuration(string, float64) {}
