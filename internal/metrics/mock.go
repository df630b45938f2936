package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                   sync.Mutex
	tournamentsStarted   map[string]int
	tournamentsFinished  map[string]int
	resultsRecorded      int
	concurrencyConflicts int
	cacheHits            int
	cacheMisses          int
	notificationsFailed  int
	operations           map[string]int
}

var _ Metrics = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{
		tournamentsStarted:  make(map[string]int),
		tournamentsFinished: make(map[string]int),
		operations:          make(map[string]int),
	}
}

func (m *Mock) IncTournamentsStarted(format string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tournamentsStarted[format]++
}

func (m *Mock) IncTournamentsFinished(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tournamentsFinished[status]++
}

func (m *Mock) IncResultsRecorded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resultsRecorded++
}

func (m *Mock) IncConcurrencyConflicts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.concurrencyConflicts++
}

func (m *Mock) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *Mock) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func (m *Mock) IncNotificationsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationsFailed++
}

func (m *Mock) ObserveOperationDuration(operation string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[operation]++
}

// TournamentsStarted returns how often IncTournamentsStarted was called for format.
func (m *Mock) TournamentsStarted(format string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tournamentsStarted[format]
}

// TournamentsFinished returns how often IncTournamentsFinished was called for status.
func (m *Mock) TournamentsFinished(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tournamentsFinished[status]
}

func (m *Mock) ResultsRecorded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resultsRecorded
}

func (m *Mock) ConcurrencyConflicts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.concurrencyConflicts
}

func (m *Mock) CacheHits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheHits
}

func (m *Mock) CacheMisses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheMisses
}

func (m *Mock) NotificationsFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notificationsFailed
}

// Operations returns how many durations were observed for operation.
func (m *Mock) Operations(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.operations[operation]
}
