package notify

import (
	"context"
	"sync"
)

// Mock is a mock implementation of the Dispatcher interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spy for Dispatch; a non-nil error is returned to the caller
	DispatchFunc func(event Event) error

	// Call records
	DispatchCalls []Event
}

var _ Dispatcher = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Dispatch(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DispatchCalls = append(m.DispatchCalls, event)
	if m.DispatchFunc != nil {
		return m.DispatchFunc(event)
	}
	return nil
}

// Events returns the types dispatched so far, in order.
func (m *Mock) Events() []EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventType, 0, len(m.DispatchCalls))
	for _, e := range m.DispatchCalls {
		out = append(out, e.Type)
	}
	return out
}

// Count returns how many events of type t were dispatched.
func (m *Mock) Count(t EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.DispatchCalls {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DispatchCalls = nil
}
