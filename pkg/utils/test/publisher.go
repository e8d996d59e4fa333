package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
)

// MockPublisher is a test eventstream publisher that records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnPersistedEvent

	// Fail causes PublishTurn to return an error.
	Fail bool

	// Block, when non-nil, is received from before each publish returns.
	Block chan struct{}

	closed bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishTurn(_ context.Context, event *eventstream.TurnPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	if m.Block != nil {
		<-m.Block
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return errors.New("publish failed")
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []*eventstream.TurnPersistedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.TurnPersistedEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
