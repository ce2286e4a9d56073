package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*TokenStatsEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{publishedEvents: make([]*TokenStatsEvent, 0)}
}

// PublishTokenStats records the event and returns any configured error.
func (m *MockPublisher) PublishTokenStats(ctx context.Context, event *TokenStatsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns a copy of all published events.
func (m *MockPublisher) GetPublishedEvents() []*TokenStatsEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TokenStatsEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsForSymbol returns events published for one token.
func (m *MockPublisher) GetPublishedEventsForSymbol(symbol string) []*TokenStatsEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TokenStatsEvent, 0)
	for _, e := range m.publishedEvents {
		if e.Symbol == symbol {
			events = append(events, e)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on PublishTokenStats.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
