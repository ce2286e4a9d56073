package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]time.Duration // map[scheduleID]interval
	upsertErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{schedules: make(map[string]time.Duration)}
}

// UpsertStatsSchedule creates or updates a schedule.
func (m *MockScheduler) UpsertStatsSchedule(ctx context.Context, symbol string, interval time.Duration) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[scheduleID(symbol)] = interval
	return nil
}

// DeleteStatsSchedule records that a schedule was deleted.
func (m *MockScheduler) DeleteStatsSchedule(ctx context.Context, symbol string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := scheduleID(symbol)
	if _, exists := m.schedules[id]; !exists {
		return fmt.Errorf("schedule %q not found", id)
	}
	delete(m.schedules, id)
	return nil
}

// SetUpsertError makes UpsertStatsSchedule return an error.
func (m *MockScheduler) SetUpsertError(err error) {
	m.upsertErr = err
}

// SetDeleteError makes DeleteStatsSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.deleteErr = err
}

// GetScheduleInterval returns the interval of a token's schedule.
func (m *MockScheduler) GetScheduleInterval(symbol string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	interval, exists := m.schedules[scheduleID(symbol)]
	return interval, exists
}

// ScheduleCount returns the number of schedules.
func (m *MockScheduler) ScheduleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedules)
}
