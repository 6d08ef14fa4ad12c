package calendar

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Port used in development mode and in tests.
type Memory struct {
	mu     sync.RWMutex
	events map[string]map[string]memoryEvent

	// Injected failures, checked on every call.
	ListErr   error
	CreateErr error
	DeleteErr error
}

type memoryEvent struct {
	Event
	start, end time.Time
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string]map[string]memoryEvent)}
}

func (m *Memory) ListEvents(_ context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []memoryEvent
	for _, ev := range m.events[calendarID] {
		if ev.start.Before(to) && from.Before(ev.end) {
			matched = append(matched, ev)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].start.Before(matched[j].start) })

	out := make([]Event, 0, len(matched))
	for _, ev := range matched {
		out = append(out, ev.Event)
	}
	return out, nil
}

func (m *Memory) CreateEvent(_ context.Context, calendarID string, ev NewEvent, id string) (string, error) {
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if !ev.Start.Before(ev.End) {
		return "", errors.New("event end must be after start")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cal := m.events[calendarID]
	if cal == nil {
		cal = make(map[string]memoryEvent)
		m.events[calendarID] = cal
	}
	if _, exists := cal[id]; exists {
		return "", ErrConflict
	}
	for _, other := range cal {
		if ev.Start.Before(other.end) && other.start.Before(ev.End) {
			return "", ErrConflict
		}
	}
	cal[id] = memoryEvent{
		Event: Event{
			ID:          id,
			Title:       ev.Title,
			Description: ev.Description,
			Start:       At(ev.Start),
			End:         At(ev.End),
		},
		start: ev.Start,
		end:   ev.End,
	}
	return id, nil
}

func (m *Memory) DeleteEvent(_ context.Context, calendarID, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[calendarID][id]; !ok {
		return ErrEventNotFound
	}
	delete(m.events[calendarID], id)
	return nil
}

// Put stores a raw event without any conflict check, so tests can seed
// double bookings, all-day entries, and malformed timestamps.
func (m *Memory) Put(calendarID string, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal := m.events[calendarID]
	if cal == nil {
		cal = make(map[string]memoryEvent)
		m.events[calendarID] = cal
	}
	start, errS := ev.Start.In(time.UTC)
	end, errE := ev.End.In(time.UTC)
	if errS != nil || errE != nil {
		// Keep it listable for any range.
		start, end = time.Time{}, time.Unix(1<<40, 0)
	}
	if ev.End.IsAllDay() && !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	cal[ev.ID] = memoryEvent{Event: ev, start: start, end: end}
}

// Count returns the number of stored events for a calendar.
func (m *Memory) Count(calendarID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events[calendarID])
}
