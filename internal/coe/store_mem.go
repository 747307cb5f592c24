package coe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-coe/internal/cycle"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/seating"
)

type resultKey struct{ cycle, student, course string }

type memoryStore struct {
	mu      sync.RWMutex
	rooms   map[string]seating.Room
	courses map[string]grading.Policy
	cycles  map[string]cycle.Cycle
	seats   map[SessionKey][]seating.Assignment
	results map[resultKey]grading.Record
	events  []Event
}

func NewInMemoryStore() Store {
	return &memoryStore{
		rooms:   map[string]seating.Room{},
		courses: map[string]grading.Policy{},
		cycles:  map[string]cycle.Cycle{},
		seats:   map[SessionKey][]seating.Assignment{},
		results: map[resultKey]grading.Record{},
	}
}

func (m *memoryStore) UpsertRooms(_ context.Context, rooms []seating.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rooms {
		m.rooms[r.Number] = r
	}
	return nil
}

func (m *memoryStore) ListRooms(context.Context) ([]seating.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]seating.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	seating.SortRooms(out)
	return out, nil
}

func (m *memoryStore) UpsertCourses(_ context.Context, courses []grading.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range courses {
		m.courses[c.CourseCode] = c
	}
	return nil
}

func (m *memoryStore) ListCourses(context.Context) ([]grading.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]grading.Policy, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseCode < out[j].CourseCode })
	return out, nil
}

func (m *memoryStore) PutCycle(_ context.Context, c cycle.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[c.ID] = c
	return nil
}

func (m *memoryStore) GetCycle(_ context.Context, id string) (cycle.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cycles[id]
	if !ok {
		return cycle.Cycle{}, fmt.Errorf("cycle %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *memoryStore) ListCycles(context.Context) ([]cycle.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]cycle.Cycle, 0, len(m.cycles))
	for _, c := range m.cycles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) ReplaceSeats(_ context.Context, key SessionKey, seats []seating.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(seats))
	for _, a := range seats {
		if seen[a.StudentID] {
			return fmt.Errorf("seat %s/%d: %w", a.RoomNumber, a.SeatNumber, seating.ErrDuplicateStudent)
		}
		seen[a.StudentID] = true
	}
	m.seats[key] = append([]seating.Assignment(nil), seats...)
	return nil
}

func (m *memoryStore) ListSeats(_ context.Context, key SessionKey) ([]seating.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]seating.Assignment{}, m.seats[key]...)
	prio := func(room string) int { return m.rooms[room].Priority }
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if pa, pb := prio(a.RoomNumber), prio(b.RoomNumber); pa != pb {
			return pa < pb
		}
		if a.RoomNumber != b.RoomNumber {
			return a.RoomNumber < b.RoomNumber
		}
		return a.SeatNumber < b.SeatNumber
	})
	return out, nil
}

func (m *memoryStore) UpsertResults(_ context.Context, cycleID string, recs []grading.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		r.CycleID = cycleID
		r.Status = statusOrPresent(r.Status)
		m.results[resultKey{cycleID, r.StudentID, r.CourseCode}] = r
	}
	return nil
}

func (m *memoryStore) ListResults(_ context.Context, cycleID string) ([]grading.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []grading.Record{}
	for k, r := range m.results {
		if k.cycle == cycleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentID != out[j].StudentID {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].CourseCode < out[j].CourseCode
	})
	return out, nil
}

func (m *memoryStore) GetResult(_ context.Context, cycleID, studentID, courseCode string) (grading.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[resultKey{cycleID, studentID, courseCode}]
	if !ok {
		return grading.Record{}, fmt.Errorf("result %s/%s: %w", studentID, courseCode, ErrNotFound)
	}
	return r, nil
}

func (m *memoryStore) AppendEvent(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Seq = int64(len(m.events) + 1)
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	e.CreatedAt = time.Now().Unix()
	m.events = append(m.events, e)
	return nil
}

func (m *memoryStore) ListEvents(_ context.Context, key string) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Event{}
	for _, e := range m.events {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out, nil
}
