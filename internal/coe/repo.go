package coe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-coe/internal/cycle"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/seating"
)

var ErrNotFound = errors.New("not found")

// SessionKey identifies one exam session: a date and slot within a cycle.
type SessionKey struct {
	CycleID string `json:"cycle_id"`
	Date    string `json:"exam_date"` // YYYY-MM-DD
	Slot    string `json:"session"`   // FN | AN
}

func (k SessionKey) String() string { return fmt.Sprintf("%s/%s_%s", k.CycleID, k.Date, k.Slot) }

func (k SessionKey) Normalize() SessionKey {
	return SessionKey{
		CycleID: strings.TrimSpace(k.CycleID),
		Date:    strings.TrimSpace(k.Date),
		Slot:    strings.ToUpper(strings.TrimSpace(k.Slot)),
	}
}

// Event is an audit log entry.
type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

const (
	EvtCycleCreated     = "CycleCreated"
	EvtCyclePhase       = "CyclePhaseChanged"
	EvtSeatsAllocated   = "SeatsAllocated"
	EvtAttendanceMarked = "AttendanceMarked"
	EvtBundlesGenerated = "BundlesGenerated"
	EvtSEEDecoded       = "SEEDecoded"
	EvtCIEEntered       = "CIEEntered"
	EvtResultsGraded    = "ResultsGraded"
	EvtResultModerated  = "ResultModerated"
)

type Store interface {
	UpsertRooms(ctx context.Context, rooms []seating.Room) error
	ListRooms(ctx context.Context) ([]seating.Room, error) // priority order
	UpsertCourses(ctx context.Context, courses []grading.Policy) error
	ListCourses(ctx context.Context) ([]grading.Policy, error)

	PutCycle(ctx context.Context, c cycle.Cycle) error
	GetCycle(ctx context.Context, id string) (cycle.Cycle, error)
	ListCycles(ctx context.Context) ([]cycle.Cycle, error)

	// ReplaceSeats swaps the whole seat table of a session atomically.
	ReplaceSeats(ctx context.Context, key SessionKey, seats []seating.Assignment) error
	ListSeats(ctx context.Context, key SessionKey) ([]seating.Assignment, error)

	UpsertResults(ctx context.Context, cycleID string, recs []grading.Record) error
	ListResults(ctx context.Context, cycleID string) ([]grading.Record, error)
	GetResult(ctx context.Context, cycleID, studentID, courseCode string) (grading.Record, error)

	AppendEvent(ctx context.Context, e Event) error
	ListEvents(ctx context.Context, key string) ([]Event, error)
}
