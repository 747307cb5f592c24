// Package cycle tracks an examination cycle through its ten operational phases.
package cycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Phase int

const (
	PhaseInitiation Phase = iota + 1
	PhaseTimetableReady
	PhaseApplicationsOpen
	PhaseApplicationsClosed
	PhaseHallTickets
	PhaseAttendance
	PhaseSeating
	PhaseLogistics
	PhaseLiveExam
	PhaseResults
)

var phaseNames = map[Phase]string{
	PhaseInitiation:         "Initiation",
	PhaseTimetableReady:     "Timetable Ready",
	PhaseApplicationsOpen:   "Applications Open",
	PhaseApplicationsClosed: "Applications Closed",
	PhaseHallTickets:        "Hall Ticket Phase",
	PhaseAttendance:         "Attendance (Form B)",
	PhaseSeating:            "Seating Allocation",
	PhaseLogistics:          "Logistics Ready",
	PhaseLiveExam:           "Live Examination",
	PhaseResults:            "Results Processing",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) Valid() bool { return p >= PhaseInitiation && p <= PhaseResults }

var (
	ErrPhaseBounds     = errors.New("cycle: phase out of range")
	ErrPhaseNotReached = errors.New("cycle: operation not allowed in current phase")
	ErrInvalidName     = errors.New("cycle: name required")
)

// Cycle is one examination cycle (regular, supplementary, PG ...). Several
// cycles may run side by side; every core call names the cycle it acts on.
type Cycle struct {
	ID        string    `json:"cycle_id"`
	Name      string    `json:"name"`
	Phase     Phase     `json:"status_code"`
	CreatedAt time.Time `json:"created_at"`
}

func New(name string, now time.Time) (Cycle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Cycle{}, ErrInvalidName
	}
	return Cycle{ID: uuid.NewString(), Name: name, Phase: PhaseInitiation, CreatedAt: now.UTC()}, nil
}

// Advance moves the cycle one phase forward.
func (c *Cycle) Advance() error {
	if c.Phase >= PhaseResults {
		return fmt.Errorf("%w: already at %s", ErrPhaseBounds, c.Phase)
	}
	c.Phase++
	return nil
}

// Revert steps back one phase, for correcting a premature advance.
func (c *Cycle) Revert() error {
	if c.Phase <= PhaseInitiation {
		return fmt.Errorf("%w: already at %s", ErrPhaseBounds, c.Phase)
	}
	c.Phase--
	return nil
}

// Require fails unless the cycle has reached at least phase p.
func (c Cycle) Require(p Phase) error {
	if c.Phase < p {
		return fmt.Errorf("%w: need %q, cycle %s is at %q", ErrPhaseNotReached, p, c.ID, c.Phase)
	}
	return nil
}

// Progress is the fraction of the lifecycle completed, for dashboards.
func (c Cycle) Progress() float64 { return float64(c.Phase) / float64(PhaseResults) }
