package grading

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-coe/internal/seating"
)

// Record is one (student, course) result row. CIE and SEE stay nil until the
// marks are entered; a nil mark grades as 0.
type Record struct {
	CycleID    string         `json:"cycle_id"`
	StudentID  string         `json:"student_id"`
	CourseCode string         `json:"course_code"`
	CIE        *float64       `json:"cie_marks"`
	SEE        *float64       `json:"see_raw"`
	Status     seating.Status `json:"exam_status"`
	Outcome
}

func (r Record) Input(p Policy) Input {
	return Input{CIE: r.CIE, SEE: r.SEE, Status: r.Status, Policy: p}
}

type GraceTarget string

const (
	GraceSEE GraceTarget = "SEE"
	GraceCIE GraceTarget = "CIE"
)

// Grace is a moderation award added to one raw component before re-grading.
type Grace struct {
	Target GraceTarget `json:"target"`
	Marks  float64     `json:"marks"`
}

var ErrInvalidGrace = errors.New("grading: invalid grace award")

// Engine options

type Option func(*config)

type config struct {
	MaxGrace float64 // upper bound for a single grace award
}

func WithMaxGrace(n float64) Option { return func(c *config) { c.MaxGrace = n } }

// Engine runs the bulk grading pass and moderation over Grade.
type Engine struct {
	maxGrace float64
}

func NewEngine(opts ...Option) *Engine {
	cfg := &config{MaxGrace: 10}
	for _, o := range opts {
		o(cfg)
	}
	return &Engine{maxGrace: cfg.MaxGrace}
}

func (e *Engine) MaxGrace() float64 { return e.maxGrace }

// GradeAll grades every record in place against the resolved table.
func (e *Engine) GradeAll(records []Record, table PolicyTable) {
	for i := range records {
		records[i].Outcome = Grade(records[i].Input(table.Lookup(records[i].CourseCode)))
	}
}

// Regrade re-evaluates one record with its current marks.
func (e *Engine) Regrade(rec Record, p Policy) Record {
	rec.Outcome = Grade(rec.Input(p))
	return rec
}

// Moderate adds grace marks to the chosen component and regrades. The raw
// marks on the returned record include the award.
func (e *Engine) Moderate(rec Record, p Policy, g Grace) (Record, error) {
	if g.Marks < 0 || g.Marks > e.maxGrace {
		return rec, fmt.Errorf("%w: %.1f marks (allowed 0..%.1f)", ErrInvalidGrace, g.Marks, e.maxGrace)
	}
	switch g.Target {
	case GraceSEE:
		rec.SEE = addMarks(rec.SEE, g.Marks)
	case GraceCIE:
		rec.CIE = addMarks(rec.CIE, g.Marks)
	default:
		return rec, fmt.Errorf("%w: unknown target %q", ErrInvalidGrace, g.Target)
	}
	return e.Regrade(rec, p), nil
}

func addMarks(v *float64, n float64) *float64 {
	base := 0.0
	if v != nil {
		base = *v
	}
	return Marks(base + n)
}
