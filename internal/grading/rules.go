package grading

import (
	"math"

	"github.com/mind-engage/mindengage-coe/internal/seating"
)

// Letter grades. AB/MP/WH mirror the exam status that produced them; PP/NP
// are used for non-credit courses.
const (
	GradeO           = "O"
	GradeAPlus       = "A+"
	GradeA           = "A"
	GradeBPlus       = "B+"
	GradeB           = "B"
	GradeC           = "C"
	GradeP           = "P"
	GradeF           = "F"
	GradeAbsent      = "AB"
	GradeMalpractice = "MP"
	GradeWithheld    = "WH"
	GradePass        = "PP"
	GradeNotPass     = "NP"
)

// Thresholds are whole percentages so that integer maxima compare exactly.
const (
	minCIEPercent   = 40
	minSEEPercent   = 35
	minTotalPercent = 40
)

type band struct {
	percent float64
	grade   string
	points  int
}

var bands = []band{
	{90, GradeO, 10},
	{80, GradeAPlus, 9},
	{70, GradeA, 8},
	{60, GradeBPlus, 7},
	{50, GradeB, 6},
	{45, GradeC, 5},
}

// Input is everything the rule function looks at.
type Input struct {
	CIE    *float64
	SEE    *float64
	Status seating.Status
	Policy Policy
}

type Outcome struct {
	ScaledSEE     float64 `json:"see_scaled"`
	Total         float64 `json:"total_marks"`
	Grade         string  `json:"grade"`
	GradePoints   int     `json:"grade_points"`
	IsPass        bool    `json:"is_pass"`
	CreditsEarned float64 `json:"credits_earned"`
}

// Grade applies the result rules to one (student, course) record. It has no
// state: the bulk pass and moderation both call it so their results agree.
func Grade(in Input) Outcome {
	switch in.Status {
	case seating.StatusAbsent:
		return Outcome{Grade: GradeAbsent}
	case seating.StatusMalpractice:
		return Outcome{Grade: GradeMalpractice}
	case seating.StatusWithheld:
		return Outcome{Grade: GradeWithheld}
	}

	p := in.Policy
	cie := 0.0
	if in.CIE != nil {
		cie = math.Ceil(*in.CIE)
	}
	see := 0.0
	if in.SEE != nil {
		see = *in.SEE
	}

	internalOnly := p.MaxSEE == 0
	var scaled float64
	switch {
	case internalOnly:
		scaled = 0
	case p.MaxSEE == 50 && see > 50:
		// 100-mark paper carried at 50-mark weight.
		scaled = math.Ceil(see / 2)
	default:
		scaled = math.Ceil(see)
	}
	total := cie + scaled
	maxTotal := p.MaxCIE + p.MaxSEE

	var pass bool
	if internalOnly {
		pass = cie*100 >= minCIEPercent*p.MaxCIE
	} else {
		pass = cie >= percentCeil(minCIEPercent, p.MaxCIE) &&
			scaled >= percentCeil(minSEEPercent, p.MaxSEE) &&
			total >= percentCeil(minTotalPercent, maxTotal)
	}

	out := Outcome{ScaledSEE: scaled, Total: total, IsPass: pass}
	switch {
	case p.Credits == 0:
		out.Grade = GradeNotPass
		if pass {
			out.Grade = GradePass
		}
	case !pass:
		out.Grade = GradeF
	default:
		out.Grade, out.GradePoints = GradeP, 4
		for _, b := range bands {
			if total*100 >= b.percent*maxTotal {
				out.Grade, out.GradePoints = b.grade, b.points
				break
			}
		}
	}
	if pass {
		out.CreditsEarned = p.Credits
	}
	return out
}

func percentCeil(percent, max float64) float64 {
	return math.Ceil(percent * max / 100)
}

// Marks is a convenience for building optional raw marks.
func Marks(v float64) *float64 { return &v }
