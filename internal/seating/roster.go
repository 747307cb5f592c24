package seating

import (
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-coe/internal/report"
)

// Registration is a (student, course) row for an exam session joined with the
// student's name from the master roster.
type Registration struct {
	StudentID  string `json:"student_id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
}

// BuildRoster normalizes registrations into seating students, deriving each
// branch from the id. Ids too short to carry a branch are seated under
// GeneralBranch and recorded in the report. Rows for the same student are
// collapsed to the first one, since a student sits one paper per session.
func BuildRoster(regs []Registration) ([]Student, *report.Report) {
	rep := report.New()
	seen := map[string]struct{}{}
	out := make([]Student, 0, len(regs))
	for _, r := range regs {
		id := strings.ToUpper(strings.TrimSpace(r.StudentID))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		branch, ok := BranchCode(id)
		if !ok {
			rep.Add(report.MalformedIdentifier, id, "branch defaulted to "+GeneralBranch)
		}
		out = append(out, Student{
			ID:         id,
			Name:       strings.TrimSpace(r.Name),
			Branch:     branch,
			CourseCode: strings.ToUpper(strings.TrimSpace(r.CourseCode)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, rep
}
