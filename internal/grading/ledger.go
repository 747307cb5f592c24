package grading

import (
	"math"
	"sort"
)

// LedgerRow is one student's line in the cycle result ledger.
type LedgerRow struct {
	StudentID        string   `json:"student_id"`
	Courses          []Record `json:"courses"`
	CreditsAttempted float64  `json:"credits_attempted"`
	CreditsEarned    float64  `json:"credits_earned"`
	SGPA             float64  `json:"sgpa"`
	Passed           bool     `json:"passed"`
}

// Ledger groups graded records by student and computes SGPA as the credit
// weighted mean of grade points over every attempted course.
func Ledger(records []Record, table PolicyTable) []LedgerRow {
	byStudent := map[string]*LedgerRow{}
	var order []string
	for _, r := range records {
		row, ok := byStudent[r.StudentID]
		if !ok {
			row = &LedgerRow{StudentID: r.StudentID, Passed: true}
			byStudent[r.StudentID] = row
			order = append(order, r.StudentID)
		}
		credits := table.Lookup(r.CourseCode).Credits
		row.Courses = append(row.Courses, r)
		row.CreditsAttempted += credits
		row.CreditsEarned += r.CreditsEarned
		row.SGPA += float64(r.GradePoints) * credits
		if !r.IsPass {
			row.Passed = false
		}
	}
	sort.Strings(order)

	out := make([]LedgerRow, 0, len(order))
	for _, id := range order {
		row := byStudent[id]
		if row.CreditsAttempted > 0 {
			row.SGPA = math.Round(row.SGPA/row.CreditsAttempted*100) / 100
		} else {
			row.SGPA = 0
		}
		sort.Slice(row.Courses, func(i, j int) bool { return row.Courses[i].CourseCode < row.Courses[j].CourseCode })
		out = append(out, *row)
	}
	return out
}
