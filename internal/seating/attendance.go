package seating

import (
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-coe/internal/report"
)

type AttendanceResult struct {
	Absent      int `json:"absent"`
	Malpractice int `json:"malpractice"`
}

// MarkAttendance resets every seat to PRESENT and then applies the absentee and
// malpractice lists. A student on both lists is recorded as MALPRACTICE. Ids
// not present in the allocation are reported, not rejected.
func MarkAttendance(seats []Assignment, absent, malpractice []string) (AttendanceResult, *report.Report) {
	rep := report.New()
	idx := make(map[string][]int, len(seats))
	for i := range seats {
		seats[i].Status = StatusPresent
		idx[seats[i].StudentID] = append(idx[seats[i].StudentID], i)
	}

	apply := func(ids []string, st Status) {
		for _, raw := range ids {
			id := strings.ToUpper(strings.TrimSpace(raw))
			if id == "" {
				continue
			}
			pos, ok := idx[id]
			if !ok {
				rep.Add(report.UnknownAttendanceID, id, "not seated in this session ("+string(st)+")")
				continue
			}
			for _, i := range pos {
				seats[i].Status = st
			}
		}
	}
	apply(absent, StatusAbsent)
	apply(malpractice, StatusMalpractice)

	var res AttendanceResult
	for _, s := range seats {
		switch s.Status {
		case StatusAbsent:
			res.Absent++
		case StatusMalpractice:
			res.Malpractice++
		}
	}
	return res, rep
}

// SplitIDs splits a comma or newline separated id list as typed by an invigilator.
func SplitIDs(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

type RoomCourseCount struct {
	RoomNumber string `json:"room_no"`
	CourseCode string `json:"course_code"`
	Count      int    `json:"count"`
}

// Summarize counts seats per (room, course), ordered by room then course.
func Summarize(seats []Assignment) []RoomCourseCount {
	type key struct{ room, course string }
	counts := map[key]int{}
	for _, s := range seats {
		counts[key{s.RoomNumber, s.CourseCode}]++
	}
	out := make([]RoomCourseCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, RoomCourseCount{RoomNumber: k.room, CourseCode: k.course, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomNumber != out[j].RoomNumber {
			return out[i].RoomNumber < out[j].RoomNumber
		}
		return out[i].CourseCode < out[j].CourseCode
	})
	return out
}
