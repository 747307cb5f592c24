package seating

import (
	"sort"
	"strings"
)

type Status string

const (
	StatusPresent     Status = "PRESENT"
	StatusAbsent      Status = "ABSENT"
	StatusMalpractice Status = "MALPRACTICE"
	StatusWithheld    Status = "WITHHELD"
)

// GeneralBranch is used when a student id is too short to carry a branch code.
const GeneralBranch = "GEN"

// Student is one roster row needing a seat in an exam session.
type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Branch     string `json:"branch"`
	CourseCode string `json:"course_code"`
}

type Room struct {
	Number   string `json:"room_no"`
	Block    string `json:"block_name,omitempty"`
	Capacity int    `json:"capacity"`
	Priority int    `json:"priority_order"`
}

// Assignment is the seat table row consumed by posters, attendance sheets and bundles.
type Assignment struct {
	RoomNumber string `json:"room_no"`
	SeatNumber int    `json:"seat_no"`
	StudentID  string `json:"student_id"`
	Name       string `json:"name"`
	Branch     string `json:"branch"`
	CourseCode string `json:"course_code"`
	Status     Status `json:"status"`
}

// BranchCode extracts the two-letter branch from a university seat number
// such as 1AM25CS001 (characters 6-7). ok is false when the id is too short
// and GeneralBranch was returned instead.
func BranchCode(id string) (code string, ok bool) {
	id = strings.TrimSpace(id)
	if len(id) <= 7 {
		return GeneralBranch, false
	}
	return strings.ToUpper(id[5:7]), true
}

// ParseStatus maps free-form status text to a Status; unknown text is PRESENT.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AB", "ABSENT":
		return StatusAbsent
	case "MP", "MAL", "MALPRACTICE":
		return StatusMalpractice
	case "WH", "WITHHELD":
		return StatusWithheld
	default:
		return StatusPresent
	}
}

// SortRooms orders rooms by priority then room number, the order allocation consumes them.
func SortRooms(rooms []Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Priority != rooms[j].Priority {
			return rooms[i].Priority < rooms[j].Priority
		}
		return rooms[i].Number < rooms[j].Number
	})
}

func TotalCapacity(rooms []Room) int {
	n := 0
	for _, r := range rooms {
		n += r.Capacity
	}
	return n
}
