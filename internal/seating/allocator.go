package seating

import (
	"errors"
	"fmt"
	"sort"
)

// CapacityError rejects an allocation that cannot seat everyone. No seats are
// produced when it is returned.
type CapacityError struct {
	Students int
	Capacity int
	Rooms    int
	Reason   string
}

func (e *CapacityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("seating: %s", e.Reason)
	}
	return fmt.Sprintf("seating: %d students exceed capacity %d across %d rooms", e.Students, e.Capacity, e.Rooms)
}

var ErrDuplicateStudent = errors.New("seating: duplicate student in roster")

// Allocate seats students room by room in the order given. Each room's first
// half is filled from the largest branch and the rest from a partner branch
// whose head student sits a different course where possible; the two piles are
// interleaved so neighbouring seats come from different branches.
//
// Failures are a *CapacityError, or ErrDuplicateStudent when a student id
// appears twice; BuildRoster output never triggers the latter.
func Allocate(students []Student, rooms []Room) ([]Assignment, error) {
	if len(rooms) == 0 {
		return nil, &CapacityError{Students: len(students), Reason: "no rooms supplied"}
	}
	for _, r := range rooms {
		if r.Capacity <= 0 {
			return nil, &CapacityError{Students: len(students), Rooms: len(rooms),
				Reason: fmt.Sprintf("room %s has non-positive capacity %d", r.Number, r.Capacity)}
		}
	}
	if capTotal := TotalCapacity(rooms); capTotal < len(students) {
		return nil, &CapacityError{Students: len(students), Capacity: capTotal, Rooms: len(rooms)}
	}

	qs, err := newQueues(students)
	if err != nil {
		return nil, err
	}

	out := make([]Assignment, 0, len(students))
	left := qs.largest("")
	right := ""
	if left != "" {
		right = qs.partner(left)
	}

	for _, room := range rooms {
		if qs.empty() {
			break
		}
		half := room.Capacity / 2

		pileL := make([]Student, 0, half)
		for len(pileL) < half {
			if left == "" || qs.size(left) == 0 {
				left = qs.largest(right)
			}
			if left == "" {
				left = qs.largest("")
			}
			if left == "" {
				break
			}
			pileL = append(pileL, qs.take(left, half-len(pileL))...)
		}

		want := room.Capacity - len(pileL)
		pileR := make([]Student, 0, want)
		for len(pileR) < want {
			if right == "" || qs.size(right) == 0 {
				right = qs.partner(left)
			}
			target := right
			if target == "" {
				target = left
			}
			if target == "" || qs.size(target) == 0 {
				target = qs.largest("")
			}
			if target == "" {
				break
			}
			pileR = append(pileR, qs.take(target, want-len(pileR))...)
		}

		seat := 0
		for i := 0; i < len(pileL) || i < len(pileR); i++ {
			if i < len(pileL) {
				seat++
				out = append(out, seatRow(room, seat, pileL[i]))
			}
			if i < len(pileR) {
				seat++
				out = append(out, seatRow(room, seat, pileR[i]))
			}
		}
	}
	return out, nil
}

func seatRow(room Room, seat int, s Student) Assignment {
	return Assignment{
		RoomNumber: room.Number,
		SeatNumber: seat,
		StudentID:  s.ID,
		Name:       s.Name,
		Branch:     s.Branch,
		CourseCode: s.CourseCode,
		Status:     StatusPresent,
	}
}

// queues holds one id-ordered queue per branch; branches is sorted so that
// every scan breaks size ties by branch code.
type queues struct {
	branches []string
	q        map[string][]Student
}

func newQueues(students []Student) (*queues, error) {
	qs := &queues{q: map[string][]Student{}}
	seen := make(map[string]struct{}, len(students))
	for _, s := range students {
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStudent, s.ID)
		}
		seen[s.ID] = struct{}{}
		b := s.Branch
		if b == "" {
			b, _ = BranchCode(s.ID)
			s.Branch = b
		}
		if _, ok := qs.q[b]; !ok {
			qs.branches = append(qs.branches, b)
		}
		qs.q[b] = append(qs.q[b], s)
	}
	sort.Strings(qs.branches)
	for _, b := range qs.branches {
		list := qs.q[b]
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return qs, nil
}

func (qs *queues) size(b string) int { return len(qs.q[b]) }

func (qs *queues) empty() bool {
	for _, b := range qs.branches {
		if len(qs.q[b]) > 0 {
			return false
		}
	}
	return true
}

func (qs *queues) take(b string, n int) []Student {
	list := qs.q[b]
	if n > len(list) {
		n = len(list)
	}
	head := list[:n:n]
	qs.q[b] = list[n:]
	return head
}

// largest returns the non-empty branch with most students left, skipping
// exclude; "" when none qualifies.
func (qs *queues) largest(exclude string) string {
	return qs.pick(func(b string) bool { return b != exclude })
}

// partner picks the right-hand branch for left: a different branch whose
// head student sits a different course if one exists, else any other branch.
func (qs *queues) partner(left string) string {
	other := func(b string) bool { return b != left }
	if left == "" || qs.size(left) == 0 {
		return qs.pick(other)
	}
	leftCourse := qs.q[left][0].CourseCode
	if b := qs.pick(func(b string) bool {
		return b != left && qs.q[b][0].CourseCode != leftCourse
	}); b != "" {
		return b
	}
	return qs.pick(other)
}

func (qs *queues) pick(ok func(string) bool) string {
	best, bestN := "", 0
	for _, b := range qs.branches {
		n := len(qs.q[b])
		if n == 0 || !ok(b) {
			continue
		}
		if n > bestN {
			best, bestN = b, n
		}
	}
	return best
}
