package seating

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stu(branch string, n int, course string) Student {
	id := fmt.Sprintf("1AM25%s%03d", branch, n)
	return Student{ID: id, Name: "Student " + id, Branch: branch, CourseCode: course}
}

func seatsOf(as []Assignment) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = fmt.Sprintf("%s/%d/%s", a.RoomNumber, a.SeatNumber, a.StudentID)
	}
	return out
}

func TestAllocateThreeBranchesTwoRooms(t *testing.T) {
	students := []Student{
		stu("ME", 2, "21ME31"), stu("CS", 3, "21CS31"), stu("EC", 1, "21EC31"),
		stu("CS", 1, "21CS31"), stu("ME", 1, "21ME31"), stu("EC", 3, "21EC31"),
		stu("CS", 4, "21CS31"), stu("EC", 2, "21EC31"), stu("CS", 2, "21CS31"),
	}
	rooms := []Room{{Number: "101", Capacity: 6}, {Number: "102", Capacity: 4}}

	got, err := Allocate(students, rooms)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"101/1/1AM25CS001", "101/2/1AM25EC001",
		"101/3/1AM25CS002", "101/4/1AM25EC002",
		"101/5/1AM25CS003", "101/6/1AM25EC003",
		"102/1/1AM25CS004", "102/2/1AM25ME002",
		"102/3/1AM25ME001",
	}, seatsOf(got))

	for i := 1; i < 6; i++ {
		assert.NotEqual(t, got[i-1].Branch, got[i].Branch, "seats %d and %d share a branch", i, i+1)
	}
	for _, a := range got {
		assert.Equal(t, StatusPresent, a.Status)
	}
}

func TestAllocatePrefersPartnerWithDifferentCourse(t *testing.T) {
	students := []Student{
		stu("CS", 1, "21XX31"), stu("CS", 2, "21XX31"), stu("CS", 3, "21XX31"),
		stu("EC", 1, "21XX31"), stu("EC", 2, "21XX31"), stu("EC", 3, "21XX31"),
		stu("ME", 1, "21ME31"), stu("ME", 2, "21ME31"),
	}
	got, err := Allocate(students, []Room{{Number: "A1", Capacity: 4}, {Number: "A2", Capacity: 4}})
	require.NoError(t, err)

	// CS and EC tie on size; CS wins lexically and ME is chosen over EC for the
	// right pile because its head sits a different course.
	assert.Equal(t, []string{"1AM25CS001", "1AM25ME001", "1AM25CS002", "1AM25ME002"},
		ids(got[:4]))
}

func ids(as []Assignment) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.StudentID
	}
	return out
}

func TestAllocateCoverageAndCapacity(t *testing.T) {
	var students []Student
	branches := []string{"CS", "EC", "ME", "CV", "IS"}
	courses := []string{"21MAT31", "21MAT31", "21ME32", "21CV33", "21CS34"}
	for bi, b := range branches {
		for n := 1; n <= 7+bi*3; n++ {
			students = append(students, stu(b, n, courses[bi]))
		}
	}
	rooms := []Room{
		{Number: "201", Capacity: 15},
		{Number: "202", Capacity: 9},
		{Number: "203", Capacity: 20},
		{Number: "204", Capacity: 30},
		{Number: "205", Capacity: 30},
	}
	got, err := Allocate(students, rooms)
	require.NoError(t, err)
	require.Len(t, got, len(students))

	seen := map[string]int{}
	perRoom := map[string][]int{}
	for _, a := range got {
		seen[a.StudentID]++
		perRoom[a.RoomNumber] = append(perRoom[a.RoomNumber], a.SeatNumber)
	}
	for _, s := range students {
		assert.Equal(t, 1, seen[s.ID], "student %s", s.ID)
	}
	for _, r := range rooms {
		seats := perRoom[r.Number]
		assert.LessOrEqual(t, len(seats), r.Capacity, "room %s", r.Number)
		for i, n := range seats {
			assert.Equal(t, i+1, n, "room %s seats not contiguous", r.Number)
		}
	}
}

func TestAllocateDeterministic(t *testing.T) {
	students := []Student{
		stu("CS", 1, "A"), stu("EC", 1, "B"), stu("CS", 2, "A"), stu("ME", 1, "C"),
		stu("EC", 2, "B"), stu("ME", 2, "C"), stu("CS", 3, "A"),
	}
	rooms := []Room{{Number: "1", Capacity: 3}, {Number: "2", Capacity: 5}}

	first, err := Allocate(students, rooms)
	require.NoError(t, err)

	reversed := make([]Student, len(students))
	for i, s := range students {
		reversed[len(students)-1-i] = s
	}
	for i := 0; i < 5; i++ {
		again, err := Allocate(reversed, rooms)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAllocateCapacityError(t *testing.T) {
	students := []Student{stu("CS", 1, "A"), stu("CS", 2, "A"), stu("EC", 1, "B")}

	got, err := Allocate(students, []Room{{Number: "1", Capacity: 2}})
	var ce *CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Nil(t, got)
	assert.Equal(t, 3, ce.Students)
	assert.Equal(t, 2, ce.Capacity)

	_, err = Allocate(students, nil)
	require.True(t, errors.As(err, &ce))

	_, err = Allocate(students, []Room{{Number: "1", Capacity: 10}, {Number: "2", Capacity: 0}})
	require.True(t, errors.As(err, &ce))
}

func TestAllocateRejectsDuplicates(t *testing.T) {
	_, err := Allocate([]Student{stu("CS", 1, "A"), stu("CS", 1, "A")}, []Room{{Number: "1", Capacity: 4}})
	assert.ErrorIs(t, err, ErrDuplicateStudent)
}

func TestAllocateSingleBranchAndLeftoverRooms(t *testing.T) {
	students := []Student{stu("CS", 1, "A"), stu("CS", 2, "A"), stu("CS", 3, "A")}
	got, err := Allocate(students, []Room{{Number: "1", Capacity: 5}, {Number: "2", Capacity: 5}})
	require.NoError(t, err)

	// Only one branch: the right pile falls back to the left branch and the
	// second room stays unused.
	assert.Equal(t, []string{"1/1/1AM25CS001", "1/2/1AM25CS003", "1/3/1AM25CS002"}, seatsOf(got))
}

func TestAllocateOddCapacityRoom(t *testing.T) {
	students := []Student{stu("CS", 1, "A"), stu("CS", 2, "A"), stu("EC", 1, "B"), stu("EC", 2, "B"), stu("EC", 3, "B")}
	got, err := Allocate(students, []Room{{Number: "1", Capacity: 5}})
	require.NoError(t, err)

	// half = 2 from EC (largest), remaining 3 from CS then EC.
	assert.Equal(t, []string{"1AM25EC001", "1AM25CS001", "1AM25EC002", "1AM25CS002", "1AM25EC003"}, ids(got))
}

func TestAllocateEmptyRoster(t *testing.T) {
	got, err := Allocate(nil, []Room{{Number: "1", Capacity: 5}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBranchCode(t *testing.T) {
	b, ok := BranchCode("1am25cs001")
	assert.True(t, ok)
	assert.Equal(t, "CS", b)

	b, ok = BranchCode("1AM25CS")
	assert.False(t, ok)
	assert.Equal(t, GeneralBranch, b)
}
