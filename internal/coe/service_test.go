package coe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-coe/internal/bundle"
	"github.com/mind-engage/mindengage-coe/internal/cycle"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/report"
	"github.com/mind-engage/mindengage-coe/internal/seating"
	"github.com/mind-engage/mindengage-coe/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.MemStore) {
	t.Helper()
	blobs := storage.NewMemStore()
	svc := NewService(NewInMemoryStore(), blobs,
		WithSeed(7),
		WithClock(func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }),
	)
	ctx := context.Background()
	require.NoError(t, svc.SaveRooms(ctx, []seating.Room{
		{Number: "101", Block: "A", Capacity: 4, Priority: 1},
		{Number: "102", Block: "A", Capacity: 4, Priority: 2},
	}))
	require.NoError(t, svc.SaveCourses(ctx, []grading.Policy{
		{CourseCode: "CS101", Title: "Programming", Credits: 4, MaxCIE: 50, MaxSEE: 50},
		{CourseCode: "EC101", Title: "Circuits", Credits: 3, MaxCIE: 50, MaxSEE: 50},
	}))
	return svc, blobs
}

func advanceTo(t *testing.T, svc *Service, id string, p cycle.Phase) {
	t.Helper()
	for {
		c, err := svc.Cycle(context.Background(), id)
		require.NoError(t, err)
		if c.Phase >= p {
			return
		}
		_, err = svc.Advance(context.Background(), id)
		require.NoError(t, err)
	}
}

func sessionRegs() []seating.Registration {
	return []seating.Registration{
		{StudentID: "1am25cs001", Name: "Asha", CourseCode: "cs101"},
		{StudentID: "1AM25CS002", Name: "Bala", CourseCode: "CS101"},
		{StudentID: "1AM25CS003", Name: "Chitra", CourseCode: "CS101"},
		{StudentID: "1AM25EC001", Name: "Deepa", CourseCode: "EC101"},
		{StudentID: "1AM25EC002", Name: "Esha", CourseCode: "EC101"},
		{StudentID: "BAD1", Name: "Farah", CourseCode: "CS101"},
	}
}

func TestExamSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newTestService(t)

	c, err := svc.CreateCycle(ctx, "UG Odd 2026")
	require.NoError(t, err)
	key := SessionKey{CycleID: c.ID, Date: "2026-05-04", Slot: "fn"}

	_, err = svc.Allocate(ctx, key, sessionRegs(), nil)
	require.ErrorIs(t, err, cycle.ErrPhaseNotReached)

	advanceTo(t, svc, c.ID, cycle.PhaseSeating)
	run, err := svc.Allocate(ctx, key, sessionRegs(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, "FN", run.Session.Slot)
	assert.Len(t, run.Seats, 6)
	assert.Equal(t, []string{"BAD1"}, run.Warnings.Keys(report.MalformedIdentifier))

	seats, err := svc.Seats(ctx, key)
	require.NoError(t, err)
	require.Len(t, seats, 6)
	assert.Equal(t, "101", seats[0].RoomNumber)
	assert.Equal(t, 1, seats[0].SeatNumber)

	res, rep, err := svc.MarkAttendance(ctx, key, []string{"1am25ec002", "1AM25ME999"}, []string{"1AM25CS003"})
	require.NoError(t, err)
	assert.Equal(t, seating.AttendanceResult{Absent: 1, Malpractice: 1}, res)
	assert.Equal(t, []string{"1AM25ME999"}, rep.Keys(report.UnknownAttendanceID))

	_, err = svc.GenerateBundles(ctx, key)
	require.ErrorIs(t, err, cycle.ErrPhaseNotReached)

	advanceTo(t, svc, c.ID, cycle.PhaseLiveExam)
	sheets, err := svc.GenerateBundles(ctx, key)
	require.NoError(t, err)
	rows, locked := 0, 0
	for _, sh := range sheets {
		for _, r := range sh.Rows {
			rows++
			if r.Locked {
				locked++
			}
		}
	}
	assert.Equal(t, 6, rows)
	assert.Equal(t, 2, locked)

	stored, err := svc.Bundles(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sheets, stored)

	var mk bundle.Key
	require.NoError(t, storage.GetJSON(blobs, masterKeyBlobKey(key.Normalize()), &mk))
	require.Len(t, mk.Entries, 6)

	_, err = svc.DecodeSEE(ctx, key, nil)
	require.ErrorIs(t, err, cycle.ErrPhaseNotReached)
	advanceTo(t, svc, c.ID, cycle.PhaseResults)

	// Evaluators return only the unlocked rows, one stray code included.
	var filled []bundle.FilledSheet
	stray := false
	for _, sh := range sheets {
		fs := bundle.FilledSheet{BundleID: sh.BundleID}
		for _, r := range sh.Rows {
			if !r.Locked {
				fs.Rows = append(fs.Rows, bundle.FilledRow{Pseudonym: r.Pseudonym, Value: "40"})
			}
		}
		if len(fs.Rows) > 0 && !stray {
			fs.Rows = append(fs.Rows, bundle.FilledRow{Pseudonym: "ZZ99X", Value: "12"})
			stray = true
		}
		filled = append(filled, fs)
	}
	dec, err := svc.DecodeSEE(ctx, key, filled)
	require.NoError(t, err)
	assert.Len(t, dec.Decoded, 6)
	assert.Equal(t, []string{"ZZ99X"}, dec.Warnings.Keys(report.UnmatchedPseudonym))

	var cie []CIEEntry
	for _, r := range sessionRegs() {
		cie = append(cie, CIEEntry{StudentID: r.StudentID, CourseCode: r.CourseCode, CIE: 30})
	}
	cie = append(cie, CIEEntry{StudentID: "1AM25CS001", CourseCode: "XX999", CIE: 40})
	n, err := svc.EnterCIE(ctx, c.ID, cie)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	graded, err := svc.GradeCycle(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, graded.Records, 7)
	assert.Equal(t, []string{"XX999"}, graded.Warnings.Keys(report.PolicyLookupMiss))

	byKey := map[string]grading.Record{}
	for _, r := range graded.Records {
		byKey[r.StudentID+"/"+r.CourseCode] = r
	}
	assert.Equal(t, grading.GradeA, byKey["1AM25CS001/CS101"].Grade)
	assert.Equal(t, 70.0, byKey["1AM25CS001/CS101"].Total)
	assert.Equal(t, grading.GradeNotPass, byKey["1AM25CS001/XX999"].Grade)
	assert.Equal(t, grading.GradeAbsent, byKey["1AM25EC002/EC101"].Grade)
	assert.Equal(t, grading.GradeMalpractice, byKey["1AM25CS003/CS101"].Grade)
	assert.Equal(t, grading.GradeA, byKey["BAD1/CS101"].Grade)

	mod, modRep, err := svc.Moderate(ctx, c.ID, " 1am25ec001", "ec101 ", grading.Grace{Target: grading.GraceSEE, Marks: 5})
	require.NoError(t, err)
	assert.Equal(t, "1AM25EC001", mod.StudentID)
	assert.Equal(t, 45.0, *mod.SEE)
	assert.Equal(t, 75.0, mod.Total)
	assert.True(t, modRep.Empty())

	_, _, err = svc.Moderate(ctx, c.ID, "1AM25EC001", "EC101", grading.Grace{Target: grading.GraceSEE, Marks: 11})
	assert.ErrorIs(t, err, grading.ErrInvalidGrace)
	_, _, err = svc.Moderate(ctx, c.ID, "1AM25XX000", "EC101", grading.Grace{Target: grading.GraceSEE, Marks: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	ledger, ledgerRep, err := svc.Ledger(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"XX999"}, ledgerRep.Keys(report.PolicyLookupMiss))
	require.NotEmpty(t, ledger)
	assert.Equal(t, "1AM25CS001", ledger[0].StudentID)
	assert.Equal(t, 8.0, ledger[0].SGPA)
	assert.False(t, ledger[0].Passed)

	events, err := svc.Events(ctx, c.ID)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, EvtCycleCreated, types[0])
	assert.Contains(t, types, EvtSeatsAllocated)
	assert.Contains(t, types, EvtBundlesGenerated)
	assert.Contains(t, types, EvtSEEDecoded)
	assert.Contains(t, types, EvtResultsGraded)
	assert.Contains(t, types, EvtResultModerated)
}

func TestModerateUnknownCourseReportsPolicyMiss(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c, err := svc.CreateCycle(ctx, "UG Even 2026")
	require.NoError(t, err)
	advanceTo(t, svc, c.ID, cycle.PhaseResults)

	_, err = svc.EnterCIE(ctx, c.ID, []CIEEntry{{StudentID: "1AM25CS001", CourseCode: "ZZ404", CIE: 30}})
	require.NoError(t, err)

	out, rep, err := svc.Moderate(ctx, c.ID, "1AM25CS001", "ZZ404", grading.Grace{Target: grading.GraceSEE, Marks: 5})
	require.NoError(t, err)
	assert.Equal(t, "ZZ404", out.CourseCode)
	assert.Equal(t, []string{"ZZ404"}, rep.Keys(report.PolicyLookupMiss))

	rows, rep, err := svc.Ledger(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{"ZZ404"}, rep.Keys(report.PolicyLookupMiss))

	_, _, err = svc.Ledger(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllocateCapacityLeavesPreviousSeats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c, err := svc.CreateCycle(ctx, "Supplementary")
	require.NoError(t, err)
	advanceTo(t, svc, c.ID, cycle.PhaseSeating)
	key := SessionKey{CycleID: c.ID, Date: "2026-05-05", Slot: "AN"}

	_, err = svc.Allocate(ctx, key, sessionRegs(), nil)
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, key, sessionRegs(), []string{"102"})
	var ce *seating.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 6, ce.Students)
	assert.Equal(t, 4, ce.Capacity)

	seats, err := svc.Seats(ctx, key)
	require.NoError(t, err)
	assert.Len(t, seats, 6)
}

func TestAllocateUnknownRoomAndBadSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c, err := svc.CreateCycle(ctx, "PG")
	require.NoError(t, err)
	advanceTo(t, svc, c.ID, cycle.PhaseSeating)

	_, err = svc.Allocate(ctx, SessionKey{CycleID: c.ID, Date: "2026-05-05", Slot: "FN"}, sessionRegs(), []string{"999"})
	assert.ErrorIs(t, err, ErrUnknownRoom)

	_, err = svc.Allocate(ctx, SessionKey{CycleID: c.ID, Date: "05/05/2026", Slot: "FN"}, sessionRegs(), nil)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = svc.Allocate(ctx, SessionKey{CycleID: "nope", Date: "2026-05-05", Slot: "FN"}, sessionRegs(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttendanceAndDecodeNeedPriorSteps(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c, err := svc.CreateCycle(ctx, "UG Even")
	require.NoError(t, err)
	key := SessionKey{CycleID: c.ID, Date: "2026-05-06", Slot: "FN"}

	_, _, err = svc.MarkAttendance(ctx, key, []string{"1AM25CS001"}, nil)
	assert.ErrorIs(t, err, ErrNoSeats)

	advanceTo(t, svc, c.ID, cycle.PhaseResults)
	_, err = svc.DecodeSEE(ctx, key, []bundle.FilledSheet{{Rows: []bundle.FilledRow{{Pseudonym: "AB12", Value: "30"}}}})
	assert.ErrorIs(t, err, ErrKeyMissing)
}

func TestSaveMasterDataValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.SaveRooms(ctx, []seating.Room{{Number: "103", Capacity: 0}}), ErrInvalidMaster)
	assert.ErrorIs(t, svc.SaveCourses(ctx, []grading.Policy{{CourseCode: "ZZ1", MaxCIE: 0, MaxSEE: 0}}), ErrInvalidMaster)

	courses, err := svc.Courses(ctx)
	require.NoError(t, err)
	assert.Len(t, courses, 2)
}

func TestRevertStopsAtInitiation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c, err := svc.CreateCycle(ctx, "Make-up")
	require.NoError(t, err)
	_, err = svc.Revert(ctx, c.ID)
	assert.ErrorIs(t, err, cycle.ErrPhaseBounds)

	c, err = svc.Advance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, cycle.PhaseInitiation+1, c.Phase)
}
