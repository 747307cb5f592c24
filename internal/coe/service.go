// Package coe is the controller-of-examinations service: it drives the seating
// allocator, bundle coordinator and grading engine against persistent storage
// and gates each step on the exam cycle's phase.
package coe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-coe/internal/bundle"
	"github.com/mind-engage/mindengage-coe/internal/cycle"
	"github.com/mind-engage/mindengage-coe/internal/db"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/metrics"
	"github.com/mind-engage/mindengage-coe/internal/report"
	"github.com/mind-engage/mindengage-coe/internal/seating"
	"github.com/mind-engage/mindengage-coe/internal/storage"
)

var (
	ErrUnknownRoom    = errors.New("unknown room")
	ErrNoSeats        = errors.New("no seats allocated for session")
	ErrKeyMissing     = errors.New("master key not generated for session")
	ErrInvalidSession = errors.New("invalid session")
	ErrInvalidMaster  = errors.New("invalid master data")
)

type Option func(*Service)

func WithEngine(e *grading.Engine) Option { return func(s *Service) { s.engine = e } }

// WithBundleSize caps the scripts per evaluator bundle. Values outside
// 1..bundle.MaxBundleSize fall back to the maximum.
func WithBundleSize(n int) Option { return func(s *Service) { s.bundleSize = n } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithSeed fixes the pseudonym generator seed. Zero means a fresh random seed per run.
func WithSeed(seed int64) Option { return func(s *Service) { s.seed = seed } }

type Service struct {
	store      Store
	blobs      storage.BlobStore
	engine     *grading.Engine
	bundleSize int
	now        func() time.Time
	seed       int64
}

func NewService(st Store, blobs storage.BlobStore, opts ...Option) *Service {
	s := &Service{
		store:      st,
		blobs:      blobs,
		engine:     grading.NewEngine(),
		bundleSize: bundle.MaxBundleSize,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.bundleSize <= 0 || s.bundleSize > bundle.MaxBundleSize {
		s.bundleSize = bundle.MaxBundleSize
	}
	return s
}

func (s *Service) Engine() *grading.Engine { return s.engine }

/* ---------- master data ---------- */

func (s *Service) SaveRooms(ctx context.Context, rooms []seating.Room) error {
	clean := make([]seating.Room, 0, len(rooms))
	for _, r := range rooms {
		r.Number = strings.TrimSpace(r.Number)
		r.Block = strings.TrimSpace(r.Block)
		if r.Number == "" || r.Capacity <= 0 {
			return fmt.Errorf("%w: room %q capacity %d", ErrInvalidMaster, r.Number, r.Capacity)
		}
		clean = append(clean, r)
	}
	return s.store.UpsertRooms(ctx, clean)
}

func (s *Service) Rooms(ctx context.Context) ([]seating.Room, error) { return s.store.ListRooms(ctx) }

func (s *Service) SaveCourses(ctx context.Context, courses []grading.Policy) error {
	clean := make([]grading.Policy, 0, len(courses))
	for _, c := range courses {
		c.CourseCode = strings.ToUpper(strings.TrimSpace(c.CourseCode))
		if c.CourseCode == "" || c.Credits < 0 || c.MaxCIE < 0 || c.MaxSEE < 0 || c.MaxCIE+c.MaxSEE == 0 {
			return fmt.Errorf("%w: course %q", ErrInvalidMaster, c.CourseCode)
		}
		clean = append(clean, c)
	}
	return s.store.UpsertCourses(ctx, clean)
}

func (s *Service) Courses(ctx context.Context) ([]grading.Policy, error) {
	return s.store.ListCourses(ctx)
}

/* ---------- cycles ---------- */

func (s *Service) CreateCycle(ctx context.Context, name string) (cycle.Cycle, error) {
	c, err := cycle.New(name, s.now())
	if err != nil {
		return cycle.Cycle{}, err
	}
	if err := s.store.PutCycle(ctx, c); err != nil {
		return cycle.Cycle{}, err
	}
	s.emit(ctx, EvtCycleCreated, c.ID, map[string]any{"name": c.Name})
	return c, nil
}

func (s *Service) Cycle(ctx context.Context, id string) (cycle.Cycle, error) {
	return s.store.GetCycle(ctx, id)
}

func (s *Service) Cycles(ctx context.Context) ([]cycle.Cycle, error) { return s.store.ListCycles(ctx) }

func (s *Service) Advance(ctx context.Context, id string) (cycle.Cycle, error) {
	return s.movePhase(ctx, id, (*cycle.Cycle).Advance)
}

func (s *Service) Revert(ctx context.Context, id string) (cycle.Cycle, error) {
	return s.movePhase(ctx, id, (*cycle.Cycle).Revert)
}

func (s *Service) movePhase(ctx context.Context, id string, step func(*cycle.Cycle) error) (cycle.Cycle, error) {
	c, err := s.store.GetCycle(ctx, id)
	if err != nil {
		return cycle.Cycle{}, err
	}
	from := c.Phase
	if err := step(&c); err != nil {
		return cycle.Cycle{}, err
	}
	if err := s.store.PutCycle(ctx, c); err != nil {
		return cycle.Cycle{}, err
	}
	s.emit(ctx, EvtCyclePhase, c.ID, map[string]any{"from": int(from), "to": int(c.Phase)})
	return c, nil
}

// gate loads the cycle and checks that it has reached phase p.
func (s *Service) gate(ctx context.Context, cycleID string, p cycle.Phase) (cycle.Cycle, error) {
	c, err := s.store.GetCycle(ctx, cycleID)
	if err != nil {
		return cycle.Cycle{}, err
	}
	return c, c.Require(p)
}

/* ---------- seating ---------- */

// AllocationRun is the outcome of one seating run for a session.
type AllocationRun struct {
	RunID    string                    `json:"run_id"`
	Session  SessionKey                `json:"session"`
	Seats    []seating.Assignment      `json:"seats"`
	Summary  []seating.RoomCourseCount `json:"summary"`
	Warnings *report.Report            `json:"warnings"`
}

// Allocate seats the registered students of one session into the chosen rooms
// (all master rooms when roomNumbers is empty) and replaces any previous
// allocation for that session. Nothing is stored when allocation fails.
func (s *Service) Allocate(ctx context.Context, key SessionKey, regs []seating.Registration, roomNumbers []string) (AllocationRun, error) {
	key, err := s.session(key)
	if err != nil {
		return AllocationRun{}, err
	}
	if _, err := s.gate(ctx, key.CycleID, cycle.PhaseSeating); err != nil {
		return AllocationRun{}, err
	}
	rooms, err := s.selectRooms(ctx, roomNumbers)
	if err != nil {
		return AllocationRun{}, err
	}

	students, rep := seating.BuildRoster(regs)
	seats, err := seating.Allocate(students, rooms)
	if err != nil {
		var ce *seating.CapacityError
		if errors.As(err, &ce) {
			metrics.AllocationsRejected.Inc()
			log.Printf("coe: allocation rejected for %s: %v", key, err)
		}
		return AllocationRun{}, err
	}
	if err := s.store.ReplaceSeats(ctx, key, seats); err != nil {
		return AllocationRun{}, fmt.Errorf("store seats: %w", err)
	}

	run := AllocationRun{
		RunID:    uuid.NewString(),
		Session:  key,
		Seats:    seats,
		Summary:  seating.Summarize(seats),
		Warnings: rep,
	}
	metrics.SeatsAllocated.Add(float64(len(seats)))
	countWarnings(rep)
	s.emit(ctx, EvtSeatsAllocated, key.CycleID, map[string]any{
		"run_id": run.RunID, "session": key.String(), "seats": len(seats), "rooms": len(rooms),
		"malformed": rep.Count(report.MalformedIdentifier),
	})
	log.Printf("coe: allocated %d seats in %d rooms for %s (run %s)", len(seats), len(rooms), key, run.RunID)
	return run, nil
}

func (s *Service) selectRooms(ctx context.Context, numbers []string) ([]seating.Room, error) {
	all, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return all, nil
	}
	byNo := make(map[string]seating.Room, len(all))
	for _, r := range all {
		byNo[r.Number] = r
	}
	var out []seating.Room
	seen := map[string]bool{}
	for _, n := range numbers {
		n = strings.TrimSpace(n)
		r, ok := byNo[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, n)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, r)
		}
	}
	seating.SortRooms(out)
	return out, nil
}

func (s *Service) Seats(ctx context.Context, key SessionKey) ([]seating.Assignment, error) {
	key, err := s.session(key)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetCycle(ctx, key.CycleID); err != nil {
		return nil, err
	}
	return s.store.ListSeats(ctx, key)
}

func (s *Service) Summary(ctx context.Context, key SessionKey) ([]seating.RoomCourseCount, error) {
	seats, err := s.Seats(ctx, key)
	if err != nil {
		return nil, err
	}
	return seating.Summarize(seats), nil
}

// MarkAttendance records absentees and malpractice cases for a session. Ids
// that are not seated in the session are reported back, not rejected.
func (s *Service) MarkAttendance(ctx context.Context, key SessionKey, absent, malpractice []string) (seating.AttendanceResult, *report.Report, error) {
	seats, err := s.Seats(ctx, key)
	if err != nil {
		return seating.AttendanceResult{}, nil, err
	}
	if len(seats) == 0 {
		return seating.AttendanceResult{}, nil, fmt.Errorf("%w: %s", ErrNoSeats, key.Normalize())
	}
	res, rep := seating.MarkAttendance(seats, absent, malpractice)
	key = key.Normalize()
	if err := s.store.ReplaceSeats(ctx, key, seats); err != nil {
		return seating.AttendanceResult{}, nil, fmt.Errorf("store attendance: %w", err)
	}
	countWarnings(rep)
	s.emit(ctx, EvtAttendanceMarked, key.CycleID, map[string]any{
		"session": key.String(), "absent": res.Absent, "malpractice": res.Malpractice,
	})
	return res, rep, nil
}

/* ---------- bundles ---------- */

func sheetsBlobKey(k SessionKey) string {
	return path.Join("bundles", k.CycleID, k.Date+"_"+k.Slot+".json")
}

func masterKeyBlobKey(k SessionKey) string {
	return path.Join("keys", k.CycleID, k.Date+"_"+k.Slot+".json")
}

// GenerateBundles anonymizes the session's scripts into evaluator sheets and
// stores them together with the master key. Regenerating replaces both.
func (s *Service) GenerateBundles(ctx context.Context, key SessionKey) ([]bundle.Sheet, error) {
	key, err := s.session(key)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate(ctx, key.CycleID, cycle.PhaseLiveExam); err != nil {
		return nil, err
	}
	seats, err := s.store.ListSeats(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSeats, key)
	}

	sheets, mk := bundle.MakeBundlesSized(seats, s.bundleSize, bundle.NewRand(s.seed))
	if _, err := storage.PutJSON(s.blobs, masterKeyBlobKey(key), mk); err != nil {
		return nil, fmt.Errorf("store master key: %w", err)
	}
	if _, err := storage.PutJSON(s.blobs, sheetsBlobKey(key), sheets); err != nil {
		return nil, fmt.Errorf("store sheets: %w", err)
	}
	metrics.BundlesGenerated.Add(float64(len(sheets)))
	s.emit(ctx, EvtBundlesGenerated, key.CycleID, map[string]any{
		"session": key.String(), "bundles": len(sheets), "scripts": len(mk.Entries),
	})
	return sheets, nil
}

// Bundles returns the stored evaluator sheets of a session.
func (s *Service) Bundles(ctx context.Context, key SessionKey) ([]bundle.Sheet, error) {
	key, err := s.session(key)
	if err != nil {
		return nil, err
	}
	var sheets []bundle.Sheet
	if err := storage.GetJSON(s.blobs, sheetsBlobKey(key), &sheets); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("bundles %s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return sheets, nil
}

/* ---------- results ---------- */

// CIEEntry is one internal assessment mark.
type CIEEntry struct {
	StudentID  string  `json:"student_id"`
	CourseCode string  `json:"course_code"`
	CIE        float64 `json:"cie_marks"`
}

// EnterCIE upserts internal marks, leaving any SEE marks and grades in place.
func (s *Service) EnterCIE(ctx context.Context, cycleID string, entries []CIEEntry) (int, error) {
	if _, err := s.store.GetCycle(ctx, cycleID); err != nil {
		return 0, err
	}
	existing, err := s.resultIndex(ctx, cycleID)
	if err != nil {
		return 0, err
	}
	recs := make([]grading.Record, 0, len(entries))
	for _, e := range entries {
		r := existing.get(cycleID, e.StudentID, e.CourseCode)
		r.CIE = grading.Marks(e.CIE)
		recs = append(recs, r)
	}
	if err := s.store.UpsertResults(ctx, cycleID, recs); err != nil {
		return 0, err
	}
	s.emit(ctx, EvtCIEEntered, cycleID, map[string]any{"entries": len(recs)})
	return len(recs), nil
}

// DecodeRun summarizes one decode of filled bundles.
type DecodeRun struct {
	Session  SessionKey       `json:"session"`
	Decoded  []bundle.Decoded `json:"decoded"`
	Warnings *report.Report   `json:"warnings"`
}

// DecodeSEE maps filled evaluator sheets back to students through the
// session's master key and stores the raw SEE marks. Students whose scripts
// were locked (absent, malpractice, withheld) get their status recorded even
// when the evaluator left their rows off the returned sheet.
func (s *Service) DecodeSEE(ctx context.Context, key SessionKey, filled []bundle.FilledSheet) (DecodeRun, error) {
	key, err := s.session(key)
	if err != nil {
		return DecodeRun{}, err
	}
	if _, err := s.gate(ctx, key.CycleID, cycle.PhaseResults); err != nil {
		return DecodeRun{}, err
	}
	var mk bundle.Key
	if err := storage.GetJSON(s.blobs, masterKeyBlobKey(key), &mk); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DecodeRun{}, fmt.Errorf("%w: %s", ErrKeyMissing, key)
		}
		return DecodeRun{}, err
	}

	decoded, rep := bundle.Decode(mk, filled)
	decoded = withLocked(decoded, mk)

	existing, err := s.resultIndex(ctx, key.CycleID)
	if err != nil {
		return DecodeRun{}, err
	}
	recs := make([]grading.Record, 0, len(decoded))
	for _, d := range decoded {
		r := existing.get(key.CycleID, d.StudentID, d.CourseCode)
		r.SEE = grading.Marks(d.SEE)
		r.Status = d.Status
		recs = append(recs, r)
	}
	if err := s.store.UpsertResults(ctx, key.CycleID, recs); err != nil {
		return DecodeRun{}, err
	}

	metrics.EntriesDecoded.Add(float64(len(decoded)))
	countWarnings(rep)
	s.emit(ctx, EvtSEEDecoded, key.CycleID, map[string]any{
		"session": key.String(), "decoded": len(decoded),
		"unmatched": rep.Count(report.UnmatchedPseudonym), "mismatched": rep.Count(report.DecodeMismatch),
	})
	return DecodeRun{Session: key, Decoded: decoded, Warnings: rep}, nil
}

func withLocked(decoded []bundle.Decoded, mk bundle.Key) []bundle.Decoded {
	type sc struct{ student, course string }
	have := make(map[sc]bool, len(decoded))
	for _, d := range decoded {
		have[sc{d.StudentID, d.CourseCode}] = true
	}
	for _, e := range mk.Entries {
		if e.Status == "" || e.Status == seating.StatusPresent || have[sc{e.StudentID, e.CourseCode}] {
			continue
		}
		decoded = append(decoded, bundle.Decoded{
			StudentID: e.StudentID, CourseCode: e.CourseCode, RoomNumber: e.RoomNumber,
			BundleID: e.BundleID, Pseudonym: e.Pseudonym, Status: e.Status,
		})
	}
	return decoded
}

// GradeRun is the outcome of a bulk grading pass over a cycle.
type GradeRun struct {
	RunID    string           `json:"run_id"`
	CycleID  string           `json:"cycle_id"`
	Records  []grading.Record `json:"records"`
	Warnings *report.Report   `json:"warnings"`
}

// GradeCycle resolves course policies once and grades every stored result of
// the cycle. Courses missing from master data grade under the default policy
// and are reported.
func (s *Service) GradeCycle(ctx context.Context, cycleID string) (GradeRun, error) {
	if _, err := s.gate(ctx, cycleID, cycle.PhaseResults); err != nil {
		return GradeRun{}, err
	}
	recs, err := s.store.ListResults(ctx, cycleID)
	if err != nil {
		return GradeRun{}, err
	}
	table, rep, err := s.policies(ctx, recs)
	if err != nil {
		return GradeRun{}, err
	}
	s.engine.GradeAll(recs, table)
	if err := s.store.UpsertResults(ctx, cycleID, recs); err != nil {
		return GradeRun{}, fmt.Errorf("store grades: %w", err)
	}

	run := GradeRun{RunID: uuid.NewString(), CycleID: cycleID, Records: recs, Warnings: rep}
	metrics.RecordsGraded.WithLabelValues("bulk").Add(float64(len(recs)))
	countWarnings(rep)
	s.emit(ctx, EvtResultsGraded, cycleID, map[string]any{
		"run_id": run.RunID, "records": len(recs), "policy_misses": rep.Keys(report.PolicyLookupMiss),
	})
	log.Printf("coe: graded %d records for cycle %s (run %s, %d warnings)", len(recs), cycleID, run.RunID, len(rep.Entries))
	return run, nil
}

// Moderate applies a grace award to one result and re-grades it. A course
// missing from master data re-grades under the default policy and is reported.
func (s *Service) Moderate(ctx context.Context, cycleID, studentID, courseCode string, g grading.Grace) (grading.Record, *report.Report, error) {
	if _, err := s.gate(ctx, cycleID, cycle.PhaseResults); err != nil {
		return grading.Record{}, nil, err
	}
	studentID = strings.ToUpper(strings.TrimSpace(studentID))
	courseCode = strings.ToUpper(strings.TrimSpace(courseCode))
	rec, err := s.store.GetResult(ctx, cycleID, studentID, courseCode)
	if err != nil {
		return grading.Record{}, nil, err
	}
	table, rep, err := s.policies(ctx, []grading.Record{rec})
	if err != nil {
		return grading.Record{}, nil, err
	}
	before := rec.Grade
	out, err := s.engine.Moderate(rec, table.Lookup(courseCode), g)
	if err != nil {
		return grading.Record{}, nil, err
	}
	if err := s.store.UpsertResults(ctx, cycleID, []grading.Record{out}); err != nil {
		return grading.Record{}, nil, err
	}
	metrics.RecordsGraded.WithLabelValues("moderation").Inc()
	countWarnings(rep)
	s.emit(ctx, EvtResultModerated, cycleID, map[string]any{
		"student_id": studentID, "course_code": courseCode, "target": g.Target, "marks": g.Marks,
		"from": before, "to": out.Grade, "policy_misses": rep.Keys(report.PolicyLookupMiss),
	})
	return out, rep, nil
}

// Ledger aggregates the cycle's results per student. Courses without a
// policy row are reported the same way GradeCycle reports them.
func (s *Service) Ledger(ctx context.Context, cycleID string) ([]grading.LedgerRow, *report.Report, error) {
	if _, err := s.store.GetCycle(ctx, cycleID); err != nil {
		return nil, nil, err
	}
	recs, err := s.store.ListResults(ctx, cycleID)
	if err != nil {
		return nil, nil, err
	}
	table, rep, err := s.policies(ctx, recs)
	if err != nil {
		return nil, nil, err
	}
	return grading.Ledger(recs, table), rep, nil
}

func (s *Service) Events(ctx context.Context, cycleID string) ([]Event, error) {
	return s.store.ListEvents(ctx, cycleID)
}

func (s *Service) policies(ctx context.Context, recs []grading.Record) (grading.PolicyTable, *report.Report, error) {
	courses, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, nil, err
	}
	table, rep := grading.ResolvePolicies(recs, courses)
	return table, rep, nil
}

type resultIndex map[resultKey]grading.Record

func (s *Service) resultIndex(ctx context.Context, cycleID string) (resultIndex, error) {
	recs, err := s.store.ListResults(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	idx := make(resultIndex, len(recs))
	for _, r := range recs {
		idx[resultKey{cycleID, r.StudentID, r.CourseCode}] = r
	}
	return idx, nil
}

func (idx resultIndex) get(cycleID, studentID, courseCode string) grading.Record {
	studentID = strings.ToUpper(strings.TrimSpace(studentID))
	courseCode = strings.ToUpper(strings.TrimSpace(courseCode))
	if r, ok := idx[resultKey{cycleID, studentID, courseCode}]; ok {
		return r
	}
	return grading.Record{CycleID: cycleID, StudentID: studentID, CourseCode: courseCode, Status: seating.StatusPresent}
}

/* ---------- helpers ---------- */

func (s *Service) session(k SessionKey) (SessionKey, error) {
	k = k.Normalize()
	if k.CycleID == "" || k.Date == "" || k.Slot == "" {
		return k, fmt.Errorf("%w: %+v", ErrInvalidSession, k)
	}
	if _, err := time.Parse("2006-01-02", k.Date); err != nil {
		return k, fmt.Errorf("%w: date %q", ErrInvalidSession, k.Date)
	}
	return k, nil
}

// emit appends an audit event. Failures are logged and never fail the caller.
func (s *Service) emit(ctx context.Context, typ, key string, data map[string]any) {
	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("coe: event %s: %v", typ, err)
		return
	}
	if err := s.store.AppendEvent(ctx, Event{Type: typ, Key: key, DataJSON: string(b)}); err != nil {
		log.Printf("coe: event %s: %v", typ, err)
	}
}

func countWarnings(rep *report.Report) {
	if rep == nil {
		return
	}
	for kind, n := range rep.Counts() {
		metrics.Warnings.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// OpenStore returns the store for a configured driver: "memory" or a database/sql
// driver understood by db.Open.
func OpenStore(ctx context.Context, driver, dsn string) (Store, func() error, error) {
	if driver == "memory" {
		return NewInMemoryStore(), func() error { return nil }, nil
	}
	h, err := db.Open(ctx, db.Driver(driver), dsn)
	if err != nil {
		return nil, nil, err
	}
	return NewSQLStore(h, driver), h.Close, nil
}
