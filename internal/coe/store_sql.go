package coe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-coe/internal/cycle"
	"github.com/mind-engage/mindengage-coe/internal/db"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/seating"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	siteID string
}

func NewSQLStore(dbh *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: dbh, driver: driver, siteID: "local"}
}

func (s *SQLStore) UpsertRooms(ctx context.Context, rooms []seating.Room) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, r := range rooms {
			_, err := tx.ExecContext(ctx, `INSERT INTO rooms (room_no,block_name,capacity,priority_order)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (room_no) DO UPDATE SET block_name=EXCLUDED.block_name, capacity=EXCLUDED.capacity, priority_order=EXCLUDED.priority_order`,
				r.Number, r.Block, r.Capacity, r.Priority)
			if err != nil {
				return fmt.Errorf("upsert room %s: %w", r.Number, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) ListRooms(ctx context.Context) ([]seating.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_no,block_name,capacity,priority_order FROM rooms ORDER BY priority_order, room_no`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []seating.Room{}
	for rows.Next() {
		var r seating.Room
		if err := rows.Scan(&r.Number, &r.Block, &r.Capacity, &r.Priority); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertCourses(ctx context.Context, courses []grading.Policy) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, c := range courses {
			_, err := tx.ExecContext(ctx, `INSERT INTO courses (course_code,title,credits,max_cie,max_see)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (course_code) DO UPDATE SET title=EXCLUDED.title, credits=EXCLUDED.credits, max_cie=EXCLUDED.max_cie, max_see=EXCLUDED.max_see`,
				c.CourseCode, c.Title, c.Credits, c.MaxCIE, c.MaxSEE)
			if err != nil {
				return fmt.Errorf("upsert course %s: %w", c.CourseCode, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) ListCourses(ctx context.Context) ([]grading.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT course_code,title,credits,max_cie,max_see FROM courses ORDER BY course_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []grading.Policy{}
	for rows.Next() {
		var p grading.Policy
		if err := rows.Scan(&p.CourseCode, &p.Title, &p.Credits, &p.MaxCIE, &p.MaxSEE); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutCycle(ctx context.Context, c cycle.Cycle) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO exam_cycles (cycle_id,name,status_code,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (cycle_id) DO UPDATE SET name=EXCLUDED.name, status_code=EXCLUDED.status_code`,
		c.ID, c.Name, int(c.Phase), c.CreatedAt.Unix())
	return err
}

func (s *SQLStore) GetCycle(ctx context.Context, id string) (cycle.Cycle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT cycle_id,name,status_code,created_at FROM exam_cycles WHERE cycle_id=$1`, id)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cycle.Cycle{}, fmt.Errorf("cycle %s: %w", id, ErrNotFound)
	}
	return c, err
}

func (s *SQLStore) ListCycles(ctx context.Context) ([]cycle.Cycle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cycle_id,name,status_code,created_at FROM exam_cycles ORDER BY created_at DESC, cycle_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []cycle.Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanCycle(sc scanner) (cycle.Cycle, error) {
	var c cycle.Cycle
	var phase int
	var created int64
	if err := sc.Scan(&c.ID, &c.Name, &phase, &created); err != nil {
		return cycle.Cycle{}, err
	}
	c.Phase = cycle.Phase(phase)
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

func (s *SQLStore) ReplaceSeats(ctx context.Context, key SessionKey, seats []seating.Assignment) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM seat_assignments WHERE cycle_id=$1 AND exam_date=$2 AND session=$3`,
			key.CycleID, key.Date, key.Slot); err != nil {
			return err
		}
		for _, a := range seats {
			_, err := tx.ExecContext(ctx, `INSERT INTO seat_assignments
				(cycle_id,exam_date,session,room_no,seat_no,usn,full_name,branch,course_code,status)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				key.CycleID, key.Date, key.Slot, a.RoomNumber, a.SeatNumber, a.StudentID, a.Name, a.Branch, a.CourseCode, string(a.Status))
			if err != nil {
				return fmt.Errorf("insert seat %s/%d: %w", a.RoomNumber, a.SeatNumber, err)
			}
		}
		return nil
	})
}

// ListSeats returns the session's seats in room order (by room priority) then seat number.
func (s *SQLStore) ListSeats(ctx context.Context, key SessionKey) ([]seating.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sa.room_no,sa.seat_no,sa.usn,sa.full_name,sa.branch,sa.course_code,sa.status
		FROM seat_assignments sa LEFT JOIN rooms r ON r.room_no = sa.room_no
		WHERE sa.cycle_id=$1 AND sa.exam_date=$2 AND sa.session=$3
		ORDER BY COALESCE(r.priority_order, 0), sa.room_no, sa.seat_no`,
		key.CycleID, key.Date, key.Slot)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []seating.Assignment{}
	for rows.Next() {
		var a seating.Assignment
		var st string
		if err := rows.Scan(&a.RoomNumber, &a.SeatNumber, &a.StudentID, &a.Name, &a.Branch, &a.CourseCode, &st); err != nil {
			return nil, err
		}
		a.Status = seating.Status(st)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertResults(ctx context.Context, cycleID string, recs []grading.Record) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, r := range recs {
			_, err := tx.ExecContext(ctx, `INSERT INTO student_results
				(cycle_id,usn,course_code,cie_marks,see_raw,exam_status,see_scaled,total_marks,grade,grade_points,credits_earned,is_pass)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
				ON CONFLICT (cycle_id,usn,course_code) DO UPDATE SET
				  cie_marks=EXCLUDED.cie_marks, see_raw=EXCLUDED.see_raw, exam_status=EXCLUDED.exam_status,
				  see_scaled=EXCLUDED.see_scaled, total_marks=EXCLUDED.total_marks, grade=EXCLUDED.grade,
				  grade_points=EXCLUDED.grade_points, credits_earned=EXCLUDED.credits_earned, is_pass=EXCLUDED.is_pass`,
				cycleID, r.StudentID, r.CourseCode, nullFloat(r.CIE), nullFloat(r.SEE), string(statusOrPresent(r.Status)),
				r.ScaledSEE, r.Total, r.Grade, r.GradePoints, r.CreditsEarned, boolInt(r.IsPass))
			if err != nil {
				return fmt.Errorf("upsert result %s/%s: %w", r.StudentID, r.CourseCode, err)
			}
		}
		return nil
	})
}

const resultCols = `cycle_id,usn,course_code,cie_marks,see_raw,exam_status,see_scaled,total_marks,grade,grade_points,credits_earned,is_pass`

func (s *SQLStore) ListResults(ctx context.Context, cycleID string) ([]grading.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultCols+` FROM student_results WHERE cycle_id=$1 ORDER BY usn, course_code`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []grading.Record{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetResult(ctx context.Context, cycleID, studentID, courseCode string) (grading.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultCols+` FROM student_results WHERE cycle_id=$1 AND usn=$2 AND course_code=$3`,
		cycleID, studentID, courseCode)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return grading.Record{}, fmt.Errorf("result %s/%s: %w", studentID, courseCode, ErrNotFound)
	}
	return r, err
}

func scanResult(sc scanner) (grading.Record, error) {
	var r grading.Record
	var cie, see sql.NullFloat64
	var st string
	var pass int
	if err := sc.Scan(&r.CycleID, &r.StudentID, &r.CourseCode, &cie, &see, &st,
		&r.ScaledSEE, &r.Total, &r.Grade, &r.GradePoints, &r.CreditsEarned, &pass); err != nil {
		return grading.Record{}, err
	}
	if cie.Valid {
		r.CIE = grading.Marks(cie.Float64)
	}
	if see.Valid {
		r.SEE = grading.Marks(see.Float64)
	}
	r.Status = seating.Status(st)
	r.IsPass = pass != 0
	return r, nil
}

func (s *SQLStore) AppendEvent(ctx context.Context, e Event) error {
	site := e.SiteID
	if site == "" {
		site = s.siteID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		site, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

func (s *SQLStore) ListEvents(ctx context.Context, key string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq,site_id,typ,key,data,created_at FROM event_log WHERE key=$1 ORDER BY seq`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func statusOrPresent(s seating.Status) seating.Status {
	if s == "" {
		return seating.StatusPresent
	}
	return s
}
