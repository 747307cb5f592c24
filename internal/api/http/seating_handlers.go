package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-coe/internal/coe"
	"github.com/mind-engage/mindengage-coe/internal/report"
	"github.com/mind-engage/mindengage-coe/internal/seating"
)

type sessionParams struct {
	CycleID string `validate:"required"`
	Date    string `validate:"required,datetime=2006-01-02"`
	Slot    string `validate:"required,oneof=FN AN"`
}

// sessionKey reads {cycleID}/{date}/{slot} from the route.
func sessionKey(w http.ResponseWriter, r *http.Request) (coe.SessionKey, bool) {
	p := sessionParams{
		CycleID: chi.URLParam(r, "cycleID"),
		Date:    chi.URLParam(r, "date"),
		Slot:    upperTrim(chi.URLParam(r, "slot")),
	}
	if err := validate.Struct(p); err != nil {
		writeErr(w, err)
		return coe.SessionKey{}, false
	}
	return coe.SessionKey{CycleID: p.CycleID, Date: p.Date, Slot: p.Slot}, true
}

type registrationDTO struct {
	StudentID  string `json:"student_id" validate:"required,max=32"`
	Name       string `json:"name" validate:"max=200"`
	CourseCode string `json:"course_code" validate:"required,max=32"`
}

type allocateReq struct {
	Registrations []registrationDTO `json:"registrations" validate:"required,min=1,dive"`
	Rooms         []string          `json:"rooms" validate:"dive,required"`
}

// POST /cycles/{cycleID}/sessions/{date}/{slot}/allocate
func AllocateHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := sessionKey(w, r)
		if !ok {
			return
		}
		var req allocateReq
		if !decodeValid(w, r, &req) {
			return
		}
		regs := make([]seating.Registration, 0, len(req.Registrations))
		for _, d := range req.Registrations {
			regs = append(regs, seating.Registration{StudentID: d.StudentID, Name: d.Name, CourseCode: d.CourseCode})
		}
		run, err := svc.Allocate(r.Context(), key, regs, req.Rooms)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, run)
	}
}

// GET /cycles/{cycleID}/sessions/{date}/{slot}/seats[?room=101]
func ListSeatsHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := sessionKey(w, r)
		if !ok {
			return
		}
		seats, err := svc.Seats(r.Context(), key)
		if err != nil {
			writeErr(w, err)
			return
		}
		if room := r.URL.Query().Get("room"); room != "" {
			filtered := seats[:0]
			for _, s := range seats {
				if s.RoomNumber == room {
					filtered = append(filtered, s)
				}
			}
			seats = filtered
		}
		respondJSON(w, http.StatusOK, map[string]any{"session": key, "seats": seats})
	}
}

// GET /cycles/{cycleID}/sessions/{date}/{slot}/summary
func SummaryHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := sessionKey(w, r)
		if !ok {
			return
		}
		sum, err := svc.Summary(r.Context(), key)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"session": key, "summary": sum})
	}
}

// Lists may be given as arrays or as the comma separated text an invigilator types.
type attendanceReq struct {
	Absent          []string `json:"absent" validate:"dive,max=32"`
	Malpractice     []string `json:"malpractice" validate:"dive,max=32"`
	AbsentText      string   `json:"absent_text"`
	MalpracticeText string   `json:"malpractice_text"`
}

// POST /cycles/{cycleID}/sessions/{date}/{slot}/attendance
func AttendanceHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := sessionKey(w, r)
		if !ok {
			return
		}
		var req attendanceReq
		if !decodeValid(w, r, &req) {
			return
		}
		absent := append(req.Absent, seating.SplitIDs(req.AbsentText)...)
		mal := append(req.Malpractice, seating.SplitIDs(req.MalpracticeText)...)
		res, rep, err := svc.MarkAttendance(r.Context(), key, absent, mal)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, struct {
			seating.AttendanceResult
			Warnings *report.Report `json:"warnings"`
		}{res, rep})
	}
}

// POST /cycles/{cycleID}/sessions/{date}/{slot}/bundles
func GenerateBundlesHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := sessionKey(w, r)
		if !ok {
			return
		}
		sheets, err := svc.GenerateBundles(r.Context(), key)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"session": key, "bundles": sheets})
	}
}

// GET /cycles/{cycleID}/sessions/{date}/{slot}/bundles
func ListBundlesHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := sessionKey(w, r)
		if !ok {
			return
		}
		sheets, err := svc.Bundles(r.Context(), key)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"session": key, "bundles": sheets})
	}
}
