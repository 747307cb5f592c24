package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-coe/internal/bundle"
	"github.com/mind-engage/mindengage-coe/internal/coe"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/report"
)

type cieDTO struct {
	StudentID  string   `json:"student_id" validate:"required,max=32"`
	CourseCode string   `json:"course_code" validate:"required,max=32"`
	CIE        *float64 `json:"cie_marks" validate:"required,gte=0,lte=200"`
}

type marksReq struct {
	Entries []cieDTO `json:"entries" validate:"required,min=1,dive"`
}

// POST /cycles/{cycleID}/results/marks
func EnterMarksHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req marksReq
		if !decodeValid(w, r, &req) {
			return
		}
		entries := make([]coe.CIEEntry, 0, len(req.Entries))
		for _, e := range req.Entries {
			entries = append(entries, coe.CIEEntry{StudentID: e.StudentID, CourseCode: e.CourseCode, CIE: *e.CIE})
		}
		n, err := svc.EnterCIE(r.Context(), chi.URLParam(r, "cycleID"), entries)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"saved": n})
	}
}

type decodeReq struct {
	ExamDate string               `json:"exam_date" validate:"required,datetime=2006-01-02"`
	Session  string               `json:"session" validate:"required,oneof=FN AN fn an"`
	Sheets   []bundle.FilledSheet `json:"sheets" validate:"required,min=1"`
}

// POST /cycles/{cycleID}/results/decode
func DecodeHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req decodeReq
		if !decodeValid(w, r, &req) {
			return
		}
		key := coe.SessionKey{CycleID: chi.URLParam(r, "cycleID"), Date: req.ExamDate, Slot: req.Session}
		run, err := svc.DecodeSEE(r.Context(), key, req.Sheets)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, run)
	}
}

// POST /cycles/{cycleID}/results/grade
func GradeHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := svc.GradeCycle(r.Context(), chi.URLParam(r, "cycleID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, run)
	}
}

// GET /cycles/{cycleID}/results
func ListResultsHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, rep, err := svc.Ledger(r.Context(), chi.URLParam(r, "cycleID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		recs := []grading.Record{}
		for _, row := range rows {
			recs = append(recs, row.Courses...)
		}
		respondJSON(w, http.StatusOK, map[string]any{"results": recs, "warnings": rep})
	}
}

type moderateReq struct {
	Target string  `json:"target" validate:"required,oneof=SEE CIE"`
	Marks  float64 `json:"marks" validate:"gte=0"`
}

type moderateResp struct {
	grading.Record
	Warnings *report.Report `json:"warnings"`
}

// POST /cycles/{cycleID}/results/{studentID}/{courseCode}/moderate
func ModerateHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moderateReq
		if !decodeValid(w, r, &req) {
			return
		}
		rec, rep, err := svc.Moderate(r.Context(),
			chi.URLParam(r, "cycleID"),
			chi.URLParam(r, "studentID"),
			chi.URLParam(r, "courseCode"),
			grading.Grace{Target: grading.GraceTarget(req.Target), Marks: req.Marks})
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, moderateResp{Record: rec, Warnings: rep})
	}
}

// GET /cycles/{cycleID}/ledger
func LedgerHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, rep, err := svc.Ledger(r.Context(), chi.URLParam(r, "cycleID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ledger": rows, "warnings": rep})
	}
}
