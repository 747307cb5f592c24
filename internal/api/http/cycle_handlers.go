package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-coe/internal/coe"
	"github.com/mind-engage/mindengage-coe/internal/cycle"
)

type cycleView struct {
	cycle.Cycle
	PhaseName string  `json:"status_name"`
	Progress  float64 `json:"progress"`
}

func viewOf(c cycle.Cycle) cycleView {
	return cycleView{Cycle: c, PhaseName: c.Phase.String(), Progress: c.Progress()}
}

type createCycleReq struct {
	Name string `json:"name" validate:"required,max=120"`
}

// POST /cycles
func CreateCycleHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCycleReq
		if !decodeValid(w, r, &req) {
			return
		}
		c, err := svc.CreateCycle(r.Context(), req.Name)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, viewOf(c))
	}
}

// GET /cycles
func ListCyclesHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := svc.Cycles(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		out := make([]cycleView, 0, len(cs))
		for _, c := range cs {
			out = append(out, viewOf(c))
		}
		respondJSON(w, http.StatusOK, map[string]any{"cycles": out})
	}
}

// GET /cycles/{cycleID}
func GetCycleHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Cycle(r.Context(), chi.URLParam(r, "cycleID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, viewOf(c))
	}
}

// POST /cycles/{cycleID}/advance
func AdvanceCycleHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Advance(r.Context(), chi.URLParam(r, "cycleID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, viewOf(c))
	}
}

// POST /cycles/{cycleID}/revert
func RevertCycleHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Revert(r.Context(), chi.URLParam(r, "cycleID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, viewOf(c))
	}
}

// GET /cycles/{cycleID}/events
func ListEventsHandler(svc *coe.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "cycleID")
		if _, err := svc.Cycle(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		evs, err := svc.Events(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"events": evs})
	}
}
