package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-coe/internal/coe"
	"github.com/mind-engage/mindengage-coe/internal/cycle"
	"github.com/mind-engage/mindengage-coe/internal/grading"
	"github.com/mind-engage/mindengage-coe/internal/seating"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// decodeValid reads a JSON body into dst and runs the struct's validate tags.
// It writes the error response itself and reports whether the caller may go on.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "bad json"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeErr(w, err)
		return false
	}
	return true
}

// writeErr maps service errors onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	var capErr *seating.CapacityError
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: fields})
	case errors.As(err, &capErr),
		errors.Is(err, seating.ErrDuplicateStudent),
		errors.Is(err, coe.ErrInvalidSession),
		errors.Is(err, coe.ErrInvalidMaster),
		errors.Is(err, coe.ErrUnknownRoom),
		errors.Is(err, grading.ErrInvalidGrace),
		errors.Is(err, cycle.ErrInvalidName):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, coe.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, cycle.ErrPhaseNotReached),
		errors.Is(err, cycle.ErrPhaseBounds),
		errors.Is(err, coe.ErrNoSeats),
		errors.Is(err, coe.ErrKeyMissing):
		respondJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		log.Printf("api: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func upperTrim(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
