package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	assert.True(t, c.Has("coe", PermResultsModerate))
	assert.True(t, c.Has("coe", PermMasterWrite))
	assert.True(t, c.Has("admin", "anything:at-all"))
	assert.True(t, c.Has("examiner", PermResultsEnter))
	assert.False(t, c.Has("examiner", PermResultsModerate))
	assert.False(t, c.Has("invigilator", PermBundlesGenerate))
	assert.False(t, c.Has("nobody", PermSeatingView))
	assert.True(t, c.Any("examiner", PermResultsGrade, PermLedgerView))
	assert.False(t, c.All("examiner", PermResultsGrade, PermLedgerView))

	assert.True(t, c.Known("invigilator"))
	assert.False(t, c.Known("dean"))
	assert.Equal(t, []string{PermAttendanceMark, PermSeatingView}, c.Effective("invigilator"))
	assert.Len(t, c.Effective("admin"), len(AllPermissions))
	assert.Len(t, c.Effective("coe"), len(AllPermissions))
}

func TestRequireAny(t *testing.T) {
	h := RequireAny(PermResultsGrade, PermLedgerView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithRole(req.Context(), "invigilator")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), PermLedgerView)
}

func TestRequire(t *testing.T) {
	h := Require(PermBundlesGenerate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{"coe": http.StatusNoContent, "examiner": http.StatusForbidden, "": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
