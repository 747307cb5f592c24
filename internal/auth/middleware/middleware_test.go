package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-coe/internal/rbac"
)

func login(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
	return rec
}

func TestLoginAndMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a := NewAuthService("test-secret")
	h := LoginHandler(a, LoginConfig{AdminUser: "root", AdminPassHash: string(hash), DevLogin: true})

	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"root","password":"nope"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"x","password":"x","role":"admin"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"x","password":"x","role":"dean"}`).Code)
	assert.Equal(t, http.StatusBadRequest, login(t, h, `{`).Code)

	rec := login(t, h, `{"username":"root","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "admin", out["role"])
	assert.Len(t, out["permissions"], len(rbac.AllPermissions))

	rec = login(t, h, `{"username":"priya","password":"priya","role":"examiner"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	var gotSub, gotRole string
	protected := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub, gotRole = SubjectFromContext(r.Context()), rbac.RoleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
	req.Header.Set("Authorization", "Bearer "+out["access_token"].(string))
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "priya", gotSub)
	assert.Equal(t, "examiner", gotRole)

	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDevLoginDisabled(t *testing.T) {
	h := LoginHandler(NewAuthService("k"), LoginConfig{})
	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"a","password":"a","role":"coe"}`).Code)
}

func TestParseRejectsForeignKey(t *testing.T) {
	tok, err := NewAuthService("one").IssueJWT("u", "coe")
	require.NoError(t, err)
	_, err = NewAuthService("two").Parse(tok)
	assert.Error(t, err)
}
