package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/rollcall/svc/auth"
	"github.com/dmitrymomot/rollcall/svc/credential"
)

func TestGate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	admin := h.seed(t, "root", "", "secret1", credential.RoleAdmin, false)
	verified := h.seed(t, "vera", "vera@example.com", "secret1", credential.RoleStudent, true)
	unverified := h.seed(t, "uma", "uma@example.com", "secret1", credential.RoleStaff, false)

	var lastErr error
	gate := auth.NewGate(h.sessions, h.repo, auth.WithErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		lastErr = err
		w.WriteHeader(http.StatusTeapot)
	}))

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, found := auth.IdentityFromContext(r.Context())
		require.True(t, found)
		_, _ = w.Write([]byte(id.UserID))
	})

	bearer := func(rec *credential.Record) string {
		raw, err := h.sessions.Issue(rec.ID, rec.Role.String())
		require.NoError(t, err)
		return "Bearer " + raw
	}

	serve := func(handler http.Handler, authz string) *httptest.ResponseRecorder {
		lastErr = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	session := gate.RequireSession()
	adminsOnly := session(gate.RequireRole(credential.RoleAdmin)(ok))
	mustVerify := session(gate.RequireVerifiedEmail()(ok))

	t.Run("missing session", func(t *testing.T) {
		serve(session(ok), "")
		assert.ErrorIs(t, lastErr, auth.ErrUnauthorized)

		serve(session(ok), "Bearer garbage")
		assert.ErrorIs(t, lastErr, auth.ErrUnauthorized)
	})

	t.Run("valid session", func(t *testing.T) {
		rec := serve(session(ok), bearer(verified))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, verified.ID, rec.Body.String())
	})

	t.Run("role", func(t *testing.T) {
		serve(adminsOnly, bearer(verified))
		assert.ErrorIs(t, lastErr, auth.ErrForbidden)

		rec := serve(adminsOnly, bearer(admin))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("verified email", func(t *testing.T) {
		serve(mustVerify, bearer(unverified))
		assert.ErrorIs(t, lastErr, auth.ErrEmailNotVerified)

		assert.Equal(t, http.StatusOK, serve(mustVerify, bearer(verified)).Code)
		assert.Equal(t, http.StatusOK, serve(mustVerify, bearer(admin)).Code, "admins are exempt")
	})
}

func TestGate_DefaultResponder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	gate := auth.NewGate(h.sessions, h.repo)

	rec := httptest.NewRecorder()
	gate.RequireSession()(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "x", Role: credential.RoleStudent}))
	gate.RequireRole(credential.RoleAdmin)(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
