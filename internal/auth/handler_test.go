package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"petregistry/internal/auth"
)

func newAuthMux(t *testing.T) (*testEnv, *http.ServeMux) {
	t.Helper()

	env := newTestEnv(t)
	handler := auth.NewHandler(env.service)
	guard := env.service.Middleware

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", handler.Signup)
	mux.HandleFunc("GET /auth/confirm/{token}", handler.Confirm)
	mux.HandleFunc("POST /auth/login", handler.Login)
	mux.HandleFunc("POST /auth/refresh", handler.Refresh)
	mux.Handle("POST /auth/logout", guard(http.HandlerFunc(handler.Logout)))
	mux.Handle("POST /auth/password", guard(http.HandlerFunc(handler.ChangePassword)))
	mux.Handle("GET /auth/me", guard(http.HandlerFunc(handler.Me)))

	return env, mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), dst))
}

func loginPair(t *testing.T, mux *http.ServeMux, email, password string) auth.TokenPair {
	t.Helper()

	resp := doJSON(t, mux, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var pair auth.TokenPair
	decodeBody(t, resp, &pair)
	return pair
}

func TestHandlerSignupValidation(t *testing.T) {
	t.Parallel()

	_, mux := newAuthMux(t)

	resp := doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "not-an-email", "password": "secret123!",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "a@x.com", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "a@x.com", "password": "secret123!", "unexpected": "field",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandlerSignupAndDuplicate(t *testing.T) {
	t.Parallel()

	_, mux := newAuthMux(t)

	resp := doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "a@x.com", "password": "secret123!", "display_name": "A",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var created auth.PublicAccount
	decodeBody(t, resp, &created)
	require.Equal(t, "a@x.com", created.Email)
	require.False(t, created.Confirmed)

	resp = doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "a@x.com", "password": "secret123!",
	})
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestHandlerConfirmFlow(t *testing.T) {
	t.Parallel()

	env, mux := newAuthMux(t)

	resp := doJSON(t, mux, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "a@x.com", "password": "secret123!",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	// Unconfirmed accounts cannot log in yet.
	login := doJSON(t, mux, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "secret123!",
	})
	require.Equal(t, http.StatusForbidden, login.Code)

	token := env.mailer.waitToken(t)
	confirm := doJSON(t, mux, http.MethodGet, "/auth/confirm/"+token, "", nil)
	require.Equal(t, http.StatusOK, confirm.Code)

	login = doJSON(t, mux, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "secret123!",
	})
	require.Equal(t, http.StatusOK, login.Code)
}

func TestHandlerConfirmRejectsBadToken(t *testing.T) {
	t.Parallel()

	env, mux := newAuthMux(t)

	resp := doJSON(t, mux, http.MethodGet, "/auth/confirm/not-a-token", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	// An access token is the wrong kind for confirmation.
	access, err := env.tokens.Issue("some-id", auth.KindAccess, time.Hour)
	require.NoError(t, err)
	resp = doJSON(t, mux, http.MethodGet, "/auth/confirm/"+access, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHandlerLoginFailures(t *testing.T) {
	t.Parallel()

	env, mux := newAuthMux(t)
	env.signupConfirmed(t, "a@x.com", "secret123!")

	resp := doJSON(t, mux, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = doJSON(t, mux, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@x.com", "password": "secret123!",
	})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHandlerRefreshRotation(t *testing.T) {
	t.Parallel()

	env, mux := newAuthMux(t)
	env.signupConfirmed(t, "a@x.com", "secret123!")
	pair := loginPair(t, mux, "a@x.com", "secret123!")

	resp := doJSON(t, mux, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var rotated auth.TokenPair
	decodeBody(t, resp, &rotated)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replaying the rotated-out token fails.
	resp = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHandlerGuardedRoutes(t *testing.T) {
	t.Parallel()

	env, mux := newAuthMux(t)
	env.signupConfirmed(t, "a@x.com", "secret123!")
	pair := loginPair(t, mux, "a@x.com", "secret123!")

	// No bearer token.
	resp := doJSON(t, mux, http.MethodGet, "/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = doJSON(t, mux, http.MethodGet, "/auth/me", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = doJSON(t, mux, http.MethodGet, "/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var identity auth.Identity
	decodeBody(t, resp, &identity)
	require.Equal(t, "a@x.com", identity.Email)
	require.True(t, identity.Confirmed)
}

func TestHandlerLogout(t *testing.T) {
	t.Parallel()

	env, mux := newAuthMux(t)
	env.signupConfirmed(t, "a@x.com", "secret123!")
	pair := loginPair(t, mux, "a@x.com", "secret123!")

	resp := doJSON(t, mux, http.MethodPost, "/auth/logout", pair.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	// Logout is idempotent at the HTTP level too.
	resp = doJSON(t, mux, http.MethodPost, "/auth/logout", pair.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHandlerChangePassword(t *testing.T) {
	t.Parallel()

	env, mux := newAuthMux(t)
	env.signupConfirmed(t, "a@x.com", "old-password-1")
	pair := loginPair(t, mux, "a@x.com", "old-password-1")

	resp := doJSON(t, mux, http.MethodPost, "/auth/password", pair.AccessToken, map[string]string{
		"old_password": "wrong-old", "new_password": "new-password-1",
	})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = doJSON(t, mux, http.MethodPost, "/auth/password", pair.AccessToken, map[string]string{
		"old_password": "old-password-1", "new_password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, mux, http.MethodPost, "/auth/password", pair.AccessToken, map[string]string{
		"old_password": "old-password-1", "new_password": "new-password-1",
	})
	require.Equal(t, http.StatusNoContent, resp.Code)

	loginPair(t, mux, "a@x.com", "new-password-1")
}
