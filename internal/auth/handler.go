package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 8
	maxPasswordLength = 200
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if !emailRegex.MatchString(body.Email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if len(body.Password) < minPasswordLength || len(body.Password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return
	}

	account, err := h.service.Signup(r.Context(), body.Email, body.Password, body.DisplayName)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email is already registered")
			return
		}
		if errors.Is(err, ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PathValue("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "confirmation token is required")
		return
	}

	if err := h.service.ConfirmWithToken(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "confirmation token expired")
		case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrWrongTokenKind), errors.Is(err, ErrAccountNotFound):
			writeError(w, http.StatusUnauthorized, "invalid confirmation token")
		case errors.Is(err, ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to confirm account")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, ErrNotConfirmed):
			writeError(w, http.StatusForbidden, "account email is not confirmed")
		case errors.Is(err, ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to login")
		}
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "refresh token expired")
		case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrWrongTokenKind):
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
		case errors.Is(err, ErrTokenRevoked):
			writeError(w, http.StatusUnauthorized, "refresh token has been revoked")
		case errors.Is(err, ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to refresh token")
		}
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	if err := h.service.Logout(r.Context(), identity.ID); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var body changePasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if len(body.NewPassword) < minPasswordLength || len(body.NewPassword) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "new password format is invalid")
		return
	}

	if err := h.service.ChangePassword(r.Context(), identity.ID, body.OldPassword, body.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's identity snapshot as the middleware resolved it,
// which makes cache behavior observable from the outside.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	writeJSON(w, http.StatusOK, identity)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
