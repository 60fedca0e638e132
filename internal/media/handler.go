package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"petregistry/internal/auth"
)

const maxUploadSizeBytes = 10 << 20

type AvatarUploader interface {
	UploadAvatar(ctx context.Context, imageSource string) (string, error)
}

// AvatarStore persists the uploaded avatar location on the account row.
// Implemented by the auth repository.
type AvatarStore interface {
	UpdateAvatarURL(ctx context.Context, accountID, avatarURL string) error
}

type AvatarHandler struct {
	uploader AvatarUploader
	store    AvatarStore
}

func NewAvatarHandler(uploader AvatarUploader, store AvatarStore) *AvatarHandler {
	return &AvatarHandler{uploader: uploader, store: store}
}

func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	if h.uploader == nil {
		writeError(w, http.StatusInternalServerError, "avatar uploader is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	}
	if len(data) > maxUploadSizeBytes {
		writeError(w, http.StatusBadRequest, "file is too large")
		return
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		writeError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	imageSource := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	avatarURL, err := h.uploader.UploadAvatar(r.Context(), imageSource)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to upload avatar")
		return
	}

	if err := h.store.UpdateAvatarURL(r.Context(), identity.ID, avatarURL); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to save avatar")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": avatarURL})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
