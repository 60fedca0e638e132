package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"petregistry/internal/auth"
	"petregistry/internal/observability"
)

// CleanupHandler prunes accounts that signed up but never confirmed. It is
// meant to be hit by a scheduled job and is gated by a shared cron secret;
// with no secret configured the route pretends not to exist.
type CleanupHandler struct {
	repo       *auth.Repository
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(repo *auth.Repository, logger *observability.Logger, cronSecret string, retention time.Duration, batchSize int) *CleanupHandler {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	return &CleanupHandler{
		repo:       repo,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	cutoff := time.Now().UTC().Add(-h.retention)
	deleted, err := h.repo.DeleteStaleUnconfirmedAccounts(r.Context(), cutoff, h.batchSize)
	if err != nil {
		h.logger.Error("account_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("account_cleanup_completed", map[string]any{
		"deleted_unconfirmed_accounts": deleted,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                       "ok",
		"deleted_unconfirmed_accounts": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
