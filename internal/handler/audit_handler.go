package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go-account-auth/internal/middleware"
	"go-account-auth/internal/model"
)

type activityReader interface {
	Recent(ctx context.Context, actorID string, limit int) ([]model.AuditEntry, error)
}

// AuditHandler exposes the signed-in user's own account activity.
type AuditHandler struct {
	reader activityReader
}

func NewAuditHandler(reader activityReader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

func (h *AuditHandler) Activity(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	items, err := h.reader.Recent(r.Context(), subject, parseIntOrDefault(r.URL.Query().Get("limit"), 50))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items})
}

func parseIntOrDefault(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}
