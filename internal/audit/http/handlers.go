package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/staffdir/staffdir/internal/audit"
	"github.com/staffdir/staffdir/internal/platform/httpx"
	"github.com/staffdir/staffdir/internal/shared"
)

// QueryService defines the read contract for access logs.
type QueryService interface {
	ByActor(ctx context.Context, actorID int64, limit int) ([]audit.Entry, error)
	BySubject(ctx context.Context, subjectID int64, limit int) ([]audit.Entry, error)
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Handler serves access log queries.
type Handler struct {
	logger  *slog.Logger
	service QueryService
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service QueryService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type listResponse struct {
	Logs []audit.Entry `json:"logs"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("audit: limit: %w", shared.ErrValidation))
		return
	}
	staffID, err := optionalInt(q.Get("staffId"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("audit: staffId: %w", shared.ErrValidation))
		return
	}
	actorID, err := optionalInt(q.Get("actorId"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("audit: actorId: %w", shared.ErrValidation))
		return
	}
	if staffID > 0 && actorID > 0 {
		httpx.RespondError(w, fmt.Errorf("audit: staffId and actorId are exclusive: %w", shared.ErrValidation))
		return
	}

	var entries []audit.Entry
	switch {
	case staffID > 0:
		entries, err = h.service.BySubject(r.Context(), int64(staffID), limit)
	case actorID > 0:
		entries, err = h.service.ByActor(r.Context(), int64(actorID), limit)
	default:
		entries, err = h.service.Recent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("list access logs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Logs: entries})
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, shared.ErrValidation
	}
	return v, nil
}
