package audit

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/response"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Lister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]entity.Event, error)
}

// Handler exposes the audit trail to administrators.
type Handler struct {
	events Lister
	logger *zap.SugaredLogger
}

func NewHandler(events Lister, logger *zap.SugaredLogger) *Handler {
	return &Handler{events: events, logger: logger}
}

// UserEvents lists the newest events of the user named by the userId path
// value. An optional limit query parameter caps the result.
func (h *Handler) UserEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			response.Error(w, apperr.Validation("limit must be between 1 and 200"))
			return
		}
		limit = n
	}
	userID := r.PathValue("userId")
	events, err := h.events.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Errorw("list audit events failed", "user_id", userID, "err", err)
		response.Error(w, apperr.InternalMsg("Failed to load audit events", err))
		return
	}
	if events == nil {
		events = []entity.Event{}
	}
	response.Success(w, http.StatusOK, map[string]any{"events": events})
}
