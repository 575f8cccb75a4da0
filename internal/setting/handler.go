package setting

import (
	"net/http"

	"go.uber.org/zap"

	auditentity "github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/response"
)

// Handler serves the settings endpoints. Both require an authenticated principal.
type Handler struct {
	svc     *Service
	auditor user.Auditor
	logger  *zap.SugaredLogger
}

func NewHandler(svc *Service, auditor user.Auditor, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, auditor: auditor, logger: logger}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, apperr.Authentication("Authentication required"))
		return
	}
	st, err := h.svc.Get(r.Context(), p.UserID)
	if err != nil {
		h.logger.Errorw("load settings failed", "user_id", p.UserID, "err", err)
		response.Error(w, apperr.InternalMsg("Failed to load settings", err))
		return
	}
	response.Success(w, http.StatusOK, map[string]any{"settings": st})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, apperr.Authentication("Authentication required"))
		return
	}
	var patch entity.Patch
	if err := request.DecodeJSON(r, &patch); err != nil {
		response.Error(w, err)
		return
	}
	st, err := h.svc.Update(r.Context(), p.UserID, patch)
	if err != nil {
		if IsValidation(err) {
			response.Error(w, apperr.Validation(err.Error()))
			return
		}
		h.logger.Errorw("update settings failed", "user_id", p.UserID, "err", err)
		response.Error(w, apperr.InternalMsg("Failed to update settings", err))
		return
	}
	if h.auditor != nil {
		h.auditor.RecordRequest(r, p.UserID, auditentity.ActionSettingsUpdated, "")
	}
	response.Success(w, http.StatusOK, map[string]any{"message": "Settings updated", "settings": st})
}
