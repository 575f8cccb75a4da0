package recovery

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	auditentity "github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/response"
)

const forgotMessage = "If an account with that email exists, a password reset link has been sent."

type Handler struct {
	svc     *Service
	auditor user.Auditor
	logger  *zap.SugaredLogger
}

func NewHandler(svc *Service, auditor user.Auditor, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, auditor: auditor, logger: logger}
}

type ForgotRequest struct {
	Email string `json:"email"`
}

func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.svc.Forgot(r.Context(), req.Email); err != nil {
		response.Error(w, apperr.Validation(err.Error()))
		return
	}
	if h.auditor != nil {
		h.auditor.RecordRequest(r, "", auditentity.ActionPasswordResetAsk, user.NormalizeEmail(req.Email))
	}
	response.Success(w, http.StatusOK, map[string]any{"message": forgotMessage})
}

type ResetRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	err := h.svc.Reset(r.Context(), req.Email, req.Token, req.Password)
	switch {
	case err == nil:
	case user.IsValidation(err), errors.Is(err, ErrInvalidToken):
		response.Error(w, apperr.Validation(err.Error()))
		return
	default:
		h.logger.Errorw("password reset failed", "err", err)
		response.Error(w, apperr.InternalMsg("Password reset failed", err))
		return
	}
	if h.auditor != nil {
		h.auditor.RecordRequest(r, "", auditentity.ActionPasswordReset, user.NormalizeEmail(req.Email))
	}
	response.Success(w, http.StatusOK, map[string]any{"message": "Password has been reset successfully."})
}
