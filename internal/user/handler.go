package user

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	auditentity "github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/response"
)

// Auditor records security events for a request.
type Auditor interface {
	RecordRequest(r *http.Request, userID, action, details string)
}

// Handler exposes HTTP endpoints for registration, login and account management.
type Handler struct {
	svc     *UserService
	auditor Auditor
	logger  *zap.SugaredLogger
}

func NewHandler(svc *UserService, auditor Auditor, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, auditor: auditor, logger: logger}
}

// RegisterRequest request body for the register endpoint. Day, month and
// year may be sent as numbers or numeric strings.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"fullName"`
	Day      FlexInt `json:"day"`
	Month    FlexInt `json:"month"`
	Year     FlexInt `json:"year"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	id, err := h.svc.Register(r.Context(), RegisterInput{
		Email: req.Email, Password: req.Password, FullName: req.FullName,
		Day: req.Day, Month: req.Month, Year: req.Year,
	})
	if err != nil {
		h.fail(w, err, "Registration failed")
		return
	}
	h.audit(r, id, auditentity.ActionRegister, "")
	response.Success(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"userId":  id,
	})
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		h.fail(w, err, "Login failed")
		return
	}
	h.audit(r, res.User.ID, auditentity.ActionLogin, "")
	response.Success(w, http.StatusOK, map[string]any{
		"message":   "Login successful",
		"token":     res.Session.Token,
		"expiresAt": res.Session.ExpiresAt,
		"user":      res.User.Summary(),
	})
}

// Profile returns the caller's own account. Must run behind RequireAuth.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, apperr.Authentication("Authentication required"))
		return
	}
	h.writeProfile(w, r, p.UserID)
}

// UserByID returns the account named by the userId path value. Access is
// decided by the gate (ownership or admin).
func (h *Handler) UserByID(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, r.PathValue("userId"))
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		h.fail(w, err, "Failed to load user")
		return
	}
	response.Success(w, http.StatusOK, map[string]any{"user": u.Profile()})
}

// ChangePasswordRequest payload for changing the password of the caller.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, apperr.Authentication("Authentication required"))
		return
	}
	var req ChangePasswordRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		h.fail(w, err, "Failed to change password")
		return
	}
	h.audit(r, p.UserID, auditentity.ActionPasswordChange, "")
	response.Success(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, apperr.Authentication("Authentication required"))
		return
	}
	if err := h.svc.DeleteAccount(r.Context(), p.UserID, p.Token); err != nil {
		h.fail(w, err, "Failed to delete account")
		return
	}
	h.audit(r, p.UserID, auditentity.ActionAccountDeleted, "")
	response.Success(w, http.StatusOK, map[string]any{"message": "Account deleted successfully"})
}

func (h *Handler) audit(r *http.Request, userID, action, details string) {
	if h.auditor != nil {
		h.auditor.RecordRequest(r, userID, action, details)
	}
}

// fail maps service errors to client responses. Unexpected errors are
// logged and reported with the generic fallback message.
func (h *Handler) fail(w http.ResponseWriter, err error, fallback string) {
	switch {
	case IsValidation(err):
		response.Error(w, apperr.Validation(err.Error()))
	case errors.Is(err, ErrEmailTaken):
		response.Error(w, apperr.Conflict("Email already registered"))
	case errors.Is(err, ErrBadCredentials):
		response.Error(w, apperr.Authentication("Invalid email or password"))
	case errors.Is(err, ErrWrongPassword):
		response.Error(w, apperr.Authentication("Current password is incorrect"))
	case errors.Is(err, ErrDeactivated):
		response.Error(w, apperr.Authorization("Account is deactivated"))
	case errors.Is(err, ErrUserNotFound):
		response.Error(w, apperr.NotFound("User not found"))
	default:
		h.logger.Errorw("user request failed", "err", err)
		response.Error(w, apperr.InternalMsg(fallback, err))
	}
}
