package session

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	auditentity "github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/response"
)

// Auditor receives logout events.
type Auditor interface {
	RecordRequest(r *http.Request, userID, action, details string)
}

type Handler struct {
	mgr     *Manager
	auditor Auditor
	logger  *zap.SugaredLogger
}

func NewHandler(mgr *Manager, auditor Auditor, logger *zap.SugaredLogger) *Handler {
	return &Handler{mgr: mgr, auditor: auditor, logger: logger}
}

// TokenFromRequest reads "Authorization: Bearer <t>", falling back to the
// X-Auth-Token header.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, rest, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			if t := strings.TrimSpace(rest); t != "" {
				return t
			}
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Auth-Token"))
}

// Logout revokes the caller's token. Must run behind RequireAuth.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		response.Error(w, apperr.Authentication("Authentication required"))
		return
	}
	h.mgr.Destroy(r.Context(), p.Token)
	if h.auditor != nil {
		h.auditor.RecordRequest(r, p.UserID, auditentity.ActionLogout, "")
	}
	response.Success(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
}

// Refresh exchanges a valid or recently expired token for a new one and
// revokes the old token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := TokenFromRequest(r)
	if token == "" {
		response.Error(w, apperr.Authentication("Authentication required"))
		return
	}
	s, err := h.mgr.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrCannotRefresh) {
			response.Error(w, apperr.Authentication("Cannot refresh invalid token"))
			return
		}
		h.logger.Errorw("refresh failed", "err", err)
		response.Error(w, apperr.Internal(err))
		return
	}
	h.mgr.Destroy(r.Context(), token)
	response.Success(w, http.StatusOK, map[string]any{
		"message":   "Token refreshed",
		"token":     s.Token,
		"expiresAt": s.ExpiresAt,
	})
}

type introspectRequest struct {
	Token string `json:"token"`
}

// Introspect reports whether a token is currently active. The token comes
// from the JSON body or, failing that, the usual headers. Inactive tokens
// are not an error.
func (h *Handler) Introspect(w http.ResponseWriter, r *http.Request) {
	var req introspectRequest
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = TokenFromRequest(r)
	}
	if token == "" {
		response.Error(w, apperr.Validation("Token is required"))
		return
	}
	id, err := h.mgr.Validate(r.Context(), token)
	if err != nil {
		response.Success(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	response.Success(w, http.StatusOK, map[string]any{
		"active":    true,
		"userId":    id.UserID,
		"email":     id.Email,
		"issuedAt":  id.CreatedAt,
		"expiresAt": id.ExpiresAt,
	})
}
