// Package gate guards protected routes. A guarded route is a handler behind an
// ordered list of interceptors; the first interceptor to fail writes the error
// envelope and the handler never runs.
package gate

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	auditentity "github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/session"
	userentity "github.com/ovaphlow/pitchfork/service-finance-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/response"
)

// Interceptor inspects a request and returns the request to pass on, possibly
// with an enriched context, or an error that stops the chain.
type Interceptor func(*http.Request) (*http.Request, error)

// Chain runs interceptors in order and then h.
func Chain(h http.Handler, interceptors ...Interceptor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, ic := range interceptors {
			next, err := ic(r)
			if err != nil {
				response.Error(w, err)
				return
			}
			r = next
		}
		h.ServeHTTP(w, r)
	})
}

type Validator interface {
	Validate(ctx context.Context, token string) (*session.Identity, error)
}

type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

type Auditor interface {
	RecordRequestAsync(r *http.Request, userID, action, details string)
}

var (
	errAuthRequired  = apperr.Authentication("Authentication required")
	errTokenInvalid  = apperr.Authentication("Token expired or invalid")
	errAdminRequired = apperr.Authorization("Admin privileges required")
	errTargetMissing = apperr.Validation("User ID required for ownership check")
	errAccessDenied  = apperr.Authorization("Access denied")
)

type Gate struct {
	sessions Validator
	roles    RoleLookup
	auditor  Auditor
	logger   *zap.SugaredLogger
}

func New(sessions Validator, roles RoleLookup, auditor Auditor, logger *zap.SugaredLogger) *Gate {
	return &Gate{sessions: sessions, roles: roles, auditor: auditor, logger: logger}
}

// RequireAuth guards h with token authentication.
func (g *Gate) RequireAuth(h http.HandlerFunc) http.Handler {
	return Chain(h, g.Authenticate)
}

// RequireAdmin guards h with authentication and an admin role check.
func (g *Gate) RequireAdmin(h http.HandlerFunc) http.Handler {
	return Chain(h, g.Authenticate, g.Admin)
}

// RequireOwnership guards h with authentication and a check that the target
// user id of the request is the caller's own.
func (g *Gate) RequireOwnership(h http.HandlerFunc) http.Handler {
	return Chain(h, g.Authenticate, g.Ownership)
}

// Authenticate attaches the session.Principal of a valid token.
func (g *Gate) Authenticate(r *http.Request) (*http.Request, error) {
	token := session.TokenFromRequest(r)
	if token == "" {
		return nil, errAuthRequired
	}
	if !session.IsWellFormed(token) {
		return nil, errTokenInvalid
	}
	id, err := g.sessions.Validate(r.Context(), token)
	if err != nil {
		return nil, errTokenInvalid
	}
	p := session.Principal{UserID: id.UserID, Email: id.Email, Token: token}
	return r.WithContext(session.WithPrincipal(r.Context(), p)), nil
}

// Admin requires the principal to be an active admin. An unknown or inactive
// user is denied; any other lookup failure is an internal error.
func (g *Gate) Admin(r *http.Request) (*http.Request, error) {
	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		return nil, errAuthRequired
	}
	role, err := g.roles.RoleOf(r.Context(), p.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errAdminRequired
	}
	if err != nil {
		g.logger.Errorw("role lookup failed", "user_id", p.UserID, "err", err)
		return nil, apperr.InternalMsg("Authorization check failed", err)
	}
	if role != userentity.RoleAdmin {
		return nil, errAdminRequired
	}
	return r, nil
}

// Ownership compares the principal with the target user id found in the path,
// the JSON body or the query, in that order.
func (g *Gate) Ownership(r *http.Request) (*http.Request, error) {
	p, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		return nil, errAuthRequired
	}
	target, err := TargetUserID(r)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return nil, errTargetMissing
	}
	if target != p.UserID {
		g.logger.Warnw("ownership check failed", "user_id", p.UserID, "target", target, "path", r.URL.Path)
		if g.auditor != nil {
			g.auditor.RecordRequestAsync(r, p.UserID, auditentity.ActionUnauthorizedAccess,
				fmt.Sprintf("Attempted to access resources of user %s", target))
		}
		return nil, errAccessDenied
	}
	return r, nil
}

// TargetUserID extracts the userId a request acts on. A JSON body is read and
// put back so the handler can decode it again.
func TargetUserID(r *http.Request) (string, error) {
	if v := r.PathValue("userId"); v != "" {
		return v, nil
	}
	if r.Body != nil && r.Body != http.NoBody && isJSON(r) {
		b, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", apperr.Validation("Request body too large")
			}
			return "", apperr.Validation("Invalid JSON in request body")
		}
		r.Body = io.NopCloser(bytes.NewReader(b))
		if v := userIDFromBody(b); v != "" {
			return v, nil
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("userId")), nil
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "application/json")
}

func userIDFromBody(b []byte) string {
	var body struct {
		UserID json.RawMessage `json:"userId"`
	}
	if len(bytes.TrimSpace(b)) == 0 || json.Unmarshal(b, &body) != nil || len(body.UserID) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(body.UserID, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(body.UserID, &n) == nil {
		return n.String()
	}
	return ""
}
