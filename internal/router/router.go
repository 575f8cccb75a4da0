package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/gate"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/recovery"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/response"
)

// Deps holds the handlers mounted by RegisterRoutes.
type Deps struct {
	Logger   *zap.SugaredLogger
	HTTP     config.HTTPConfig
	Gate     *gate.Gate
	Users    *user.Handler
	Sessions *session.Handler
	Recovery *recovery.Handler
	Settings *setting.Handler
	Audit    *audit.Handler
	// Ping is optional; when set, /health reports 503 if it fails.
	Ping func(ctx context.Context) error
}

// RegisterRoutes mounts HTTP handlers on a standard library http.ServeMux and
// wraps them with the middleware stack.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	g := d.Gate

	mux.HandleFunc("GET /health", health(d.Ping))

	// public auth endpoints
	mux.HandleFunc("POST /auth/register", d.Users.Register)
	mux.HandleFunc("POST /auth/login", d.Users.Login)
	mux.HandleFunc("POST /auth/forgot-password", d.Recovery.Forgot)
	mux.HandleFunc("POST /auth/reset-password", d.Recovery.Reset)
	mux.HandleFunc("POST /auth/refresh", d.Sessions.Refresh)
	mux.HandleFunc("POST /auth/introspect", d.Sessions.Introspect)

	// authenticated
	mux.Handle("POST /auth/logout", g.RequireAuth(d.Sessions.Logout))
	mux.Handle("GET /user/profile", g.RequireAuth(d.Users.Profile))
	mux.Handle("POST /user/password", g.RequireAuth(d.Users.ChangePassword))
	mux.Handle("DELETE /user/account", g.RequireAuth(d.Users.DeleteAccount))
	mux.Handle("GET /users/{userId}", g.RequireOwnership(d.Users.UserByID))
	mux.Handle("GET /admin/users/{userId}", g.RequireAdmin(d.Users.UserByID))
	mux.Handle("GET /admin/users/{userId}/audit", g.RequireAdmin(d.Audit.UserEvents))
	mux.Handle("GET /settings", g.RequireAuth(d.Settings.Get))
	mux.Handle("PUT /settings", g.RequireAuth(d.Settings.Update))

	limiter := NewRateLimiter(d.HTTP.RateLimitPerMinute)

	var h http.Handler = envelopeFallback(mux)
	h = BodyLimitMiddleware(d.HTTP.MaxBodyBytes)(h)
	h = limiter.Middleware(h)
	h = CORSMiddleware(d.HTTP.CORSOrigin)(h)
	h = SecurityHeadersMiddleware()(h)
	h = LoggingMiddleware(d.Logger)(h)
	h = RecoverMiddleware(d.Logger)(h)
	return h
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				response.Success(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
				return
			}
		}
		response.Success(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
