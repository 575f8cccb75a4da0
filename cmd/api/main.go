package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/audit"
	auditrepo "github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/repo"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/gate"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/recovery"
	recoveryrepo "github.com/ovaphlow/pitchfork/service-finance-go/internal/recovery/repo"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-finance-go/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/setting"
	settingrepo "github.com/ovaphlow/pitchfork/service-finance-go/internal/setting/repo"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-finance-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/utilities"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-finance-go", "env", cfg.Env, "db_driver", cfg.DB.Driver)

	// init db
	db, err := database.Connect(cfg.Database())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := userrepo.NewUserRepo(db)
	blacklist := sessionrepo.NewBlacklistRepo(db)
	resets := recoveryrepo.NewResetRepo(db)
	settings := settingrepo.NewRepo(db)
	audits := auditrepo.NewAuditRepo(db)
	if err := ensureSchema(ctx, users, blacklist, resets, settings, audits); err != nil {
		sugar.Fatalf("ensure schema: %v", err)
	}

	cache, closeCache := revocationCache(ctx, cfg, sugar)
	defer closeCache()

	codec := session.NewCodec(cfg.Session.Secret, cfg.Session.Timeout)
	mgr := session.NewManager(codec, cache, blacklist, sugar, session.Options{RefreshGrace: cfg.Session.RefreshGrace})
	go mgr.Run(ctx, cfg.Session.CleanupInterval)

	recorder := audit.NewRecorder(audits, sugar)
	hasher := user.BcryptHasher{Cost: cfg.BcryptCost}

	userSvc := user.NewUserService(users, hasher, mgr, sugar)
	userSvc.AddDependents(resets, settings)
	mailer := recovery.LogMailer{BaseURL: cfg.Reset.URLBase, Logger: sugar}
	recoverySvc := recovery.NewService(resets, users, hasher, mailer, cfg.Reset.TTL, sugar)

	handler := router.RegisterRoutes(router.Deps{
		Logger:   sugar,
		HTTP:     cfg.HTTP,
		Gate:     gate.New(mgr, users, recorder, sugar),
		Users:    user.NewHandler(userSvc, recorder, sugar),
		Sessions: session.NewHandler(mgr, recorder, sugar),
		Recovery: recovery.NewHandler(recoverySvc, recorder, sugar),
		Settings: setting.NewHandler(setting.NewService(settings), recorder, sugar),
		Audit:    audit.NewHandler(audits, sugar),
		Ping:     db.PingContext,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		sugar.Infow("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	// pending audit writes finish before the database goes away
	recorder.Wait()

	sugar.Info("goodbye")
}

type tableOwner interface {
	EnsureTable(ctx context.Context) error
}

// ensureSchema creates missing tables. users goes first since user_settings
// references it.
func ensureSchema(ctx context.Context, owners ...tableOwner) error {
	for _, o := range owners {
		if err := o.EnsureTable(ctx); err != nil {
			return err
		}
	}
	return nil
}

// revocationCache picks Redis when REDIS_URL is set so revocations are shared
// across instances, and the in-process set otherwise.
func revocationCache(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (session.RevocationCache, func()) {
	if cfg.RedisURL == "" {
		return session.NewMemoryRevocations(), func() {}
	}
	rc, err := session.NewRedisRevocations(ctx, cfg.RedisURL, "")
	if err != nil {
		logger.Warnw("redis unavailable, using in-memory revocation cache", "err", err)
		return session.NewMemoryRevocations(), func() {}
	}
	logger.Infow("using redis revocation cache")
	return rc, func() { _ = rc.Close() }
}
