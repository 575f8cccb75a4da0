// Package recovery implements the forgot-password and reset-password flows.
package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/recovery/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/utilities"
)

// ResetScope keys the digest of stored reset tokens.
const ResetScope = "recovery.reset.v1"

const tokenBytes = 32

var (
	ErrEmailRequired = errors.New("Email is required.")
	ErrInvalidToken  = errors.New("Invalid or expired password reset token.")
)

type ResetStore interface {
	Upsert(ctx context.Context, p *entity.PasswordReset) error
	GetByEmail(ctx context.Context, email string) (*entity.PasswordReset, error)
	DeleteByEmail(ctx context.Context, email string) error
}

type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePasswordByEmail(ctx context.Context, email, hash string) error
}

type Service struct {
	resets ResetStore
	users  UserStore
	hasher user.PasswordHasher
	mailer Mailer
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(resets ResetStore, users UserStore, hasher user.PasswordHasher, mailer Mailer, ttl time.Duration, logger *zap.SugaredLogger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		resets: resets,
		users:  users,
		hasher: hasher,
		mailer: mailer,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Forgot starts a reset for email if an account exists. The outcome is never
// reported to the caller; only a missing email is an error.
func (s *Service) Forgot(ctx context.Context, email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	email = user.NormalizeEmail(email)
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		s.logger.Errorw("forgot password lookup failed", "err", err)
		return nil
	}
	if !exists {
		s.logger.Debugw("forgot password for unknown email")
		return nil
	}

	token, err := utilities.RandomHex(tokenBytes)
	if err != nil {
		s.logger.Errorw("reset token generation failed", "err", err)
		return nil
	}
	now := s.now().UTC().Truncate(time.Second)
	rec := &entity.PasswordReset{
		Email:     email,
		TokenHash: utilities.ScopedDigest(ResetScope, token),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.resets.Upsert(ctx, rec); err != nil {
		s.logger.Errorw("store reset token failed", "err", err)
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, email, token); err != nil {
		s.logger.Errorw("send reset email failed", "err", err)
	}
	return nil
}

// Reset sets a new password when token matches the pending reset of email
// and has not expired. The reset is consumed on success.
func (s *Service) Reset(ctx context.Context, email, token, password string) error {
	if err := user.ValidatePassword(password); err != nil {
		return err
	}
	email = user.NormalizeEmail(email)
	if email == "" || token == "" {
		return ErrInvalidToken
	}
	rec, err := s.resets.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup reset: %w", err)
	}
	if !s.now().Before(rec.ExpiresAt) {
		return ErrInvalidToken
	}
	if !utilities.ConstantTimeCompare(utilities.ScopedDigest(ResetScope, token), rec.TokenHash) {
		return ErrInvalidToken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordByEmail(ctx, email, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.resets.DeleteByEmail(ctx, email)
			return ErrInvalidToken
		}
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.resets.DeleteByEmail(ctx, email); err != nil {
		s.logger.Warnw("delete consumed reset failed", "err", err)
	}
	return nil
}
