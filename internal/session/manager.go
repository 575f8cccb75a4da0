// Package session issues and checks JWT session tokens and keeps the two-tier
// revocation list (fast cache plus durable store).
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/utilities"
)

// RevocationScope keys the digest under which revoked tokens are stored.
const RevocationScope = "session.revocation.v1"

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrCannotRefresh  = errors.New("cannot refresh invalid token")
)

// BlacklistStore is the durable revocation tier.
type BlacklistStore interface {
	Upsert(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	Exists(ctx context.Context, tokenHash string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Options struct {
	// RefreshGrace bounds how long after expiry a token may still be refreshed.
	RefreshGrace time.Duration
}

type Manager struct {
	codec  *Codec
	cache  RevocationCache
	store  BlacklistStore
	logger *zap.SugaredLogger
	grace  time.Duration
	now    func() time.Time
}

func NewManager(codec *Codec, cache RevocationCache, store BlacklistStore, logger *zap.SugaredLogger, opts Options) *Manager {
	if cache == nil {
		cache = NewMemoryRevocations()
	}
	return &Manager{
		codec:  codec,
		cache:  cache,
		store:  store,
		logger: logger,
		grace:  opts.RefreshGrace,
		now:    time.Now,
	}
}

func digest(token string) string { return utilities.ScopedDigest(RevocationScope, token) }

// Create mints a session token. extra is carried in the token but not
// interpreted by the manager.
func (m *Manager) Create(userID, email string, extra map[string]any) (*Session, error) {
	token, exp, err := m.codec.Sign(userID, email, extra)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, UserID: userID, Email: email}, nil
}

// Validate returns the identity behind token, or ErrInvalidSession when the
// token is revoked in either tier, badly signed or expired. Store failures
// count as invalid.
func (m *Manager) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	d := digest(token)
	revoked, err := m.cache.Contains(ctx, d)
	if err != nil {
		// the durable tier is still consulted below
		m.logger.Warnw("revocation cache lookup failed", "err", err)
	}
	if revoked {
		return nil, ErrInvalidSession
	}
	if m.store != nil {
		revoked, err = m.store.Exists(ctx, d)
		if err != nil {
			m.logger.Errorw("blacklist lookup failed", "err", err)
			return nil, ErrInvalidSession
		}
		if revoked {
			return nil, ErrInvalidSession
		}
	}
	claims, err := m.codec.Parse(token)
	if err != nil {
		m.logger.Debugw("token rejected", "err", err)
		return nil, ErrInvalidSession
	}
	return identityOf(claims), nil
}

// Destroy revokes token. The cache is updated first so the token is rejected
// immediately; the durable write is best effort.
func (m *Manager) Destroy(ctx context.Context, token string) {
	if token == "" {
		return
	}
	d := digest(token)
	var (
		userID string
		exp    time.Time
	)
	claims, err := m.codec.Decode(token)
	if err == nil && claims.ExpiresAt != nil {
		userID = claims.UserID
		exp = claims.ExpiresAt.Time.UTC()
	}
	ttl := time.Duration(0)
	if !exp.IsZero() {
		ttl = exp.Sub(m.now())
	}
	if err := m.cache.Add(ctx, d, ttl); err != nil {
		m.logger.Warnw("revocation cache add failed", "err", err)
	}
	if exp.IsZero() || m.store == nil {
		return
	}
	if err := m.store.Upsert(context.WithoutCancel(ctx), d, userID, exp); err != nil {
		m.logger.Errorw("failed to persist revoked token", "user_id", userID, "err", err)
	}
}

// Refresh issues a new token for the holder of token. The old token must be
// correctly signed, not revoked and expired no longer ago than the grace
// window.
func (m *Manager) Refresh(ctx context.Context, token string) (*Session, error) {
	claims, err := m.codec.ParseIgnoringExpiry(token)
	if err != nil {
		return nil, ErrCannotRefresh
	}
	if claims.ExpiresAt == nil || m.now().After(claims.ExpiresAt.Add(m.grace)) {
		return nil, ErrCannotRefresh
	}
	d := digest(token)
	if revoked, _ := m.cache.Contains(ctx, d); revoked {
		return nil, ErrCannotRefresh
	}
	if m.store != nil {
		revoked, err := m.store.Exists(ctx, d)
		if err != nil || revoked {
			if err != nil {
				m.logger.Errorw("blacklist lookup failed", "err", err)
			}
			return nil, ErrCannotRefresh
		}
	}
	return m.Create(claims.UserID, claims.Email, claims.Extra)
}

// Cleanup empties the cache and drops durable entries of tokens that have
// expired. Failures are logged only.
func (m *Manager) Cleanup(ctx context.Context) {
	if err := m.cache.Clear(ctx); err != nil {
		m.logger.Warnw("revocation cache clear failed", "err", err)
	} else {
		m.logger.Debugw("revocation cache cleared")
	}
	if m.store == nil {
		return
	}
	n, err := m.store.DeleteExpired(ctx, m.now().UTC().Truncate(time.Second))
	if err != nil {
		m.logger.Errorw("blacklist cleanup failed", "err", err)
		return
	}
	m.logger.Infow("blacklist cleanup", "removed", n)
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Cleanup(ctx)
		}
	}
}

// IsWellFormed is a cheap shape check: three non-empty dot separated parts.
func IsWellFormed(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

func identityOf(c *Claims) *Identity {
	id := &Identity{UserID: c.UserID, Email: c.Email}
	if c.IssuedAt != nil {
		id.CreatedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return id
}
