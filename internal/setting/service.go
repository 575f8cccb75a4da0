// Package setting holds per-user preferences such as language and currency.
package setting

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/setting/entity"
)

var (
	ErrLanguage = errors.New("Language must be one of: al, en.")
	ErrCurrency = errors.New("Currency must be one of: ALL, EUR, USD.")
	ErrTimezone = errors.New("Timezone is not recognized.")
)

var (
	languages  = map[string]bool{"al": true, "en": true}
	currencies = map[string]bool{"ALL": true, "EUR": true, "USD": true}
)

type Store interface {
	Get(ctx context.Context, userID string) (*entity.Settings, error)
	Upsert(ctx context.Context, s *entity.Settings) error
}

// Service reads and updates user settings.
type Service struct {
	repo Store
	now  func() time.Time
}

func NewService(r Store) *Service {
	return &Service{repo: r, now: time.Now}
}

// Get returns the stored settings or the defaults when none were saved.
func (s *Service) Get(ctx context.Context, userID string) (*entity.Settings, error) {
	st, err := s.repo.Get(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Defaults(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Update validates p, applies it over the current settings and saves the result.
func (s *Service) Update(ctx context.Context, userID string, p entity.Patch) (*entity.Settings, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	st, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Apply(st)
	st.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Validate checks the set fields of p.
func Validate(p entity.Patch) error {
	if p.Language != nil && !languages[*p.Language] {
		return ErrLanguage
	}
	if p.Currency != nil && !currencies[*p.Currency] {
		return ErrCurrency
	}
	if p.Timezone != nil {
		if *p.Timezone == "" {
			return ErrTimezone
		}
		if _, err := time.LoadLocation(*p.Timezone); err != nil {
			return ErrTimezone
		}
	}
	return nil
}

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrLanguage) || errors.Is(err, ErrCurrency) || errors.Is(err, ErrTimezone)
}
