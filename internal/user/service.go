package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-finance-go/pkg/utilities"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash reports whether hash was made with a different cost than configured.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return c != b.cost()
}

// Store is the subset of the users table the service needs.
type Store interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}

// Sessions is the part of the session manager used by login and account removal.
type Sessions interface {
	Create(userID, email string, extra map[string]any) (*session.Session, error)
	Destroy(ctx context.Context, token string)
}

var (
	ErrFieldsRequired      = errors.New("All fields are required.")
	ErrLoginFieldsRequired = errors.New("Email and password are required.")
	ErrPasswordMismatch    = errors.New("New password and confirmation do not match.")
	ErrEmailTaken          = errors.New("email already registered")
	ErrBadCredentials      = errors.New("invalid credentials")
	ErrDeactivated         = errors.New("account deactivated")
	ErrUserNotFound        = errors.New("user not found")
	ErrWrongPassword       = errors.New("current password is incorrect")
)

// IsValidation reports whether err is an input validation failure whose
// message can be shown to the client as is.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrFieldsRequired, ErrLoginFieldsRequired, ErrPasswordMismatch,
		ErrInvalidEmail, ErrWeakPassword, ErrInvalidName,
		ErrInvalidDate, ErrFutureDate, ErrTooYoung,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// Dependent owns rows tied to a user that must be removed with the account.
type Dependent interface {
	DeleteForUser(ctx context.Context, userID, email string) error
}

// UserService orchestrates registration, login and account lifecycle flows.
type UserService struct {
	repo     Store
	hasher   PasswordHasher
	sessions Sessions
	logger   *zap.SugaredLogger
	now      func() time.Time

	dependents []Dependent

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(r Store, hasher PasswordHasher, sessions Sessions, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{repo: r, hasher: hasher, sessions: sessions, logger: logger, now: time.Now}
}

// AddDependents registers stores that are purged when an account is deleted.
func (s *UserService) AddDependents(d ...Dependent) {
	s.dependents = append(s.dependents, d...)
}

// RegisterInput is the raw registration payload.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Day      FlexInt
	Month    FlexInt
	Year     FlexInt
}

// Register validates the input, rejects a taken email and stores the new
// account. It returns the new user id.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (string, error) {
	if in.Email == "" || in.Password == "" || in.FullName == "" || !in.Day.Set || !in.Month.Set || !in.Year.Set {
		return "", ErrFieldsRequired
	}
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return "", err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return "", err
	}
	name := NormalizeName(in.FullName)
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dob, err := ParseBirthDate(in.Day.Value, in.Month.Value, in.Year.Value, s.now())
	if err != nil {
		return "", err
	}

	taken, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		return "", ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{
		ID:           utilities.NewKSUID(),
		Email:        email,
		PasswordHash: hash,
		FullName:     name,
		DateOfBirth:  dob,
		Role:         entity.RoleUser,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	s.logger.Infow("user registered", "user_id", u.ID)
	return u.ID, nil
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Session *session.Session
	User    *entity.User
}

// Login authenticates by email and password and opens a session.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, ErrLoginFieldsRequired
	}
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// spend the same bcrypt time as a real comparison
			s.hasher.Verify(s.dummy(), password)
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	if !u.IsActive {
		return nil, ErrDeactivated
	}

	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	t := now.UTC().Truncate(time.Second)
	u.LastLogin = &t

	if s.hasher.NeedsRehash(u.PasswordHash) {
		if h, err := s.hasher.Hash(password); err == nil {
			if err := s.repo.UpdatePassword(ctx, u.ID, h); err != nil {
				s.logger.Warnw("password rehash failed", "user_id", u.ID, "err", err)
			}
		}
	}

	sess, err := s.sessions.Create(u.ID, u.Email, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &LoginResult{Session: sess, User: u}, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("dummy-password-for-timing")
		if err != nil {
			s.logger.Warnw("dummy hash failed", "err", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Profile returns the user with the given id.
func (s *UserService) Profile(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// ChangePassword replaces the password of an authenticated user after
// re-checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, id, current, next, confirm string) error {
	if current == "" || next == "" || confirm == "" {
		return ErrFieldsRequired
	}
	if next != confirm {
		return ErrPasswordMismatch
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}
	u, err := s.Profile(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(u.PasswordHash, current) {
		return ErrWrongPassword
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteAccount removes the user together with dependent rows and revokes
// the token used for the request.
func (s *UserService) DeleteAccount(ctx context.Context, id, token string) error {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return err
	}
	for _, d := range s.dependents {
		if err := d.DeleteForUser(ctx, u.ID, u.Email); err != nil {
			return fmt.Errorf("delete dependent data: %w", err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if token != "" {
		s.sessions.Destroy(ctx, token)
	}
	s.logger.Infow("account deleted", "user_id", id)
	return nil
}
