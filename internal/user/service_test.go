package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-finance-go/internal/user/entity"
)

type fakeStore struct {
	mu        sync.Mutex
	byID      map[string]*entity.User
	createErr error
	getErr    error
}

func newFakeStore() *fakeStore { return &fakeStore{byID: map[string]*entity.User{}} }

func (f *fakeStore) Create(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, x := range f.byID {
		if x.Email == u.Email {
			return errors.New("UNIQUE constraint failed: users.email")
		}
	}
	u.IsActive = true
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		t := at
		u.LastLogin = &t
	}
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.byID, id)
	return nil
}

type fakeSessions struct {
	created   []string
	destroyed []string
}

func (f *fakeSessions) Create(userID, email string, _ map[string]any) (*session.Session, error) {
	f.created = append(f.created, userID)
	return &session.Session{Token: "tok-" + userID, ExpiresAt: time.Now().Add(time.Hour), UserID: userID, Email: email}, nil
}

func (f *fakeSessions) Destroy(_ context.Context, token string) {
	f.destroyed = append(f.destroyed, token)
}

type fakeDependent struct {
	calls []string
	err   error
}

func (f *fakeDependent) DeleteForUser(_ context.Context, userID, email string) error {
	f.calls = append(f.calls, userID+"|"+email)
	return f.err
}

const goodPassword = "Str0ng!pass"

func newTestService(t *testing.T) (*UserService, *fakeStore, *fakeSessions) {
	t.Helper()
	store := newFakeStore()
	sess := &fakeSessions{}
	svc := NewUserService(store, BcryptHasher{Cost: bcrypt.MinCost}, sess, zap.NewNop().Sugar())
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc, store, sess
}

func validInput() RegisterInput {
	return RegisterInput{
		Email:    "  Ana@Example.com ",
		Password: goodPassword,
		FullName: "Ana  Hoxha",
		Day:      FlexInt{Value: 17, Set: true},
		Month:    FlexInt{Value: 5, Set: true},
		Year:     FlexInt{Value: 1990, Set: true},
	}
}

func TestRegister(t *testing.T) {
	svc, store, sess := newTestService(t)

	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	u := store.byID[id]
	require.NotNil(t, u)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, "Ana Hoxha", u.FullName)
	assert.NotEqual(t, goodPassword, u.PasswordHash)
	assert.True(t, BcryptHasher{}.Verify(u.PasswordHash, goodPassword))
	assert.Equal(t, time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC), u.DateOfBirth)
	assert.Empty(t, sess.created, "registration must not open a session")
}

func TestRegisterValidationOrder(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := validInput()
	in.Year = FlexInt{}
	_, err := svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrFieldsRequired)

	in = validInput()
	in.Email = "bad"
	in.Password = "weak"
	_, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidEmail)

	in = validInput()
	in.Password = "weak"
	in.FullName = "X"
	_, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrWeakPassword)

	in = validInput()
	in.FullName = "X"
	_, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidName)

	in = validInput()
	in.Year = FlexInt{Value: 2020, Set: true}
	_, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrTooYoung)
	assert.True(t, IsValidation(err))
}

func TestPasswordOverBcryptLimitIsRejected(t *testing.T) {
	svc, store, _ := newTestService(t)

	for _, pw := range []string{
		"Aa1!" + strings.Repeat("x", 69),  // 73 bytes
		"Aa1!" + strings.Repeat("x", 124), // 128 characters
	} {
		in := validInput()
		in.Password = pw
		_, err := svc.Register(context.Background(), in)
		assert.ErrorIs(t, err, ErrWeakPassword)
		assert.True(t, IsValidation(err))
	}
	assert.Empty(t, store.byID)

	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	long := "Aa1!" + strings.Repeat("x", 124)
	err = svc.ChangePassword(context.Background(), id, goodPassword, long, long)
	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.True(t, IsValidation(err))
	assert.True(t, svc.hasher.Verify(store.byID[id].PasswordHash, goodPassword))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.Email = "ANA@example.com"
	_, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUniqueViolationRace(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.createErr = &pq.Error{Code: "23505"}
	_, err := svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc, store, sess := newTestService(t)
	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	res, err := svc.Login(context.Background(), " ANA@example.com", goodPassword)
	require.NoError(t, err)
	assert.Equal(t, id, res.User.ID)
	assert.Equal(t, "tok-"+id, res.Session.Token)
	assert.Equal(t, []string{id}, sess.created)
	require.NotNil(t, store.byID[id].LastLogin)
}

func TestLoginFailures(t *testing.T) {
	svc, store, sess := newTestService(t)
	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "", goodPassword)
	assert.ErrorIs(t, err, ErrLoginFieldsRequired)

	_, err = svc.Login(context.Background(), "not-an-email", goodPassword)
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, errUnknown := svc.Login(context.Background(), "ghost@example.com", goodPassword)
	_, errWrong := svc.Login(context.Background(), "ana@example.com", "Wr0ng!pass")
	assert.ErrorIs(t, errUnknown, ErrBadCredentials)
	assert.ErrorIs(t, errWrong, ErrBadCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	store.byID[id].IsActive = false
	_, err = svc.Login(context.Background(), "ana@example.com", goodPassword)
	assert.ErrorIs(t, err, ErrDeactivated)

	assert.Empty(t, sess.created)
}

func TestLoginRehashesOnCostChange(t *testing.T) {
	svc, store, _ := newTestService(t)
	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	old := store.byID[id].PasswordHash

	svc.hasher = BcryptHasher{Cost: bcrypt.MinCost + 1}
	_, err = svc.Login(context.Background(), "ana@example.com", goodPassword)
	require.NoError(t, err)

	assert.NotEqual(t, old, store.byID[id].PasswordHash)
	cost, err := bcrypt.Cost([]byte(store.byID[id].PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestChangePassword(t *testing.T) {
	svc, store, _ := newTestService(t)
	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), id, goodPassword, "N3w!password", "different")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	err = svc.ChangePassword(context.Background(), id, "Wr0ng!pass", "N3w!password", "N3w!password")
	assert.ErrorIs(t, err, ErrWrongPassword)

	err = svc.ChangePassword(context.Background(), id, goodPassword, "weak", "weak")
	assert.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, svc.ChangePassword(context.Background(), id, goodPassword, "N3w!password", "N3w!password"))
	assert.True(t, svc.hasher.Verify(store.byID[id].PasswordHash, "N3w!password"))
}

func TestDeleteAccount(t *testing.T) {
	svc, store, sess := newTestService(t)
	dep := &fakeDependent{}
	svc.AddDependents(dep)
	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(context.Background(), id, "tok"))
	assert.Empty(t, store.byID)
	assert.Equal(t, []string{"tok"}, sess.destroyed)
	assert.Equal(t, []string{id + "|ana@example.com"}, dep.calls)

	err = svc.DeleteAccount(context.Background(), id, "tok")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteAccountDependentFailureKeepsUser(t *testing.T) {
	svc, store, sess := newTestService(t)
	svc.AddDependents(&fakeDependent{err: errors.New("db down")})
	id, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	require.Error(t, svc.DeleteAccount(context.Background(), id, "tok"))
	assert.Contains(t, store.byID, id)
	assert.Empty(t, sess.destroyed)
}

func TestProfileNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Profile(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
