package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedEvent struct{ userID, action string }

type fakeAuditor struct{ events []recordedEvent }

func (f *fakeAuditor) RecordRequest(_ *http.Request, userID, action, _ string) {
	f.events = append(f.events, recordedEvent{userID, action})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", TokenFromRequest(r))

	r.Header.Set("X-Auth-Token", "xat")
	assert.Equal(t, "xat", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.Header.Set("Authorization", "bearer  def ")
	assert.Equal(t, "def", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic zzz")
	assert.Equal(t, "xat", TokenFromRequest(r))
}

func TestLogoutHandler(t *testing.T) {
	m, _, _, _ := newTestManager(t, time.Hour, 0)
	aud := &fakeAuditor{}
	h := NewHandler(m, aud, zap.NewNop().Sugar())
	s, err := m.Create("u1", "a@b.co", nil)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r = r.WithContext(WithPrincipal(r.Context(), Principal{UserID: "u1", Email: "a@b.co", Token: s.Token}))
	rec := httptest.NewRecorder()
	h.Logout(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", decode(t, rec)["message"])
	_, err = m.Validate(context.Background(), s.Token)
	require.ErrorIs(t, err, ErrInvalidSession)
	require.Len(t, aud.events, 1)
	assert.Equal(t, "LOGOUT", aud.events[0].action)
}

func TestLogoutWithoutPrincipal(t *testing.T) {
	m, _, _, _ := newTestManager(t, time.Hour, 0)
	h := NewHandler(m, nil, zap.NewNop().Sugar())
	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshHandler(t *testing.T) {
	m, _, _, clk := newTestManager(t, time.Hour, time.Hour)
	h := NewHandler(m, nil, zap.NewNop().Sugar())
	s, err := m.Create("u1", "a@b.co", nil)
	require.NoError(t, err)
	clk.add(90 * time.Minute)

	r := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	r.Header.Set("Authorization", "Bearer "+s.Token)
	rec := httptest.NewRecorder()
	h.Refresh(rec, r)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	newToken, _ := body["token"].(string)
	require.NotEmpty(t, newToken)
	assert.NotEqual(t, s.Token, newToken)

	_, err = m.Validate(context.Background(), newToken)
	require.NoError(t, err)

	// the old token was revoked by the refresh
	rec = httptest.NewRecorder()
	h.Refresh(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cannot refresh invalid token")
}

func TestRefreshHandlerMissingToken(t *testing.T) {
	m, _, _, _ := newTestManager(t, time.Hour, time.Hour)
	h := NewHandler(m, nil, zap.NewNop().Sugar())
	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIntrospectHandler(t *testing.T) {
	m, _, _, _ := newTestManager(t, time.Hour, 0)
	h := NewHandler(m, nil, zap.NewNop().Sugar())
	s, err := m.Create("u1", "a@b.co", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Introspect(rec, httptest.NewRequest(http.MethodPost, "/auth/introspect", strings.NewReader(`{"token":"`+s.Token+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "u1", body["userId"])

	m.Destroy(context.Background(), s.Token)
	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/auth/introspect", nil)
	r.Header.Set("X-Auth-Token", s.Token)
	h.Introspect(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["active"])

	rec = httptest.NewRecorder()
	h.Introspect(rec, httptest.NewRequest(http.MethodPost, "/auth/introspect", strings.NewReader(`{bad`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
