package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
	"github.com/Bridge-Point/anonamoose-sub001/internal/handler"
	"github.com/Bridge-Point/anonamoose-sub001/internal/metrics"
	"github.com/Bridge-Point/anonamoose-sub001/internal/service"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
	storemock "github.com/Bridge-Point/anonamoose-sub001/internal/store/mock"
)

const (
	adminToken = "admin-token"
	statsToken = "stats-token"
)

// In-memory repos backing the real dictionary/settings services.

type fakeDictRepo struct {
	entries []detector.Entry
}

func (r *fakeDictRepo) ListDictionary(context.Context) ([]detector.Entry, error) {
	return r.entries, nil
}

func (r *fakeDictRepo) AddDictionaryEntry(_ context.Context, e detector.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeDictRepo) RemoveDictionaryEntry(_ context.Context, term string) (bool, error) {
	for i, e := range r.entries {
		if e.Term == term {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeSettingsStore struct {
	stored map[string]json.RawMessage
}

func (r *fakeSettingsStore) LoadSettings(context.Context) (map[string]json.RawMessage, error) {
	return r.stored, nil
}

func (r *fakeSettingsStore) SaveSetting(_ context.Context, key string, value json.RawMessage) error {
	if r.stored == nil {
		r.stored = map[string]json.RawMessage{}
	}
	r.stored[key] = value
	return nil
}

func newMgmt(t *testing.T, st store.Store, breaker *detector.Breaker) *echo.Echo {
	t.Helper()
	holder := service.NewSnapshotHolder(service.DefaultSettings(), nil)
	dictionary := service.NewDictionaryService(&fakeDictRepo{}, holder, zap.NewNop())
	settings := service.NewSettingsService(&fakeSettingsStore{}, holder, st, zap.NewNop())

	e := echo.New()
	handler.NewManagementHandler(dictionary, settings, st, metrics.New(), breaker, adminToken, statsToken).Register(e)
	return e
}

func authed(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestMgmt_RequiresBearerToken(t *testing.T) {
	e := newMgmt(t, nil, nil)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/settings", "", authed("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/settings", "", authed(adminToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMgmt_HealthIsOpen(t *testing.T) {
	e := newMgmt(t, nil, nil)
	rec := doJSON(t, e, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMgmt_DictionaryCRUD(t *testing.T) {
	e := newMgmt(t, nil, nil)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/dictionary",
		`{"term":"Falcon","category":"CODENAME"}`, authed(adminToken))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/dictionary", "", authed(adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Falcon")

	rec = doJSON(t, e, http.MethodDelete, "/api/v1/dictionary/Falcon", "", authed(adminToken))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodDelete, "/api/v1/dictionary/never-there", "", authed(adminToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMgmt_SettingsRoundTrip(t *testing.T) {
	e := newMgmt(t, nil, nil)

	rec := doJSON(t, e, http.MethodPut, "/api/v1/settings",
		`{"enableNames":false,"locale":"UK"}`, authed(adminToken))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/settings", "", authed(adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enableNames":false`)
	assert.Contains(t, rec.Body.String(), `"locale":"UK"`)

	rec = doJSON(t, e, http.MethodPut, "/api/v1/settings",
		`{"locale":"XX"}`, authed(adminToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMgmt_SessionEndpoints(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := storemock.NewMockStore(ctrl)
	e := newMgmt(t, st, nil)

	sid := uuid.NewString()
	sess := &store.Session{
		ID:       sid,
		Bindings: []store.TokenBinding{{Token: "t", Original: "o", Category: "EMAIL"}},
	}

	st.EXPECT().Retrieve(gomock.Any(), sid).Return(sess, nil)
	rec := doJSON(t, e, http.MethodGet, "/api/v1/sessions/"+sid, "", authed(adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sid)

	st.EXPECT().Retrieve(gomock.Any(), sid).Return(nil, nil)
	rec = doJSON(t, e, http.MethodGet, "/api/v1/sessions/"+sid, "", authed(adminToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	st.EXPECT().AllSessions(gomock.Any()).Return([]store.Summary{{ID: sid, BindingCount: 1}}, nil)
	rec = doJSON(t, e, http.MethodGet, "/api/v1/sessions", "", authed(adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sid)

	st.EXPECT().Search(gomock.Any(), "EMAIL").Return([]store.Summary{{ID: sid}}, nil)
	rec = doJSON(t, e, http.MethodGet, "/api/v1/sessions/search?q=EMAIL", "", authed(adminToken))
	assert.Equal(t, http.StatusOK, rec.Code)

	st.EXPECT().Extend(gomock.Any(), sid, 30*time.Minute).Return(true, nil)
	rec = doJSON(t, e, http.MethodPost, "/api/v1/sessions/"+sid+"/extend",
		`{"ttlSeconds":1800}`, authed(adminToken))
	assert.Equal(t, http.StatusOK, rec.Code)

	st.EXPECT().Delete(gomock.Any(), sid).Return(true, nil)
	rec = doJSON(t, e, http.MethodDelete, "/api/v1/sessions/"+sid, "", authed(adminToken))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	st.EXPECT().Delete(gomock.Any(), sid).Return(false, nil)
	rec = doJSON(t, e, http.MethodDelete, "/api/v1/sessions/"+sid, "", authed(adminToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	st.EXPECT().DeleteAll(gomock.Any()).Return(3, nil)
	rec = doJSON(t, e, http.MethodDelete, "/api/v1/sessions", "", authed(adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":3`)
}

func TestMgmt_ExtendValidatesTTL(t *testing.T) {
	e := newMgmt(t, nil, nil)
	rec := doJSON(t, e, http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/extend",
		`{"ttlSeconds":-5}`, authed(adminToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMgmt_StatsAcceptsReadOnlyToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st := storemock.NewMockStore(ctrl)
	breaker := detector.NewBreaker(1, time.Minute)
	breaker.Failure()
	e := newMgmt(t, st, breaker)

	st.EXPECT().StorageStats(gomock.Any()).Return(store.Stats{Backend: "local", Sessions: 2, Bindings: 5}, nil).Times(2)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/stats", "", authed(statsToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"local"`)
	assert.Contains(t, rec.Body.String(), `"nerOpen":true`)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/stats", "", authed(adminToken))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/stats", "", authed("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
