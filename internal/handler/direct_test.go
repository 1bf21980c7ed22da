package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
	"github.com/Bridge-Point/anonamoose-sub001/internal/handler"
	"github.com/Bridge-Point/anonamoose-sub001/internal/metrics"
	"github.com/Bridge-Point/anonamoose-sub001/internal/service"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
	"github.com/Bridge-Point/anonamoose-sub001/internal/token"
)

// newTestPipeline wires a real redaction service over a local store,
// shared by the direct and proxy handler tests.
func newTestPipeline(t *testing.T, settings service.Settings) (service.RedactionService, *service.SnapshotHolder, store.Store) {
	t.Helper()
	holder := service.NewSnapshotHolder(settings, nil)
	st := store.NewLocal(token.DefaultOpen, token.DefaultClose, 100)
	svc := service.NewRedactionService(
		holder, st, nil,
		detector.NewRegexDetector(zap.NewNop()),
		detector.NewNameDetector(),
		time.Hour,
		metrics.New(), nil, zap.NewNop(),
	)
	return svc, holder, st
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestDirectRedactAndHydrate(t *testing.T) {
	svc, holder, _ := newTestPipeline(t, service.DefaultSettings())
	e := echo.New()
	handler.NewDirectHandler(svc).Register(e)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/redact",
		`{"text":"Reach dave@example.com for access"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var redacted struct {
		Sanitized string `json:"sanitized"`
		SessionID string `json:"sessionId"`
		Bindings  []struct {
			Token    string `json:"token"`
			Category string `json:"category"`
		} `json:"bindings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redacted))

	_, err := uuid.Parse(redacted.SessionID)
	require.NoError(t, err)
	assert.NotContains(t, redacted.Sanitized, "dave@example.com")
	require.Len(t, redacted.Bindings, 1)
	assert.Equal(t, "EMAIL", redacted.Bindings[0].Category)
	assert.True(t, holder.Current().Tokens.IsToken(redacted.Bindings[0].Token))

	body, _ := json.Marshal(map[string]string{
		"text":      redacted.Sanitized,
		"sessionId": redacted.SessionID,
	})
	rec = doJSON(t, e, http.MethodPost, "/api/v1/hydrate", string(body), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var hydrated struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hydrated))
	assert.Equal(t, "Reach dave@example.com for access", hydrated.Text)
}

func TestDirectRedact_PinnedSession(t *testing.T) {
	svc, _, st := newTestPipeline(t, service.DefaultSettings())
	e := echo.New()
	handler.NewDirectHandler(svc).Register(e)

	sid := uuid.NewString()
	body, _ := json.Marshal(map[string]any{
		"text":      "dave@example.com",
		"sessionId": sid,
		"layers":    []string{"regex"},
	})
	rec := doJSON(t, e, http.MethodPost, "/api/v1/redact", string(body), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := st.Retrieve(t.Context(), sid)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Len(t, sess.Bindings, 1)
}

func TestDirectRedact_InvalidSessionID(t *testing.T) {
	svc, _, _ := newTestPipeline(t, service.DefaultSettings())
	e := echo.New()
	handler.NewDirectHandler(svc).Register(e)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/redact",
		`{"text":"hi","sessionId":"nope"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidSessionId")
}

func TestDirectHydrate_UnknownSessionVerbatim(t *testing.T) {
	svc, _, _ := newTestPipeline(t, service.DefaultSettings())
	e := echo.New()
	handler.NewDirectHandler(svc).Register(e)

	body, _ := json.Marshal(map[string]string{
		"text":      "plain text",
		"sessionId": uuid.NewString(),
	})
	rec := doJSON(t, e, http.MethodPost, "/api/v1/hydrate", string(body), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plain text")
}
