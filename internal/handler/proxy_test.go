package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/client"
	"github.com/Bridge-Point/anonamoose-sub001/internal/handler"
	"github.com/Bridge-Point/anonamoose-sub001/internal/metrics"
	"github.com/Bridge-Point/anonamoose-sub001/internal/service"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
	"github.com/Bridge-Point/anonamoose-sub001/internal/token"
)

func newProxy(t *testing.T, upstreamURL string) (*echo.Echo, store.Store) {
	t.Helper()
	svc, holder, st := newTestPipeline(t, service.DefaultSettings())
	e := echo.New()
	e.Use(handler.OptionsMiddleware())
	handler.NewProxyHandler(
		svc, st, holder,
		client.NewUpstream(),
		upstreamURL, upstreamURL,
		metrics.New(), zap.NewNop(),
	).Register(e)
	return e, st
}

// firstToken pulls the first minted token out of a forwarded request
// body.
func firstToken(body []byte) string {
	matches := token.Scan(string(body), token.DefaultOpen, token.DefaultClose)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Token
}

func TestProxyChat_RedactsRequestAndHydratesResponse(t *testing.T) {
	var forwarded []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded, _ = io.ReadAll(r.Body)

		// The gateway must not leak its control headers upstream.
		assert.Empty(t, r.Header.Get("X-Anonamoose-Session"))
		assert.Equal(t, "Bearer sk-caller", r.Header.Get("Authorization"))

		tok := firstToken(forwarded)
		require.NotEmpty(t, tok, "request should carry a token, not the address")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl-1",
			"choices": []any{map[string]any{
				"index":   0,
				"message": map[string]any{"role": "assistant", "content": "Wrote to " + tok + " just now."},
			}},
		})
	}))
	defer upstream.Close()

	e, _ := newProxy(t, upstream.URL)
	rec := doJSON(t, e, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","messages":[{"role":"user","content":"Email dave@example.com about the invoice"}]}`,
		map[string]string{"Authorization": "Bearer sk-caller"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(forwarded), "dave@example.com")
	assert.Contains(t, rec.Body.String(), "Wrote to dave@example.com just now.")
}

func TestProxyChat_RedactionDisabledByHeader(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "dave@example.com")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-2","choices":[]}`))
	}))
	defer upstream.Close()

	e, _ := newProxy(t, upstream.URL)
	rec := doJSON(t, e, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","messages":[{"role":"user","content":"Email dave@example.com"}]}`,
		map[string]string{"X-Anonamoose-Redact": "off"})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProxyChat_StreamingResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		tok := firstToken(body)
		require.NotEmpty(t, tok)

		w.Header().Set("Content-Type", "text/event-stream")
		half := len(tok) / 2
		for _, content := range []string{"Hello ", tok[:half], tok[half:] + "!"} {
			frame, _ := json.Marshal(map[string]any{
				"id": "cmpl-3",
				"choices": []any{map[string]any{
					"index":         0,
					"delta":         map[string]any{"content": content},
					"finish_reason": nil,
				}},
			})
			w.Write([]byte("data: " + string(frame) + "\n\n"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer upstream.Close()

	e, _ := newProxy(t, upstream.URL)
	rec := doJSON(t, e, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"Greet dave@example.com"}]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello dave@example.com!", collectContent(t, rec.Body.String()))
	assert.Contains(t, rec.Body.String(), "data: [DONE]")
}

func TestProxyMessages_RedactsSystemAndBlocks(t *testing.T) {
	var forwarded []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg-1","content":[{"type":"text","text":"done"}]}`))
	}))
	defer upstream.Close()

	e, _ := newProxy(t, upstream.URL)
	rec := doJSON(t, e, http.MethodPost, "/v1/messages",
		`{"model":"claude-sonnet-4-5","system":"User is dave@example.com","messages":[{"role":"user","content":[{"type":"text","text":"My card is 4111 1111 1111 1111"}]}]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	s := string(forwarded)
	assert.NotContains(t, s, "dave@example.com")
	assert.NotContains(t, s, "4111 1111 1111 1111")
	// Structure survives redaction.
	assert.Equal(t, "claude-sonnet-4-5", gjson.Get(s, "model").String())
	assert.Equal(t, "text", gjson.Get(s, "messages.0.content.0.type").String())
}

func TestProxyEmbeddings_RedactsInputNoHydration(t *testing.T) {
	var forwarded []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer upstream.Close()

	e, _ := newProxy(t, upstream.URL)
	rec := doJSON(t, e, http.MethodPost, "/v1/embeddings",
		`{"model":"text-embedding-3-small","input":["dave@example.com","no pii"]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(forwarded), "dave@example.com")
	assert.Equal(t, "no pii", gjson.GetBytes(forwarded, "input.1").String())
	assert.Contains(t, rec.Body.String(), "embedding")
}

func TestProxy_UpstreamErrorPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer upstream.Close()

	e, _ := newProxy(t, upstream.URL)
	rec := doJSON(t, e, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad key")
}

func TestProxy_InvalidPinnedSessionRejected(t *testing.T) {
	e, _ := newProxy(t, "http://127.0.0.1:0")
	rec := doJSON(t, e, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","messages":[]}`,
		map[string]string{"X-Anonamoose-Session": "not-a-uuid"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidSessionId")
}
