package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/client"
	"github.com/Bridge-Point/anonamoose-sub001/internal/metrics"
	"github.com/Bridge-Point/anonamoose-sub001/internal/service"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
)

// ProxyHandler is the mediator between clients and the upstream LLM
// providers: it redacts request text, forwards with the caller's auth,
// and rehydrates the response, streaming or buffered.
type ProxyHandler struct {
	svc           service.RedactionService
	st            store.Store
	holder        *service.SnapshotHolder
	upstream      client.Upstream
	openaiBase    string
	anthropicBase string
	counters      *metrics.Counters
	log           *zap.Logger
}

func NewProxyHandler(
	svc service.RedactionService,
	st store.Store,
	holder *service.SnapshotHolder,
	upstream client.Upstream,
	openaiBase, anthropicBase string,
	counters *metrics.Counters,
	log *zap.Logger,
) *ProxyHandler {
	return &ProxyHandler{
		svc:           svc,
		st:            st,
		holder:        holder,
		upstream:      upstream,
		openaiBase:    openaiBase,
		anthropicBase: anthropicBase,
		counters:      counters,
		log:           log,
	}
}

func (h *ProxyHandler) Register(e *echo.Echo) {
	e.POST("/v1/chat/completions", h.ChatCompletions)
	e.POST("/chat/completions", h.ChatCompletions)
	e.POST("/v1/embeddings", h.Embeddings)
	e.GET("/v1/models", h.Models)
	e.POST("/v1/messages", h.Messages)
}

func (h *ProxyHandler) ChatCompletions(c echo.Context) error {
	return h.mediate(c, h.openaiBase, "/v1/chat/completions", redactChatBody, true)
}

func (h *ProxyHandler) Messages(c echo.Context) error {
	return h.mediate(c, h.anthropicBase, "/v1/messages", redactMessagesBody, true)
}

func (h *ProxyHandler) Embeddings(c echo.Context) error {
	// Embedding vectors carry no rehydratable text.
	return h.mediate(c, h.openaiBase, "/v1/embeddings", redactEmbeddingsBody, false)
}

// Models is a plain pass-through: no request text, no response PII.
func (h *ProxyHandler) Models(c echo.Context) error {
	resp, err := h.upstream.Do(c.Request().Context(), h.openaiBase, http.MethodGet, "/v1/models",
		c.Request().Header, nil)
	if err != nil {
		h.counters.UpstreamError()
		return errResponse(c, http.StatusBadGateway, "UpstreamError", "upstream request failed", err.Error())
	}
	defer resp.Body.Close()
	return h.passthrough(c, resp)
}

// mediate is the shared request/response path: parse, redact, forward,
// rehydrate.
func (h *ProxyHandler) mediate(
	c echo.Context,
	base, path string,
	redactBody func(map[string]any, func(string) (string, error)) error,
	hydrateResponse bool,
) error {
	ctx := c.Request().Context()
	opts := requestOptions(c)

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errResponse(c, http.StatusBadRequest, "BadRequest", "unreadable request body", "")
	}

	sessionID := opts.SessionID
	if opts.Redact && len(raw) > 0 {
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			return errResponse(c, http.StatusBadRequest, "BadRequest", "request body is not a JSON object", "")
		}
		redact := func(text string) (string, error) {
			res, err := h.svc.Redact(ctx, service.RedactInput{
				Text:      text,
				SessionID: sessionID,
				Locale:    opts.Locale,
			})
			if err != nil {
				return "", err
			}
			sessionID = res.SessionID
			return res.Sanitized, nil
		}
		if err := redactBody(body, redact); err != nil {
			if errors.Is(err, store.ErrInvalidSessionID) {
				return handleSvcError(c, err)
			}
			h.log.Error("request redaction failed", zap.Error(err))
			return errResponse(c, http.StatusBadGateway, "PipelineError", "redaction pipeline failed", err.Error())
		}
		if raw, err = json.Marshal(body); err != nil {
			return errResponse(c, http.StatusInternalServerError, "Internal", "internal error", "")
		}
	}

	wantStream := gjson.GetBytes(raw, "stream").Bool()

	resp, err := h.upstream.Do(ctx, base, c.Request().Method, path, c.Request().Header, bytes.NewReader(raw))
	if err != nil {
		h.counters.UpstreamError()
		return errResponse(c, http.StatusBadGateway, "UpstreamError", "upstream request failed", err.Error())
	}
	defer resp.Body.Close()

	// Provider errors are forwarded as-is, status and body.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.counters.UpstreamError()
		return h.passthrough(c, resp)
	}

	if !hydrateResponse || !opts.Hydrate || sessionID == "" {
		return h.passthrough(c, resp)
	}

	// The session is on the critical path now: a backend fault here
	// must surface rather than silently returning tokenized text.
	sess, err := h.st.Retrieve(ctx, sessionID)
	if err != nil {
		return handleSvcError(c, err)
	}
	if sess == nil {
		return h.passthrough(c, resp)
	}

	snap := h.holder.Current()
	prefix, suffix := snap.Settings.Sentinels()
	hydrate := func(text string) string {
		return store.HydrateText(text, sess, prefix, suffix)
	}

	if wantStream && strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		copyResponseHeaders(c, resp)
		c.Response().WriteHeader(resp.StatusCode)
		rehydrator := NewSSERehydrator(hydrate, prefix, suffix, snap.Tokens.MaxLen(), h.counters, h.log)
		if err := rehydrator.Copy(c.Response(), resp.Body, func() { c.Response().Flush() }); err != nil {
			// Headers are long gone; all we can do is log and drop.
			h.log.Warn("stream rehydration aborted", zap.Error(err))
		}
		return nil
	}

	upstreamBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errResponse(c, http.StatusBadGateway, "UpstreamError", "upstream response read failed", err.Error())
	}
	var parsed any
	if err := json.Unmarshal(upstreamBody, &parsed); err != nil {
		// Not JSON: hydrate the raw text.
		return c.Blob(resp.StatusCode, resp.Header.Get("Content-Type"), []byte(hydrate(string(upstreamBody))))
	}
	hydrated, err := json.Marshal(hydrateValue(parsed, hydrate))
	if err != nil {
		return errResponse(c, http.StatusInternalServerError, "Internal", "internal error", "")
	}
	return c.Blob(resp.StatusCode, resp.Header.Get("Content-Type"), hydrated)
}

// passthrough copies an upstream response to the client unmodified,
// streaming chunk by chunk.
func (h *ProxyHandler) passthrough(c echo.Context, resp *http.Response) error {
	copyResponseHeaders(c, resp)
	c.Response().WriteHeader(resp.StatusCode)

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := c.Response().Write(buf[:n]); werr != nil {
				return nil
			}
			c.Response().Flush()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			h.log.Warn("upstream body copy interrupted", zap.Error(err))
			return nil
		}
	}
}

func copyResponseHeaders(c echo.Context, resp *http.Response) {
	for _, key := range []string{"Content-Type", "Cache-Control", "X-Request-Id"} {
		if v := resp.Header.Get(key); v != "" {
			c.Response().Header().Set(key, v)
		}
	}
}

// ── request body walkers ─────────────────────────────────────────────────
//
// Only role-scoped text fields are redacted: content strings, content
// block text, and tool_result content. Structural identifiers (roles,
// model names, tool ids, function arguments) are never touched.

func redactChatBody(body map[string]any, redact func(string) (string, error)) error {
	messages, _ := body["messages"].([]any)
	for _, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}
		if err := redactContentField(msg, "content", redact); err != nil {
			return err
		}
	}
	return nil
}

func redactMessagesBody(body map[string]any, redact func(string) (string, error)) error {
	if err := redactContentField(body, "system", redact); err != nil {
		return err
	}
	return redactChatBody(body, redact)
}

func redactEmbeddingsBody(body map[string]any, redact func(string) (string, error)) error {
	switch input := body["input"].(type) {
	case string:
		out, err := redact(input)
		if err != nil {
			return err
		}
		body["input"] = out
	case []any:
		for i, item := range input {
			s, ok := item.(string)
			if !ok {
				continue
			}
			out, err := redact(s)
			if err != nil {
				return err
			}
			input[i] = out
		}
	}
	return nil
}

// redactContentField handles the string-or-blocks content shape both
// upstream protocols share.
func redactContentField(obj map[string]any, key string, redact func(string) (string, error)) error {
	switch content := obj[key].(type) {
	case string:
		out, err := redact(content)
		if err != nil {
			return err
		}
		obj[key] = out
	case []any:
		for _, b := range content {
			block, ok := b.(map[string]any)
			if !ok {
				continue
			}
			switch block["type"] {
			case "text":
				if err := redactContentField(block, "text", redact); err != nil {
					return err
				}
			case "tool_result":
				if err := redactContentField(block, "content", redact); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// hydrateValue rewrites every string leaf. Tokens only ever appear
// where the gateway spliced them, so hydrating a non-text field is a
// no-op.
func hydrateValue(v any, hydrate func(string) string) any {
	switch t := v.(type) {
	case string:
		return hydrate(t)
	case map[string]any:
		for k, vv := range t {
			t[k] = hydrateValue(vv, hydrate)
		}
		return t
	case []any:
		for i := range t {
			t[i] = hydrateValue(t[i], hydrate)
		}
		return t
	default:
		return v
	}
}
