package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Bridge-Point/anonamoose-sub001/internal/service"
)

// DirectHandler exposes the redaction pipeline and the rehydration
// store as a standalone HTTP surface, independent of any upstream.
type DirectHandler struct {
	svc service.RedactionService
}

func NewDirectHandler(svc service.RedactionService) *DirectHandler {
	return &DirectHandler{svc: svc}
}

func (h *DirectHandler) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/redact", h.Redact)
	g.POST("/hydrate", h.Hydrate)
}

type redactRequest struct {
	Text      string   `json:"text"`
	SessionID string   `json:"sessionId"`
	Locale    *string  `json:"locale"`
	Layers    []string `json:"layers"`
}

type redactBinding struct {
	Token    string `json:"token"`
	Category string `json:"category"`
}

type redactResponse struct {
	Sanitized string          `json:"sanitized"`
	SessionID string          `json:"sessionId"`
	Bindings  []redactBinding `json:"bindings"`
}

func (h *DirectHandler) Redact(c echo.Context) error {
	var req redactRequest
	if err := c.Bind(&req); err != nil {
		return errResponse(c, http.StatusBadRequest, "BadRequest", "invalid request body", "")
	}

	result, err := h.svc.Redact(c.Request().Context(), service.RedactInput{
		Text:      req.Text,
		SessionID: req.SessionID,
		Locale:    req.Locale,
		Layers:    req.Layers,
	})
	if err != nil {
		return handleSvcError(c, err)
	}

	bindings := make([]redactBinding, len(result.Bindings))
	for i, b := range result.Bindings {
		bindings[i] = redactBinding{Token: b.Token, Category: b.Category}
	}
	return c.JSON(http.StatusOK, redactResponse{
		Sanitized: result.Sanitized,
		SessionID: result.SessionID,
		Bindings:  bindings,
	})
}

type hydrateRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
}

type hydrateResponse struct {
	Text string `json:"text"`
}

func (h *DirectHandler) Hydrate(c echo.Context) error {
	var req hydrateRequest
	if err := c.Bind(&req); err != nil {
		return errResponse(c, http.StatusBadRequest, "BadRequest", "invalid request body", "")
	}

	text, err := h.svc.Hydrate(c.Request().Context(), req.Text, req.SessionID)
	if err != nil {
		return handleSvcError(c, err)
	}
	return c.JSON(http.StatusOK, hydrateResponse{Text: text})
}
