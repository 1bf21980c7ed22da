package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
	"github.com/Bridge-Point/anonamoose-sub001/internal/metrics"
	"github.com/Bridge-Point/anonamoose-sub001/internal/service"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
)

// ManagementHandler serves the operator API on the management
// listener: dictionary and settings CRUD, session administration, and
// stats.
type ManagementHandler struct {
	dictionary service.DictionaryService
	settings   service.SettingsService
	st         store.Store
	counters   *metrics.Counters
	breaker    *detector.Breaker
	apiToken   string
	statsToken string
}

func NewManagementHandler(
	dictionary service.DictionaryService,
	settings service.SettingsService,
	st store.Store,
	counters *metrics.Counters,
	breaker *detector.Breaker,
	apiToken, statsToken string,
) *ManagementHandler {
	return &ManagementHandler{
		dictionary: dictionary,
		settings:   settings,
		st:         st,
		counters:   counters,
		breaker:    breaker,
		apiToken:   apiToken,
		statsToken: statsToken,
	}
}

func (h *ManagementHandler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1", BearerAuth(h.apiToken))
	g.GET("/dictionary", h.ListDictionary)
	g.POST("/dictionary", h.AddDictionaryEntry)
	g.DELETE("/dictionary/:term", h.RemoveDictionaryEntry)

	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)

	g.GET("/sessions", h.ListSessions)
	g.GET("/sessions/search", h.SearchSessions)
	g.GET("/sessions/:id", h.GetSession)
	g.DELETE("/sessions/:id", h.DeleteSession)
	g.DELETE("/sessions", h.DeleteAllSessions)
	g.POST("/sessions/:id/extend", h.ExtendSession)

	// Stats reads accept the read-only token as well.
	e.GET("/api/v1/stats", h.Stats, BearerAuth(h.statsToken, h.apiToken))
}

func (h *ManagementHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ── dictionary ───────────────────────────────────────────────────────────

func (h *ManagementHandler) ListDictionary(c echo.Context) error {
	entries, err := h.dictionary.List(c.Request().Context())
	if err != nil {
		return handleSvcError(c, err)
	}
	if entries == nil {
		entries = []detector.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *ManagementHandler) AddDictionaryEntry(c echo.Context) error {
	var entry detector.Entry
	if err := c.Bind(&entry); err != nil {
		return errResponse(c, http.StatusBadRequest, "BadRequest", "invalid request body", "")
	}
	if err := h.dictionary.Add(c.Request().Context(), entry); err != nil {
		return handleSvcError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (h *ManagementHandler) RemoveDictionaryEntry(c echo.Context) error {
	if err := h.dictionary.Remove(c.Request().Context(), c.Param("term")); err != nil {
		return handleSvcError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ── settings ─────────────────────────────────────────────────────────────

func (h *ManagementHandler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settings.Get(c.Request().Context()))
}

func (h *ManagementHandler) UpdateSettings(c echo.Context) error {
	var patch map[string]json.RawMessage
	if err := c.Bind(&patch); err != nil {
		return errResponse(c, http.StatusBadRequest, "BadRequest", "invalid request body", "")
	}
	updated, err := h.settings.Update(c.Request().Context(), patch)
	if err != nil {
		return handleSvcError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// ── sessions ─────────────────────────────────────────────────────────────

func (h *ManagementHandler) ListSessions(c echo.Context) error {
	sessions, err := h.st.AllSessions(c.Request().Context())
	if err != nil {
		return handleSvcError(c, err)
	}
	if sessions == nil {
		sessions = []store.Summary{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *ManagementHandler) SearchSessions(c echo.Context) error {
	sessions, err := h.st.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return handleSvcError(c, err)
	}
	if sessions == nil {
		sessions = []store.Summary{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *ManagementHandler) GetSession(c echo.Context) error {
	s, err := h.st.Retrieve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleSvcError(c, err)
	}
	if s == nil {
		return errResponse(c, http.StatusNotFound, "NotFound", "session not found", "")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *ManagementHandler) DeleteSession(c echo.Context) error {
	deleted, err := h.st.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleSvcError(c, err)
	}
	if !deleted {
		return errResponse(c, http.StatusNotFound, "NotFound", "session not found", "")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ManagementHandler) DeleteAllSessions(c echo.Context) error {
	n, err := h.st.DeleteAll(c.Request().Context())
	if err != nil {
		return handleSvcError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": n})
}

type extendRequest struct {
	TTLSeconds int `json:"ttlSeconds"`
}

func (h *ManagementHandler) ExtendSession(c echo.Context) error {
	var req extendRequest
	if err := c.Bind(&req); err != nil || req.TTLSeconds <= 0 {
		return errResponse(c, http.StatusBadRequest, "BadRequest", "ttlSeconds must be a positive integer", "")
	}
	extended, err := h.st.Extend(c.Request().Context(), c.Param("id"), time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		return handleSvcError(c, err)
	}
	if !extended {
		return errResponse(c, http.StatusNotFound, "NotFound", "session not found", "")
	}
	return c.NoContent(http.StatusOK)
}

// ── stats ────────────────────────────────────────────────────────────────

type statsResponse struct {
	Storage  store.Stats      `json:"storage"`
	Counters map[string]int64 `json:"counters"`
	Breaker  map[string]bool  `json:"breaker"`
}

func (h *ManagementHandler) Stats(c echo.Context) error {
	storage, err := h.st.StorageStats(c.Request().Context())
	if err != nil {
		return handleSvcError(c, err)
	}
	breakerOpen := false
	if h.breaker != nil {
		breakerOpen = h.breaker.Open()
	}
	return c.JSON(http.StatusOK, statsResponse{
		Storage:  storage,
		Counters: h.counters.Snapshot(),
		Breaker:  map[string]bool{"nerOpen": breakerOpen},
	})
}
