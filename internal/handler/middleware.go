// Package handler contains the Echo HTTP handlers for both listeners:
// the proxy surface (upstream mediation plus the direct redact/hydrate
// API) and the bearer-protected management surface.
package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Bridge-Point/anonamoose-sub001/internal/service"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
)

// ── per-request proxy options ────────────────────────────────────────────

// Options are the per-request controls carried by X-Anonamoose-*
// headers.
type Options struct {
	// SessionID pins the rehydration session. Empty means the gateway
	// mints one during redaction.
	SessionID string
	// Redact and Hydrate toggle the two pipeline directions; both
	// default to on.
	Redact  bool
	Hydrate bool
	// Locale overrides the settings locale for this call when non-nil.
	Locale *string
}

const (
	headerSession = "X-Anonamoose-Session"
	headerRedact  = "X-Anonamoose-Redact"
	headerHydrate = "X-Anonamoose-Hydrate"
	headerLocale  = "X-Anonamoose-Locale"
)

// OptionsMiddleware parses the gateway control headers into an Options
// value stored on the echo context. A pinned session id that is not a
// UUID is rejected up front with 400.
func OptionsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			opts := Options{Redact: true, Hydrate: true}

			if sid := c.Request().Header.Get(headerSession); sid != "" {
				if _, err := uuid.Parse(sid); err != nil {
					return errResponse(c, http.StatusBadRequest, "InvalidSessionId",
						"session id must be a UUID", sid)
				}
				opts.SessionID = sid
			}
			if v := c.Request().Header.Get(headerRedact); v != "" {
				opts.Redact = parseToggle(v)
			}
			if v := c.Request().Header.Get(headerHydrate); v != "" {
				opts.Hydrate = parseToggle(v)
			}
			if v := c.Request().Header.Get(headerLocale); v != "" {
				locale := strings.ToUpper(v)
				opts.Locale = &locale
			}

			c.Set("anonamoose.options", opts)
			return next(c)
		}
	}
}

// requestOptions returns the parsed Options, falling back to the
// defaults for routes outside the middleware.
func requestOptions(c echo.Context) Options {
	if opts, ok := c.Get("anonamoose.options").(Options); ok {
		return opts
	}
	return Options{Redact: true, Hydrate: true}
}

func parseToggle(v string) bool {
	switch strings.ToLower(v) {
	case "off", "false", "0", "no":
		return false
	default:
		return true
	}
}

// ── bearer auth ──────────────────────────────────────────────────────────

// BearerAuth guards a route group with a constant-time comparison
// against any of the accepted tokens. An empty accepted token never
// matches, so an unconfigured deployment rejects everything rather
// than accepting everything.
func BearerAuth(accepted ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
			if ok {
				for _, want := range accepted {
					if want != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(want)) == 1 {
						return next(c)
					}
				}
			}
			return errResponse(c, http.StatusUnauthorized, "Unauthorized", "invalid or missing bearer token", "")
		}
	}
}

// ── error responses ──────────────────────────────────────────────────────

type errBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func errResponse(c echo.Context, status int, kind, msg, detail string) error {
	return c.JSON(status, errBody{Error: msg, Kind: kind, Detail: detail})
}

// handleSvcError maps service-layer sentinels to HTTP statuses.
func handleSvcError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidSessionID):
		return errResponse(c, http.StatusBadRequest, "InvalidSessionId", "session id must be a UUID", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return errResponse(c, http.StatusNotFound, "NotFound", err.Error(), "")
	case errors.Is(err, service.ErrInvalidInput):
		return errResponse(c, http.StatusBadRequest, "BadRequest", err.Error(), "")
	case errors.Is(err, store.ErrBackend):
		return errResponse(c, http.StatusServiceUnavailable, "BackendError", "session store unavailable", "")
	default:
		return errResponse(c, http.StatusInternalServerError, "Internal", "internal error", "")
	}
}
