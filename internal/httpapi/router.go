/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpapi is the thin routing layer around the card-rendering core.
// It validates handles, applies the two rate limiters, checks anti-forgery
// tokens and maps the core's error taxonomy onto HTTP status codes.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"
	"github.com/go-chi/chi/v5"

	"github.com/cardkit/cardkit/internal/cache"
	"github.com/cardkit/cardkit/internal/csrftoken"
	"github.com/cardkit/cardkit/internal/ratelimit"
	"github.com/cardkit/cardkit/internal/render"
)

// ErrDomain is the error domain used in REST error responses.
const ErrDomain = "CardKit"

const sessionCookieName = "cardkit_session"

const csrfHeaderName = "X-Csrf-Token"

var handleRegexp = regexp.MustCompile(`^[a-z0-9._-]{1,64}$`)

// RenderPipeline renders a card image.
type RenderPipeline interface {
	Render(ctx context.Context, params render.Params) ([]byte, error)
}

// ProfileFetcher resolves a handle against the external provider and fills the caches.
type ProfileFetcher interface {
	Fetch(ctx context.Context, handle string) error
}

// Opts carries the collaborators and policies of the routing layer.
type Opts struct {
	Logger        log.FieldLogger
	Pipeline      RenderPipeline
	Fetcher       ProfileFetcher
	Store         *cache.Store
	Disk          *cache.DiskStore
	BroadLimiter  *ratelimit.SlidingWindow
	NarrowLimiter *ratelimit.SlidingWindow
	Tokens        *csrftoken.Store

	ProfileTTL    time.Duration
	ScreenshotTTL time.Duration
	AssetTTL      time.Duration
}

type handlers struct {
	Opts
}

// NewHandler builds the HTTP handler of the service.
func NewHandler(opts Opts) http.Handler {
	h := &handlers{Opts: opts}

	router := chi.NewRouter()
	router.Use(h.broadLimitMiddleware)

	router.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	router.Get("/api/session", h.handleSession)
	router.Post("/api/profile/{handle}", h.requireCSRF(h.handleFetchProfile))
	router.Get("/api/card/{handle}/image.png", h.handleCardImage)
	router.Get("/assets/{handle}/{role}", h.handleAsset)
	router.Get("/internal/card/{handle}", h.handleCardPage)

	router.NotFound(func(rw http.ResponseWriter, _ *http.Request) {
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(ErrDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound), h.Logger)
	})
	return router
}

// clientKey identifies the client for rate limiting.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// normalizedHandle extracts and validates the handle path parameter.
func normalizedHandle(r *http.Request) (string, bool) {
	handle := cache.NormalizeHandle(chi.URLParam(r, "handle"))
	return handle, handleRegexp.MatchString(handle)
}

func (h *handlers) broadLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		// The render target is only fetched by our own browser process.
		if strings.HasPrefix(r.URL.Path, "/internal/") {
			next.ServeHTTP(rw, r)
			return
		}
		if res := h.BroadLimiter.CheckAndRecord(clientKey(r)); !res.Allowed {
			h.respondRateLimited(rw, res)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (h *handlers) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || !h.Tokens.Validate(cookie.Value, r.Header.Get(csrfHeaderName)) {
			restapi.RespondError(rw, http.StatusForbidden,
				restapi.NewError(ErrDomain, "invalidCSRFToken", "Missing or invalid anti-forgery token."), h.Logger)
			return
		}
		next(rw, r)
	}
}

func (h *handlers) respondRateLimited(rw http.ResponseWriter, res ratelimit.Result) {
	rw.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
	restapi.RespondError(rw, http.StatusTooManyRequests,
		restapi.NewError(ErrDomain, "rateLimited", "Too many requests.").
			AddContext("retryAfterSeconds", res.RetryAfterSeconds()), h.Logger)
}

func (h *handlers) respondBadHandle(rw http.ResponseWriter) {
	restapi.RespondError(rw, http.StatusBadRequest,
		restapi.NewError(ErrDomain, "invalidHandle", "Handle is malformed."), h.Logger)
}
