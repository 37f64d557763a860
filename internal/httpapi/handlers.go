/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/cardkit/cardkit/internal/browser"
	"github.com/cardkit/cardkit/internal/cache"
	"github.com/cardkit/cardkit/internal/profile"
	"github.com/cardkit/cardkit/internal/render"
)

const (
	defaultCardWidth  = 600
	defaultCardHeight = 400
	defaultCardScale  = 2
	defaultCardTheme  = "light"
)

type sessionResponse struct {
	Token string `json:"token"`
}

type fetchResponse struct {
	Cached bool `json:"cached"`
}

// handleSession assigns a session cookie if absent and issues an anti-forgery
// token bound to it. Issuing replaces any prior token for the session.
func (h *handlers) handleSession(rw http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		sessionID = cookie.Value
	}
	if sessionID == "" {
		sessionID = xid.New().String()
		http.SetCookie(rw, &http.Cookie{
			Name:     sessionCookieName,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}

	token, err := h.Tokens.Issue(sessionID)
	if err != nil {
		h.Logger.Error("issue anti-forgery token", log.Error(err))
		restapi.RespondError(rw, http.StatusInternalServerError, restapi.NewInternalError(ErrDomain), h.Logger)
		return
	}
	restapi.RespondJSON(rw, sessionResponse{Token: token}, h.Logger)
}

// handleFetchProfile triggers the expensive external profile fetch.
// A fresh profile-cache hit bypasses the narrow limiter entirely.
func (h *handlers) handleFetchProfile(rw http.ResponseWriter, r *http.Request) {
	handle, ok := normalizedHandle(r)
	if !ok {
		h.respondBadHandle(rw)
		return
	}

	entry, err := h.Store.GetProfile(r.Context(), handle)
	if err != nil {
		// Broken cache backend degrades to a miss: we go fetch.
		h.Logger.Error("profile cache read failed", log.Error(err))
	}
	if entry != nil && time.Since(entry.CachedAt) < h.ProfileTTL {
		restapi.RespondJSON(rw, fetchResponse{Cached: true}, h.Logger)
		return
	}

	if res := h.NarrowLimiter.CheckAndRecord(clientKey(r)); !res.Allowed {
		h.respondRateLimited(rw, res)
		return
	}

	switch err = h.Fetcher.Fetch(r.Context(), handle); {
	case errors.Is(err, profile.ErrProfileNotFound):
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(ErrDomain, "profileNotFound", "No such profile."), h.Logger)
	case errors.Is(err, profile.ErrProviderUnavailable):
		restapi.RespondError(rw, http.StatusBadGateway,
			restapi.NewError(ErrDomain, "providerUnavailable", "Profile provider is unavailable."), h.Logger)
	case err != nil:
		h.Logger.Error("profile fetch failed", log.Error(err))
		restapi.RespondError(rw, http.StatusInternalServerError, restapi.NewInternalError(ErrDomain), h.Logger)
	default:
		restapi.RespondJSON(rw, fetchResponse{Cached: false}, h.Logger)
	}
}

// handleCardImage serves a rendered card, probing the screenshot tier first.
func (h *handlers) handleCardImage(rw http.ResponseWriter, r *http.Request) {
	handle, ok := normalizedHandle(r)
	if !ok {
		h.respondBadHandle(rw)
		return
	}
	params := cardParams(r, handle)

	key := cache.ScreenshotKey(params.Handle, params.Width, params.Height, params.Scale, params.Theme)
	entry, err := h.Store.GetScreenshot(r.Context(), key)
	if err != nil {
		h.Logger.Error("screenshot cache read failed", log.Error(err))
	}
	if entry != nil && time.Since(entry.CachedAt) < h.ScreenshotTTL {
		serveImage(rw, entry.Value)
		return
	}

	image, err := h.renderWithRetry(r, params)
	if err != nil {
		h.respondRenderError(rw, err)
		return
	}

	// A failed cache write loses only the caching benefit, never the response.
	if err = h.Store.SetScreenshot(r.Context(), key, image); err != nil {
		h.Logger.Error("screenshot cache write failed", log.Error(err))
	}
	serveImage(rw, image)
}

// renderWithRetry retries once with backoff on transient render failures.
// Caller errors and the permanent engine-unavailable condition are never retried.
func (h *handlers) renderWithRetry(r *http.Request, params render.Params) ([]byte, error) {
	var image []byte
	op := func() error {
		var err error
		if image, err = h.Pipeline.Render(r.Context(), params); err == nil {
			return nil
		}
		if errors.Is(err, render.ErrRenderFailed) {
			return err
		}
		return backoff.Permanent(err)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), r.Context())
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return image, nil
}

func (h *handlers) respondRenderError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, render.ErrInvalidParameters):
		restapi.RespondError(rw, http.StatusBadRequest,
			restapi.NewError(ErrDomain, "invalidParameters", "Requested dimensions are out of bounds."), h.Logger)
	case errors.Is(err, render.ErrNotCached):
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(ErrDomain, "profileNotCached", "Profile must be fetched before rendering."), h.Logger)
	case errors.Is(err, browser.ErrEngineUnavailable), errors.Is(err, browser.ErrManagerClosed):
		restapi.RespondError(rw, http.StatusServiceUnavailable,
			restapi.NewError(ErrDomain, "engineUnavailable", "Rendering is disabled."), h.Logger)
	default:
		h.Logger.Error("render failed", log.Error(err))
		restapi.RespondError(rw, http.StatusBadGateway,
			restapi.NewError(ErrDomain, "renderFailed", "Rendering failed, try again later."), h.Logger)
	}
}

// handleAsset serves a disk-tier asset; staleness is read from the file mtime.
func (h *handlers) handleAsset(rw http.ResponseWriter, r *http.Request) {
	handle, ok := normalizedHandle(r)
	if !ok {
		h.respondBadHandle(rw)
		return
	}
	role := chi.URLParam(r, "role")
	if role != cache.AssetRoleAvatar && role != cache.AssetRoleBanner {
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(ErrDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound), h.Logger)
		return
	}

	asset, err := h.Disk.Get(handle, role)
	if err != nil {
		h.Logger.Error("asset read failed", log.Error(err))
	}
	if asset == nil || time.Since(asset.ModTime) >= h.AssetTTL {
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(ErrDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound), h.Logger)
		return
	}
	http.ServeFile(rw, r, asset.Path)
}

func cardParams(r *http.Request, handle string) render.Params {
	return render.Params{
		Handle: handle,
		Width:  queryInt(r, "w", defaultCardWidth),
		Height: queryInt(r, "h", defaultCardHeight),
		Scale:  queryInt(r, "scale", defaultCardScale),
		Theme:  queryTheme(r),
	}
}

func queryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1 // out of every bound, rejected by parameter validation
	}
	return v
}

func queryTheme(r *http.Request) string {
	if r.URL.Query().Get("theme") == "dark" {
		return "dark"
	}
	return defaultCardTheme
}

func serveImage(rw http.ResponseWriter, image []byte) {
	rw.Header().Set("Content-Type", "image/png")
	rw.Header().Set("Content-Length", strconv.Itoa(len(image)))
	_, _ = rw.Write(image)
}
