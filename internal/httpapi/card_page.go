/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"
	"github.com/flosch/pongo2/v6"

	"github.com/cardkit/cardkit/internal/cache"
)

// cardPageTemplate is the markup the rendering process captures. It signals
// readiness through window.__cardReady once fonts are loaded.
var cardPageTemplate = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html data-theme="{{ theme }}">
<head>
<meta charset="utf-8">
<style>
:root { color-scheme: light dark; }
body { margin: 0; font-family: system-ui, sans-serif; }
.card { display: flex; flex-direction: column; height: 100vh; }
.banner { height: 35%; background: #888 center/cover; }
{% if banner %}.banner { background-image: url('{{ banner }}'); }{% endif %}
.body { flex: 1; padding: 16px 24px; }
.avatar { width: 96px; height: 96px; border-radius: 50%; margin-top: -48px; border: 4px solid canvas; }
.name { font-size: 28px; font-weight: 700; margin: 8px 0 0; }
.handle { color: #71767b; margin: 2px 0 10px; }
.bio { font-size: 15px; white-space: pre-wrap; }
</style>
</head>
<body>
<div class="card">
  <div class="banner"></div>
  <div class="body">
    {% if avatar %}<img class="avatar" src="{{ avatar }}" alt="">{% endif %}
    <h1 class="name">{{ name }}</h1>
    <div class="handle">@{{ handle }}</div>
    <div class="bio">{{ bio }}</div>
  </div>
</div>
<script>
document.fonts.ready.then(function () { window.__cardReady = true; });
</script>
</body>
</html>`))

// cardProfile is the subset of the cached payload the markup shows.
type cardProfile struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// handleCardPage serves the card markup the render pipeline navigates to.
func (h *handlers) handleCardPage(rw http.ResponseWriter, r *http.Request) {
	handle, ok := normalizedHandle(r)
	if !ok {
		h.respondBadHandle(rw)
		return
	}

	entry, err := h.Store.GetProfile(r.Context(), handle)
	if err != nil {
		h.Logger.Error("profile cache read failed", log.Error(err))
	}
	if entry == nil {
		restapi.RespondError(rw, http.StatusNotFound,
			restapi.NewError(ErrDomain, "profileNotCached", "Profile must be fetched before rendering."), h.Logger)
		return
	}

	var p cardProfile
	if err = json.Unmarshal(entry.Value, &p); err != nil {
		h.Logger.Warn("cached profile payload is not renderable", log.Error(err))
	}
	if p.Name == "" {
		p.Name = handle
	}

	ctx := pongo2.Context{
		"handle": handle,
		"name":   p.Name,
		"bio":    p.Bio,
		"theme":  queryTheme(r),
	}
	if asset, assetErr := h.Disk.Get(handle, cache.AssetRoleAvatar); assetErr == nil && asset != nil &&
		time.Since(asset.ModTime) < h.AssetTTL {
		ctx["avatar"] = "/assets/" + handle + "/" + cache.AssetRoleAvatar
	}
	if asset, assetErr := h.Disk.Get(handle, cache.AssetRoleBanner); assetErr == nil && asset != nil &&
		time.Since(asset.ModTime) < h.AssetTTL {
		ctx["banner"] = "/assets/" + handle + "/" + cache.AssetRoleBanner
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err = cardPageTemplate.ExecuteWriter(ctx, rw); err != nil {
		h.Logger.Error("card page template failed", log.Error(err))
	}
}
