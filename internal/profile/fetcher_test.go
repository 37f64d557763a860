/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardkit/cardkit/internal/cache"
)

func newTestFetcher(t *testing.T, providerURL string) (*Fetcher, *cache.Store, *cache.DiskStore) {
	t.Helper()
	logger := log.NewDisabledLogger()
	store, err := cache.OpenStore(filepath.Join(t.TempDir(), "cache.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	disk, err := cache.NewDiskStore(filepath.Join(t.TempDir(), "assets"), logger)
	require.NoError(t, err)

	cfg := NewDefaultConfig()
	cfg.ProviderURL = providerURL
	cfg.RetryMax = 0
	cfg.RequestTimeout = 5 * time.Second
	return NewFetcher(cfg, logger, store, disk), store, disk
}

func TestFetcherStoresProfileAndAssets(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/avatar.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("avatar-png"))
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "alice.example.com", r.URL.Query().Get("handle"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Alice","avatar":"` + srv.URL + `/avatar.png"}`))
	})

	f, store, disk := newTestFetcher(t, srv.URL+"/profile")
	require.NoError(t, f.Fetch(context.Background(), "Alice.Example.COM"))

	entry, err := store.GetProfile(context.Background(), "alice.example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Contains(t, string(entry.Value), `"Alice"`)

	asset, err := disk.Get("alice.example.com", cache.AssetRoleAvatar)
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, ".png", filepath.Ext(asset.Path))

	// No banner ref, no banner asset.
	asset, err = disk.Get("alice.example.com", cache.AssetRoleBanner)
	require.NoError(t, err)
	assert.Nil(t, asset)
}

func TestFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, store, _ := newTestFetcher(t, srv.URL)
	err := f.Fetch(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrProfileNotFound)

	ok, err := store.HasProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetcherProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "non-JSON payload",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>not json</html>"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			f, _, _ := newTestFetcher(t, srv.URL)
			err := f.Fetch(context.Background(), "alice")
			require.ErrorIs(t, err, ErrProviderUnavailable)
		})
	}
}

func TestFetcherAssetFailureDoesNotFailFetch(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/avatar.png", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"avatar":"` + srv.URL + `/avatar.png"}`))
	})

	f, store, disk := newTestFetcher(t, srv.URL+"/profile")
	require.NoError(t, f.Fetch(context.Background(), "alice"))

	ok, err := store.HasProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	asset, err := disk.Get("alice", cache.AssetRoleAvatar)
	require.NoError(t, err)
	assert.Nil(t, asset)
}
