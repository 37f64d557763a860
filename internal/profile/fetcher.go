/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package profile fetches profile data from the external provider and fills
// the profile and asset cache tiers. Fetching is expensive and externally
// rate-limited, so callers gate it with the narrow limiter and skip it
// entirely on a fresh cache hit.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/acronis/go-appkit/log"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"

	"github.com/cardkit/cardkit/internal/cache"
)

// ErrProfileNotFound is returned when the provider does not know the handle.
var ErrProfileNotFound = errors.New("profile not found")

// ErrProviderUnavailable is returned when the provider cannot be reached or
// answers with a server error.
var ErrProviderUnavailable = errors.New("profile provider unavailable")

const maxPayloadSize = 1 << 20 // 1 MiB of profile JSON is already suspicious

var assetExtByContentType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// assetRefs is the subset of the provider payload the fetcher cares about.
// The payload itself is cached opaquely.
type assetRefs struct {
	Avatar string `json:"avatar"`
	Banner string `json:"banner"`
}

// Fetcher resolves handles against the external profile-data provider.
type Fetcher struct {
	cfg    *Config
	logger log.FieldLogger
	client *retryablehttp.Client
	store  *cache.Store
	disk   *cache.DiskStore
}

// NewFetcher creates a new Fetcher.
func NewFetcher(cfg *Config, logger log.FieldLogger, store *cache.Store, disk *cache.DiskStore) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.HTTPClient.Timeout = cfg.RequestTimeout
	client.Logger = nil
	return &Fetcher{cfg: cfg, logger: logger, client: client, store: store, disk: disk}
}

// Fetch resolves the handle, upserts the raw payload into the profile tier and
// downloads avatar/banner assets into the disk tier. Asset download failures
// are logged and do not fail the fetch.
func (f *Fetcher) Fetch(ctx context.Context, handle string) error {
	handle = cache.NormalizeHandle(handle)

	payload, err := f.fetchPayload(ctx, handle)
	if err != nil {
		return err
	}
	if err = f.store.SetProfile(ctx, handle, payload); err != nil {
		return err
	}

	var refs assetRefs
	if err = json.Unmarshal(payload, &refs); err != nil {
		f.logger.Warn("profile payload has no recognizable asset refs", log.Error(err))
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for role, assetURL := range map[string]string{
		cache.AssetRoleAvatar: refs.Avatar,
		cache.AssetRoleBanner: refs.Banner,
	} {
		if assetURL == "" {
			continue
		}
		role, assetURL := role, assetURL
		g.Go(func() error {
			if dlErr := f.downloadAsset(gctx, handle, role, assetURL); dlErr != nil {
				f.logger.Warn("asset download failed",
					log.String("handle", handle), log.String("role", role), log.Error(dlErr))
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

func (f *Fetcher) fetchPayload(ctx context.Context, handle string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s?handle=%s", f.cfg.ProviderURL, url.QueryEscape(handle))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: provider answered %d", ErrProviderUnavailable, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", ErrProviderUnavailable, err)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: provider answered non-JSON payload", ErrProviderUnavailable)
	}
	return payload, nil
}

func (f *Fetcher) downloadAsset(ctx context.Context, handle, role, assetURL string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return fmt.Errorf("build asset request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("asset server answered %d", resp.StatusCode)
	}
	ext, ok := assetExtByContentType[resp.Header.Get("Content-Type")]
	if !ok {
		return fmt.Errorf("unsupported asset content type %q", resp.Header.Get("Content-Type"))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxAssetSize))
	if err != nil {
		return fmt.Errorf("read asset: %w", err)
	}

	_, err = f.disk.Set(handle, role, data, ext)
	return err
}
