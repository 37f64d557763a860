/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package render turns (handle, dimensions, theme) into card image bytes using
// the shared rendering process.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/cardkit/cardkit/internal/browser"
)

// ErrInvalidParameters is returned when the requested dimensions are out of bounds.
var ErrInvalidParameters = errors.New("invalid render parameters")

// ErrNotCached is returned when the handle has no profile-cache entry.
// The precondition keeps arbitrary unauthenticated input from triggering the
// expensive render path.
var ErrNotCached = errors.New("profile is not cached")

// ErrRenderFailed is returned on transient render failures.
// Retrying with backoff is the caller's choice.
var ErrRenderFailed = errors.New("render failed")

// Dimension bounds, inclusive.
const (
	MinWidth  = 100
	MaxWidth  = 1200
	MinHeight = 100
	MaxHeight = 1000
	MinScale  = 1
	MaxScale  = 4
)

// Params describes one render request.
type Params struct {
	Handle string
	Width  int
	Height int
	Scale  int
	Theme  string
}

// EngineProvider hands out the shared rendering engine.
type EngineProvider interface {
	Acquire(ctx context.Context) (browser.Engine, error)
	RenderDone()
}

// ProfileIndex answers whether a handle has a profile-cache entry.
type ProfileIndex interface {
	HasProfile(ctx context.Context, handle string) (bool, error)
}

// Pipeline renders profile cards through the shared rendering process.
type Pipeline struct {
	cfg      *Config
	logger   log.FieldLogger
	engines  EngineProvider
	profiles ProfileIndex

	settleFn func(time.Duration) // for tests
}

// NewPipeline creates a new Pipeline.
func NewPipeline(cfg *Config, logger log.FieldLogger, engines EngineProvider, profiles ProfileIndex) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger, engines: engines, profiles: profiles, settleFn: time.Sleep}
}

// Render captures a card image for the given parameters.
//
// The per-request page is disposed on every exit path so the shared process
// never accumulates per-request resources. A completion-signal timeout is
// non-fatal: the capture proceeds and a possibly degraded image is returned.
func (p *Pipeline) Render(ctx context.Context, params Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	cached, err := p.profiles.HasProfile(ctx, params.Handle)
	if err != nil {
		// A broken cache backend degrades to a miss; rendering stays gated.
		p.logger.Error("profile cache probe failed", log.Error(err))
		return nil, ErrNotCached
	}
	if !cached {
		return nil, ErrNotCached
	}

	engine, err := p.engines.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	surface, err := engine.NewSurface(ctx, browser.SurfaceOpts{
		Width:  params.Width,
		Height: params.Height,
		Scale:  params.Scale,
		Theme:  params.Theme,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open surface: %v", ErrRenderFailed, err)
	}
	defer func() {
		if closeErr := surface.Close(); closeErr != nil {
			p.logger.Warn("closing render surface", log.Error(closeErr))
		}
	}()

	if err = surface.Navigate(ctx, p.targetURL(params)); err != nil {
		return nil, fmt.Errorf("%w: navigate: %v", ErrRenderFailed, err)
	}

	if err = surface.WaitReady(p.cfg.CompletionTimeout); err != nil {
		p.logger.Warn("completion signal timed out, capturing anyway",
			log.String("handle", params.Handle), log.Error(err))
	}

	// Fixed settle delay for asynchronous layout and font loading.
	p.settleFn(p.cfg.SettleDelay)

	image, err := surface.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: capture: %v", ErrRenderFailed, err)
	}

	p.engines.RenderDone()
	return image, nil
}

func (p *Pipeline) targetURL(params Params) string {
	return fmt.Sprintf("%s/internal/card/%s?theme=%s",
		p.cfg.TargetBaseURL, url.PathEscape(params.Handle), url.QueryEscape(params.Theme))
}

// Validate checks the dimension bounds, all inclusive.
func (params Params) Validate() error {
	if params.Width < MinWidth || params.Width > MaxWidth {
		return fmt.Errorf("%w: width %d not in [%d, %d]", ErrInvalidParameters, params.Width, MinWidth, MaxWidth)
	}
	if params.Height < MinHeight || params.Height > MaxHeight {
		return fmt.Errorf("%w: height %d not in [%d, %d]", ErrInvalidParameters, params.Height, MinHeight, MaxHeight)
	}
	if params.Scale < MinScale || params.Scale > MaxScale {
		return fmt.Errorf("%w: scale %d not in [%d, %d]", ErrInvalidParameters, params.Scale, MinScale, MaxScale)
	}
	return nil
}
