/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// readyProbe polls the flag the card markup sets once fonts and layout settle.
const readyProbe = `() => window.__cardReady === true`

type rodEngine struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// rodLaunch returns a LaunchFunc that starts a headless browser and connects to it.
func rodLaunch(cfg *Config) LaunchFunc {
	return func(ctx context.Context) (Engine, error) {
		l := launcher.New().Headless(true)
		if cfg.BinPath != "" {
			l = l.Bin(cfg.BinPath)
		}
		if cfg.NoSandbox {
			l = l.NoSandbox(true)
		}
		controlURL, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b := rod.New().ControlURL(controlURL)
		if err = b.Connect(); err != nil {
			l.Kill()
			return nil, fmt.Errorf("connect to browser: %w", err)
		}
		return &rodEngine{browser: b, launcher: l}, nil
	}
}

func (e *rodEngine) NewSurface(ctx context.Context, opts SurfaceOpts) (Surface, error) {
	page, err := e.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: float64(opts.Scale),
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err = (proto.EmulationSetEmulatedMedia{
		Features: []*proto.EmulationMediaFeature{{Name: "prefers-color-scheme", Value: opts.Theme}},
	}).Call(page); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set color scheme: %w", err)
	}
	return &rodSurface{page: page}, nil
}

func (e *rodEngine) Alive() bool {
	_, err := e.browser.Version()
	return err == nil
}

func (e *rodEngine) Close() error {
	err := e.browser.Close()
	e.launcher.Kill()
	return err
}

type rodSurface struct {
	page *rod.Page
}

func (s *rodSurface) Navigate(ctx context.Context, url string) error {
	return s.page.Context(ctx).Navigate(url)
}

func (s *rodSurface) WaitReady(timeout time.Duration) error {
	page := s.page.Timeout(timeout)
	if err := page.WaitLoad(); err != nil {
		return err
	}
	return page.Wait(rod.Eval(readyProbe))
}

func (s *rodSurface) Capture(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *rodSurface) Close() error {
	return s.page.Close()
}
