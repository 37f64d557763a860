/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package browser owns the lifecycle of the single shared headless-browser
// process used for card rendering. Request handlers borrow the engine through
// Manager.Acquire and never own it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-appkit/log"
	"go.uber.org/atomic"
)

// ErrEngineUnavailable is returned when the rendering engine cannot be loaded.
// The condition is permanent for the process lifetime and is never retried.
var ErrEngineUnavailable = errors.New("rendering engine unavailable")

// ErrManagerClosed is returned by Acquire after the manager has been shut down.
var ErrManagerClosed = errors.New("browser manager is closed")

// State describes the shared process handle.
type State int

// Possible states of the shared process handle.
const (
	StateUnstarted State = iota
	StateRunning
	StateDisconnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateRunning:
		return "running"
	case StateDisconnected:
		return "disconnected"
	case StateClosing:
		return "closing"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Engine is a live connection to the rendering process.
type Engine interface {
	// NewSurface opens an isolated per-request rendering context.
	NewSurface(ctx context.Context, opts SurfaceOpts) (Surface, error)

	// Alive reports whether the process connection is still usable.
	Alive() bool

	// Close terminates the process. Callers are expected to discard the error.
	Close() error
}

// SurfaceOpts parameterizes a per-request rendering context.
type SurfaceOpts struct {
	Width  int
	Height int
	Scale  int
	Theme  string
}

// Surface is an isolated per-request rendering context. It must be closed on
// every exit path so the shared process never accumulates per-request state.
type Surface interface {
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the page signals render completion or the timeout
	// elapses. A timeout error is advisory: capture may still proceed.
	WaitReady(timeout time.Duration) error

	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// LaunchFunc starts the rendering process and connects to it.
type LaunchFunc func(ctx context.Context) (Engine, error)

// Manager serializes every state transition of the shared process handle behind
// one mutex, so a count-triggered restart and a disconnect-triggered restart can
// never double-launch. Launch is effectively single-flight: racing callers block
// on the mutex and find the engine already running.
type Manager struct {
	cfg    *Config
	logger log.FieldLogger
	launch LaunchFunc

	mu      sync.Mutex
	state   State
	engine  Engine
	renders int // since last launch
	permErr error

	totalRenders atomic.Int64
}

// NewManager creates a Manager that launches a real headless browser.
func NewManager(cfg *Config, logger log.FieldLogger) *Manager {
	return NewManagerWithLaunch(cfg, logger, rodLaunch(cfg))
}

// NewManagerWithLaunch creates a Manager with a custom launch function.
// Used by tests to substitute a fake engine.
func NewManagerWithLaunch(cfg *Config, logger log.FieldLogger, launch LaunchFunc) *Manager {
	return &Manager{cfg: cfg, logger: logger, launch: launch}
}

// Acquire returns a live engine, lazily launching the process on first use.
// A disconnected engine is discarded and relaunched unconditionally; an engine
// that has served the configured number of renders is closed and relaunched
// before being handed out again.
func (m *Manager) Acquire(ctx context.Context) (Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.permErr != nil {
		return nil, m.permErr
	}

	switch m.state {
	case StateClosing:
		return nil, ErrManagerClosed
	case StateRunning:
		if !m.engine.Alive() {
			m.logger.Warn("rendering process disconnected, will relaunch")
			m.state = StateDisconnected
		} else if m.renders >= m.cfg.MaxRendersPerProcess {
			m.logger.Info("render count limit reached, relaunching rendering process",
				log.Int("renders", m.renders))
			m.state = StateDisconnected
		}
	}

	if m.state == StateRunning {
		return m.engine, nil
	}

	if m.engine != nil {
		m.closeEngine()
	}

	engine, err := m.launch(ctx)
	if err != nil {
		// Launch failures mean the environment cannot run the engine at all
		// (missing binary, sandbox restrictions). Treat as feature-disabled.
		m.permErr = fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		m.logger.Error("failed to launch rendering process, feature disabled", log.Error(err))
		return nil, m.permErr
	}

	m.engine = engine
	m.state = StateRunning
	m.renders = 0
	m.logger.Info("rendering process launched")
	return m.engine, nil
}

// RenderDone records one successful render against the current engine.
func (m *Manager) RenderDone() {
	m.mu.Lock()
	m.renders++
	m.mu.Unlock()
	m.totalRenders.Inc()
}

// Renders returns the number of renders served by the current engine since its launch.
func (m *Manager) Renders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders
}

// TotalRenders returns the number of renders served over the manager's lifetime.
func (m *Manager) TotalRenders() int64 {
	return m.totalRenders.Load()
}

// State returns the current state of the process handle.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close shuts the manager down. Subsequent Acquire calls fail with
// ErrManagerClosed. The process close error is swallowed and logged.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateClosing
	if m.engine != nil {
		m.closeEngine()
	}
}

// closeEngine closes and discards the current engine. Must be called under mu.
func (m *Manager) closeEngine() {
	if err := m.engine.Close(); err != nil {
		m.logger.Warn("closing rendering process", log.Error(err))
	}
	m.engine = nil
}
