/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestUnitRunsSweepPeriodically(t *testing.T) {
	var runs atomic.Int64
	unit := NewUnit("test", 10*time.Millisecond, log.NewDisabledLogger(),
		func(_ context.Context) (int64, error) {
			runs.Inc()
			return 1, nil
		})

	fatalErr := make(chan error, 1)
	go unit.Start(fatalErr)

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, unit.Stop(true))
	select {
	case err := <-fatalErr:
		t.Fatalf("unexpected fatal error: %v", err)
	default:
	}
}

func TestUnitSurvivesSweepFailure(t *testing.T) {
	var runs atomic.Int64
	unit := NewUnit("failing", 10*time.Millisecond, log.NewDisabledLogger(),
		func(_ context.Context) (int64, error) {
			runs.Inc()
			return 0, errors.New("tier down")
		})

	fatalErr := make(chan error, 1)
	go unit.Start(fatalErr)

	// The worker keeps running after failures.
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, unit.Stop(true))
}
