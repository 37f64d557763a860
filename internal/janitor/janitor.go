/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package janitor wires periodic cache sweeps as service units.
// Each sweep runs on its own fixed schedule; a failing sweep is logged by the
// periodic worker and never blocks the other tiers.
package janitor

import (
	"context"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/service"
)

const gracefulStopTimeout = 10 * time.Second

// Sweep runs one pruning pass over a single tier and reports how many entries it removed.
type Sweep func(ctx context.Context) (removed int64, err error)

// NewUnit wraps a sweep into a service.Unit running it every interval.
func NewUnit(name string, interval time.Duration, logger log.FieldLogger, sweep Sweep) service.Unit {
	sweepLogger := logger.With(log.String("sweep", name))
	worker := service.WorkerFunc(func(ctx context.Context) error {
		removed, err := sweep(ctx)
		if err != nil {
			return err
		}
		if removed > 0 {
			sweepLogger.Info("sweep finished", log.Int64("removed", removed))
		}
		return nil
	})
	periodicWorker := service.NewPeriodicWorkerWithOpts(worker, interval, sweepLogger,
		service.PeriodicWorkerOpts{InitialDelay: interval})
	return service.NewWorkerUnitWithOpts(periodicWorker, service.WorkerUnitOpts{
		GracefulStopTimeout: gracefulStopTimeout,
	})
}
