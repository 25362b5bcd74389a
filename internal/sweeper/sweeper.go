// Package sweeper runs the administrative pool-refresh sweep on a schedule.
package sweeper

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"farmLedger/internal/farm"
)

// Sweeper periodically refreshes every pool so accumulators stay close to
// real time even through quiet stretches with no user actions.
type Sweeper struct {
	cron   *cron.Cron
	farm   *farm.Farm
	logger *zap.Logger
}

func New(engine *farm.Farm, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		cron:   cron.New(cron.WithSeconds()),
		farm:   engine,
		logger: logger,
	}
}

// Register schedules the sweep with a cron spec.
func (s *Sweeper) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("register sweep: %w", err)
	}
	return nil
}

// Start starts the scheduler.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started")
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) sweep() {
	if err := s.farm.MassUpdatePools(); err != nil {
		s.logger.Error("mass update pools", zap.Error(err))
		return
	}
	s.logger.Debug("pools refreshed")
}
