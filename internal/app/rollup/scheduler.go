package rollup

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/pulsewire/pulse/pkg/logger"
)

// Scheduler drives Engine.RecomputeCurrentHour on a cron expression, as a
// supplement to the drain worker's in-loop timer: an operator can also
// trigger an out-of-band reseal pass without restarting the worker, and a
// worker replica whose main loop is stalled on a slow consume still gets its
// rollups refreshed.
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
	expr   string
	log    *logger.Logger
}

func NewScheduler(engine *Engine, cronExpr string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("rollup-scheduler")
	}
	return &Scheduler{engine: engine, cron: cron.New(), expr: cronExpr, log: log}
}

func (s *Scheduler) Name() string { return "rollup-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.expr, func() {
		if err := s.engine.RecomputeCurrentHour(context.Background()); err != nil {
			s.log.Errorf("scheduled rollup recompute: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule rollup cron %q: %w", s.expr, err)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}
