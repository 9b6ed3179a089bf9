// Command worker runs the drain worker: it drains the durable buffer,
// bulk-writes to the raw event store, publishes to the live channel, and
// keeps the current hour's rollup sealed (spec §4.3, §4.4, §5).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsewire/pulse/internal/app"
	"github.com/pulsewire/pulse/internal/app/rollup"
	"github.com/pulsewire/pulse/internal/config"
	"github.com/pulsewire/pulse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.LoggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output, FilePrefix: "worker"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("initialize application: %v", err)
	}
	defer application.Close()

	application.Manager.Register(application.Worker)
	application.Manager.Register(rollup.NewScheduler(application.Rollup, cfg.Worker.RollupCron, log))

	if err := application.Manager.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	log.Infof("drain worker running")

	<-ctx.Done()
	log.Infof("shutting down")

	shutdownCtx := context.Background()
	if err := application.Manager.Stop(shutdownCtx); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}
