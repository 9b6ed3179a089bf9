// Command appserver runs the analytics backend's HTTP API: ingest, auth,
// projects, analytics queries, and live-delivery websockets.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsewire/pulse/internal/app"
	"github.com/pulsewire/pulse/internal/config"
	"github.com/pulsewire/pulse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.LoggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output, FilePrefix: "appserver"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("initialize application: %v", err)
	}
	defer application.Close()

	application.Manager.Register(application.NewHTTPServer())

	if err := application.Manager.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	log.Infof("appserver listening on %s", cfg.Server.Addr)

	<-ctx.Done()
	log.Infof("shutting down")

	shutdownCtx := context.Background()
	if err := application.Manager.Stop(shutdownCtx); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}
