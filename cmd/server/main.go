package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ferxalbs/termmux/internal/infrastructure/config"
	"github.com/ferxalbs/termmux/internal/infrastructure/logging"
	"github.com/ferxalbs/termmux/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		port     = flag.String("port", "", "HTTP port (overrides PORT)")
		hostMode = flag.String("host-mode", "", "process host mode: local or remote (overrides HOST_MODE)")
		hostAddr = flag.String("host-addr", "", "remote host address (overrides HOST_ADDR)")
		dev      = flag.Bool("dev", false, "development mode: colored logs, debug level")
	)
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *hostMode != "" {
		cfg.Host.Mode = *hostMode
	}
	if *hostAddr != "" {
		cfg.Host.Address = *hostAddr
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log = logging.NewDefault()
	}
	defer log.Sync()

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to build server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Shutdown incomplete", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}
