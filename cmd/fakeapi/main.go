package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"delegation_sync/internal/fakeapi"
	"delegation_sync/internal/logger"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("fakeapi stopped")
	}
}

func run() error {
	cfg, err := fakeapi.LoadConfig()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.LogFile, cfg.LogLevel); err != nil {
		return err
	}

	srv, err := fakeapi.New(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}
