package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"delegation_sync/internal/app"
	"delegation_sync/internal/cache"
	"delegation_sync/internal/push"
	"delegation_sync/internal/store"
)

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and refresh caches as the server announces changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := commonRun()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			a, err := app.New(cfg, app.WithRegisterer(reg))
			if err != nil {
				return err
			}
			defer a.Close()

			log := logrus.WithField("component", "watch")
			cancel := a.Channel.OnUpdate(func(env push.Envelope) {
				log.WithFields(logrus.Fields{"model": env.Model, "action": env.Action, "id": env.ID}).Info("Invalidation received")
			})
			defer cancel()
			c := a.Store.Cache(store.TargetStats)
			defer c.Subscribe(func(s cache.Snapshot) {
				if s.Loading {
					return
				}
				if s.Err != nil {
					log.WithError(s.Err).Warn("Stats refresh failed")
					return
				}
				if len(s.Records) == 1 {
					stats := s.Records[0]
					log.WithFields(logrus.Fields{
						"delegations": stats.Int("delegation_stats.total_delegations"),
						"members":     stats.Int("member_stats.total_members"),
						"departed":    stats.Int("member_stats.departed_members"),
					}).Info("Stats updated")
				}
			})()

			if cfg.MetricsAddr != "" {
				srv := &http.Server{
					Addr:              cfg.MetricsAddr,
					Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.WithError(err).Error("Metrics server stopped")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					shutdownMetrics(shutdownCtx, srv, log)
				}()
			}

			if err := a.Start(ctx); err != nil {
				return err
			}
			log.Info("Watching for changes")
			<-ctx.Done()
			log.Info("Shutting down")
			return nil
		},
	}
}

func shutdownMetrics(ctx context.Context, srv *http.Server, log *logrus.Entry) {
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Metrics server shutdown failed")
	}
}
