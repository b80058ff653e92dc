package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cvangysel/gondri/internal/analytics"
	"github.com/cvangysel/gondri/pkg/health"
	"github.com/cvangysel/gondri/pkg/kafka"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/middleware"
	"github.com/cvangysel/gondri/pkg/postgres"
)

func newAnalyticsCmd(g *globals) *cobra.Command {
	var (
		addr     string
		snapshot time.Duration
	)
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Aggregate query events published by searchers",
		Long: `Consume the query events searchers publish to Kafka, aggregate them in
memory and serve the totals at GET /api/v1/analytics. With postgres
enabled, a snapshot is stored every --snapshot interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !g.cfg.Kafka.Enabled {
				return fmt.Errorf("analytics needs kafka.enabled")
			}
			return runAnalytics(cmd.Context(), g, addr, snapshot)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address")
	cmd.Flags().DurationVar(&snapshot, "snapshot", time.Minute, "interval between PostgreSQL snapshots")
	return cmd
}

func runAnalytics(ctx context.Context, g *globals, addr string, snapshot time.Duration) error {
	log := logger.Component(g.log, "analytics")
	agg := analytics.NewAggregator(g.log)

	checker := health.NewChecker(g.log)
	statsHandler := analytics.NewHandler(agg, g.log)

	eg, ctx := errgroup.WithContext(ctx)
	if g.cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, g.cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		store := analytics.NewSnapshotStore(db, g.log)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		checker.Register("postgres", health.PingCheck(db.Ping))
		statsHandler.WithSnapshots(store)
		eg.Go(func() error {
			store.RunPeriodic(ctx, agg, snapshot)
			return nil
		})
	}

	consumer := kafka.NewConsumer(g.cfg.Kafka, g.cfg.Kafka.QueryTopic, agg.HandleMessage(), g.log)
	eg.Go(func() error { return consumer.Run(ctx) })

	mux := http.NewServeMux()
	statsHandler.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         addr,
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  g.cfg.Server.ReadTimeout,
		WriteTimeout: g.cfg.Server.WriteTimeout,
	}
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	eg.Go(func() error {
		log.Info("analytics listening", "addr", addr, "topic", g.cfg.Kafka.QueryTopic)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	log.Info("analytics stopped")
	return nil
}
