package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mbeaufort/mnemo/internal/config"
	"github.com/mbeaufort/mnemo/internal/cron"
	"github.com/mbeaufort/mnemo/internal/metrics"
	"github.com/mbeaufort/mnemo/internal/ops"
	"github.com/mbeaufort/mnemo/internal/summarize"
	"github.com/mbeaufort/mnemo/modules/generate/openai"
	"github.com/mbeaufort/mnemo/modules/store/sqlite"
	"github.com/mbeaufort/mnemo/pkg/engine"
)

const stopTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the memory engine with its ops server and background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func serve(cfg *config.Config) error {
	logger := newLogger()

	store, err := sqlite.Open(cfg.Store.Path, cfg.Store.BusyTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	m := metrics.New(prometheus.DefaultRegisterer)
	e := engine.New(store, newGenerator(cfg), engineConfig(cfg), logger, m)
	defer e.Close()

	server := ops.New(cfg.Listen, e, metrics.Handler(), logger)
	if err := server.Start(); err != nil {
		return err
	}

	var scheduler *cron.Scheduler
	if cfg.Sweep.Enabled {
		scheduler = cron.NewScheduler(logger)
		jobs := []cron.Job{
			&cron.SummarySweepJob{
				Source:       store,
				Engine:       e,
				Logger:       logger,
				ScheduleExpr: cfg.Sweep.SummarySchedule,
			},
			&cron.ScoreBackfillJob{
				Source:       store,
				Scorer:       e,
				Logger:       logger,
				ScheduleExpr: cfg.Sweep.ScoreSchedule,
			},
		}
		for _, job := range jobs {
			if err := scheduler.RegisterJob(job); err != nil {
				return err
			}
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
	}

	logger.Info("mnemo running", "listen", cfg.Listen, "store", cfg.Store.Path)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info("shutting down", "signal", received.String())

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("scheduler stop failed", "error", err)
		}
	}
	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("ops server stop: %w", err)
	}
	return nil
}

// newGenerator builds the summary generator, or nil when no endpoint is
// configured (deterministic fallback only).
func newGenerator(cfg *config.Config) summarize.Generator {
	if cfg.Generator.BaseURL == "" {
		return nil
	}
	return openai.New(openai.Config{
		BaseURL:   cfg.Generator.BaseURL,
		APIKey:    cfg.Generator.APIKey,
		Model:     cfg.Generator.Model,
		Local:     cfg.Generator.Local,
		MaxTokens: cfg.Generator.MaxTokens,
		Timeout:   cfg.Generator.Timeout,
	}, nil)
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Budget:           cfg.Engine.Budget,
		RecentLimit:      cfg.Engine.RecentLimit,
		PinLimit:         cfg.Engine.PinLimit,
		SummaryLimit:     cfg.Engine.SummaryLimit,
		SummaryThreshold: cfg.Engine.SummaryThreshold,
		CacheTTL:         cfg.Engine.CacheTTL,
		QueueSize:        cfg.Engine.QueueSize,
	}
}
