package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recaplab/recap/internal/assistant"
	corecfg "github.com/recaplab/recap/internal/core/config"
	"github.com/recaplab/recap/internal/crm"
	"github.com/recaplab/recap/internal/intake"
	"github.com/recaplab/recap/internal/pipeline"
	"github.com/recaplab/recap/internal/runs"
	runspg "github.com/recaplab/recap/internal/runs/postgres"
	"github.com/recaplab/recap/internal/server"
)

const bootstrapTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "recap.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"server_addr", fmtAddr(cfg.Server.Host, cfg.Server.Port),
		"journal_enabled", cfg.Database.Enabled,
		"max_concurrent", cfg.Pipeline.MaxConcurrent)

	// 2. Initialize Run Journal (optional)
	var (
		journal runs.Store
		db      *sql.DB
	)
	if cfg.Database.Enabled {
		adapter, err := runspg.NewAdapterWithMigrations(cfg.Database)
		if err != nil {
			slog.Error("Failed to initialize run journal", "error", err)
			os.Exit(1)
		}
		defer adapter.Close()
		journal = adapter
		db = adapter.DB()
	} else {
		slog.Info("Run journal disabled by config")
	}

	// 3. Initialize AI Service Client and Profiles
	aiClient := assistant.New(
		cfg.Assistant.BaseURL,
		cfg.Assistant.APIKey,
		cfg.Assistant.EffectivePollInterval(),
		nil,
	)

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), bootstrapTimeout)
	profiles, err := aiClient.EnsureProfiles(bootstrapCtx,
		toBootstrapProfile(cfg.Assistant.Monthly),
		toBootstrapProfile(cfg.Assistant.Quarterly),
	)
	cancelBootstrap()
	if err != nil {
		slog.Error("Failed to bootstrap assistant profiles", "error", err)
		os.Exit(1)
	}
	slog.Info("Assistant profiles ready",
		"monthly_id", profiles.MonthlyID,
		"quarterly_id", profiles.QuarterlyID)

	// 4. Initialize Pipeline
	generator := pipeline.NewGenerator(aiClient)
	notifier := pipeline.NewCallbackNotifier(nil)

	var pipelineJournal pipeline.RunJournal
	if journal != nil {
		pipelineJournal = journal
	}
	orchestrator := pipeline.NewOrchestrator(generator, notifier, pipelineJournal, cfg.Pipeline.MaxConcurrent)

	// 5. Initialize Intake. Store clients are built per run from the
	// invocation's instance and credential.
	storeFactory := func(instanceURL, accessToken string) pipeline.RecordStore {
		return crm.New(instanceURL, accessToken, nil)
	}
	intakeSvc := intake.NewService(orchestrator, storeFactory, journal, profiles, cfg.Server.MaxBodySizeMB)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, cfg.Server.Mode)
	intakeSvc.RegisterRoutes(srv.Engine)

	// 7. Start
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func toBootstrapProfile(p corecfg.ProfileConfig) assistant.BootstrapProfile {
	return assistant.BootstrapProfile{
		Name:         p.Name,
		Model:        p.Model,
		Instructions: p.Instructions,
	}
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
