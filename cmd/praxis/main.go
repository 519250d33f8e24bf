package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/common"
	"github.com/ternarybob/praxis/internal/outbox"
	"github.com/ternarybob/praxis/internal/pipeline"
	"github.com/ternarybob/praxis/internal/recovery"
	"github.com/ternarybob/praxis/internal/services/events"
	"github.com/ternarybob/praxis/internal/spatial"
	storage "github.com/ternarybob/praxis/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
	recoverRunID = flag.String("recover", "", "Recover the stored context for a workflow run id, print the outcome, and exit")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Praxis version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Initialize logger
	// 3. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("praxis.toml"); err == nil {
			configFiles = append(configFiles, "praxis.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("storage_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	// Storage layer
	db, err := storage.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
		os.Exit(1)
	}
	defer db.Close()

	// Event bus with the logger subscriber attached
	eventBus := events.NewService(logger)
	defer eventBus.Close()
	if err := events.SubscribeLoggerToAllEvents(eventBus, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to wire event subscribers")
		os.Exit(1)
	}

	// Storage implementations over the shared connection
	outboxStorage := storage.NewOutboxStorage(db, logger)
	geoStorage := storage.NewGeoRecordStorage(db, outboxStorage, logger)
	featureStorage := storage.NewFeatureStorage(db, logger)
	pipelineStorage := storage.NewPipelineRunStorage(db, logger)
	runManager := storage.NewWorkflowRunStorage(db, logger)

	// Context recovery over the persisted run store
	recoveryTimeout, err := config.ParallelRecoveryTimeout()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid recovery configuration")
		os.Exit(1)
	}
	recoverySvc := recovery.NewService(runManager, nil, recoveryTimeout, logger)

	// One-shot maintenance mode: recover a run's context and exit
	if *recoverRunID != "" {
		result, err := recoverySvc.Recover(context.Background(), *recoverRunID)
		if err != nil {
			logger.Error().Err(err).Str("run_id", *recoverRunID).Msg("Recovery failed")
			db.Close()
			os.Exit(1)
		}
		if !result.Success {
			logger.Warn().Str("run_id", *recoverRunID).Msg("Nothing to recover for run")
			db.Close()
			os.Exit(1)
		}
		logger.Info().
			Str("run_id", *recoverRunID).
			Str("strategy", result.Strategy).
			Str("step_id", result.StepID).
			Int("context_keys", len(result.Context)).
			Msg("Context recovered")
		db.Close()
		os.Exit(0)
	}

	// Spatial index client with rate-limited writes
	index := spatial.NewIndex(featureStorage, config.SpatialRateLimit(), config.Spatial.RateBurst, logger)

	// Outbox worker draining sync events into the index
	processor := outbox.NewProcessor(geoStorage, index, eventBus, logger)
	worker := outbox.NewWorker(outboxStorage, processor, eventBus, outbox.WorkerConfigFromApp(config), logger)
	if err := worker.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start outbox worker")
		os.Exit(1)
	}

	// Pipeline retry scheduler
	scheduler := pipeline.NewScheduler(pipelineStorage, eventBus, config.Pipeline.RetrySchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start retry scheduler")
		os.Exit(1)
	}

	logger.Info().Msg("Praxis ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received")

	// Graceful shutdown: stop scheduling first, then drain the worker
	scheduler.Stop()
	worker.Stop()

	logger.Info().Msg("Praxis stopped")
}
