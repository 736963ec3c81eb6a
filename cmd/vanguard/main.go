package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridian/vanguard/pkg/api"
	"github.com/veridian/vanguard/pkg/config"
	"github.com/veridian/vanguard/pkg/enricher"
	"github.com/veridian/vanguard/pkg/log"
	"github.com/veridian/vanguard/pkg/normalizer"
	"github.com/veridian/vanguard/pkg/processor"
	"github.com/veridian/vanguard/pkg/queue"
	"github.com/veridian/vanguard/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vanguard",
	Short: "Vanguard - Security event ingestion and processing pipeline",
	Long: `Vanguard ingests security telemetry from identity providers, cloud
audit trails and API gateways, normalizes it into one unified event
schema, enriches it with location, entity and sensitivity context, and
persists it as partitioned columnar files across hot/warm/cold tiers.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Vanguard version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(lifecycleCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the full ingestion pipeline",
	Long: `Start the ingest HTTP server, the hybrid queue, the processing
worker pool and the tiered storage writer as one process. The process
runs until SIGINT or SIGTERM, then drains: the server stops accepting
requests, workers finish their current events, and the remaining batch
is flushed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		initLogging(cfg)

		q, err := queue.New(queue.Config{
			MaxMemorySize:    cfg.Queue.MaxMemorySize,
			DiskBufferPath:   cfg.Queue.DiskBufferPath,
			OverflowStrategy: queue.Strategy(cfg.Queue.OverflowStrategy),
		})
		if err != nil {
			return fmt.Errorf("failed to create queue: %v", err)
		}

		enr, err := enricher.New(enricher.Config{
			EntityCacheTTL:       time.Duration(cfg.Enricher.EntityCacheTTLSeconds) * time.Second,
			GeoTablePath:         cfg.Enricher.GeoTablePath,
			SensitivityRulesPath: cfg.Enricher.SensitivityRulesPath,
			AnonymizeFields:      cfg.Enricher.AnonymizeFields,
		})
		if err != nil {
			return fmt.Errorf("failed to create enricher: %v", err)
		}

		writer, err := buildWriter(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		// Lifecycle runs in-process on a timer; the lifecycle subcommand
		// remains for one-shot runs from a scheduler.
		lifecycleCtx, stopLifecycle := context.WithCancel(context.Background())
		defer stopLifecycle()
		go writer.RunLifecycle(lifecycleCtx, time.Duration(cfg.Storage.LifecycleIntervalMinutes)*time.Minute)

		proc := processor.New(processor.Config{
			NumWorkers:   cfg.Processor.NumWorkers,
			BatchSize:    cfg.Processor.BatchSize,
			BatchTimeout: time.Duration(cfg.Processor.BatchTimeoutSeconds) * time.Second,
			MaxRetries:   cfg.Processor.MaxRetries,
		}, q, normalizer.New(), enr, writer)
		proc.Start()

		server := api.NewServer(api.Config{
			ListenAddr:         cfg.Server.ListenAddr,
			APIKeys:            cfg.Server.APIKeys,
			RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
			MaxBatchSize:       cfg.Server.MaxBatchSize,
		}, q, proc)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("shutdown signal received")
		case err := <-errCh:
			log.Errorf("server failed", err)
		}

		// Stop the edge first so nothing new enters the queue, then drain
		// the pipeline.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Errorf("server shutdown failed", err)
		}
		stopLifecycle()
		proc.Stop()

		log.Info("shutdown complete")
		return nil
	},
}

var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "Run one tier migration and expiry pass",
	Long: `Migrate partition files past their retention age from hot to warm
and warm to cold, and delete cold files past the cold retention. Intended
to run from a scheduler such as cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		initLogging(cfg)

		writer, err := buildWriter(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := writer.Lifecycle(cmd.Context()); err != nil {
			return fmt.Errorf("lifecycle pass failed: %v", err)
		}
		log.Info("lifecycle pass complete")
		return nil
	},
}

func initLogging(cfg *config.Config) {
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stdout,
	})
}

func buildWriter(ctx context.Context, cfg *config.Config) (*storage.Writer, error) {
	var store storage.ObjectStore
	var err error

	switch cfg.Storage.Backend {
	case "s3":
		store, err = storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.Storage.Bucket,
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
		})
	default:
		store, err = storage.NewLocalStore(cfg.Storage.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %v", err)
	}

	return storage.NewWriter(store, storage.Config{
		HotRetentionDays:  cfg.Storage.HotRetentionDays,
		WarmRetentionDays: cfg.Storage.WarmRetentionDays,
		ColdRetentionDays: cfg.Storage.ColdRetentionDays,
		HotCompression:    cfg.Storage.HotCompression,
		WarmCompression:   cfg.Storage.WarmCompression,
		ColdCompression:   cfg.Storage.ColdCompression,
	}), nil
}
