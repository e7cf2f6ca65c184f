package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/indexer"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/postgres"
	"vaultScope/internal/vault"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan factory VaultCreated logs and track the discovered vaults",
		RunE:  runScan,
	}

	cmd.Flags().StringSlice("rpc", nil, "RPC URLs, first is primary (comma-separated)")
	cmd.Flags().String("factory", "", "vault factory address")
	cmd.Flags().String("owner", "", "only scan vaults created by this owner")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("batch-size", 5000, "blocks per batch")
	cmd.Flags().String("out", "./data/vault_created.jsonl", "output JSONL path")
	cmd.Flags().String("checkpoint", "./data/scan_checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().String("vaults-file", "./data/vaults.json", "tracked vault list file")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; also stores the scan checkpoint")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadScan(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.RPCURLs) == 0 {
		return fmt.Errorf("rpc url is required")
	}
	factory, err := indexer.ParseAddress(cfg.Factory)
	if err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("factory address is required")
	}
	owner, err := indexer.ParseAddress(cfg.Owner)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	caller, closeChain, err := chain.Dial(ctx, cfg.RPCURLs, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer closeChain()

	sinks := []storage.EventSink{storage.NewJsonlStorage(cfg.Out)}
	var checkpoints indexer.Checkpoints
	if cfg.CheckpointEnabled {
		checkpoints = indexer.NewFileCheckpoints(cfg.Checkpoint, factory.Hex(), true)
	}

	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		sinks = append(sinks, pg)
		if cfg.CheckpointEnabled {
			checkpoints = indexer.NewStateCheckpoints(pg, "scan:"+strings.ToLower(factory.Hex()))
		}
	}

	registry, err := config.NewAssetRegistry(cfg.Assets)
	if err != nil {
		return err
	}

	runner, err := indexer.NewRunner(indexer.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Factory:      *factory,
		Owner:        owner,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, caller, sinks, vault.NewListStore(cfg.VaultsFile), checkpoints, logger)
	if err != nil {
		return err
	}

	logger.Info("scan start",
		zap.Int("rpc_endpoints", len(cfg.RPCURLs)),
		zap.String("factory", factory.Hex()),
		zap.String("owner", cfg.Owner),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	return runner.WithAssets(registry).Run(ctx)
}
