package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaultScope/internal/api"
	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/metrics"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/postgres"
	"vaultScope/internal/storage/redis"
	"vaultScope/internal/vault"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh tracked vaults and serve their state",
		RunE:  runWatch,
	}

	cmd.Flags().StringSlice("rpc", nil, "RPC URLs, first is primary (comma-separated)")
	cmd.Flags().String("owner", "", "owner whose tracked vaults are watched, empty means all owners")
	cmd.Flags().String("vaults-file", "./data/vaults.json", "tracked vault list file")
	cmd.Flags().Duration("refresh-interval", 15*time.Second, "chain refresh interval")
	cmd.Flags().Duration("recompute-interval", time.Second, "eligibility recompute interval")
	cmd.Flags().Int("concurrency", 8, "concurrent vault reads")
	cmd.Flags().Int("max-retries", 3, "maximum retry attempts per vault")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Bool("feed-detail", true, "cross-check feeds against the vault's getPriceDetail")
	cmd.Flags().String("out", "", "snapshot JSONL path, empty disables")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN, empty disables")
	cmd.Flags().String("redis-addr", "", "Redis address, empty disables")
	cmd.Flags().Duration("redis-ttl", 60*time.Second, "Redis view TTL")
	cmd.Flags().String("http-addr", "", "HTTP listen address, empty disables the API")
	cmd.Flags().Int("rate-limit-rpm", 120, "API requests per minute")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile(cmd), cmd.Flags())
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
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	list := vault.NewListStore(cfg.VaultsFile)
	store, err := loadTracked(list, cfg.Owner)
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

	m, metricsHandler, err := metrics.Setup("vaultscope")
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}

	var sinks []storage.SnapshotSink
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		sinks = append(sinks, pg)
	}
	var cache *redis.Cache
	if cfg.RedisAddr != "" {
		cache, err = redis.New(ctx, cfg.RedisAddr, cfg.RedisTTL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()
		sinks = append(sinks, cache)
	}

	reader := vault.NewReader(caller, registry, cfg.FeedDetail, logger)
	refresher := vault.NewRefresher(vault.RefresherConfig{
		RefreshInterval:   cfg.RefreshInterval,
		RecomputeInterval: cfg.RecomputeInterval,
		Concurrency:       cfg.Concurrency,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, reader, store, sinks, m, logger).WithTracked(func() ([]string, error) {
		return trackedAddresses(list, cfg.Owner)
	})

	logger.Info("watch start",
		zap.Int("rpc_endpoints", len(cfg.RPCURLs)),
		zap.String("owner", cfg.Owner),
		zap.Int("vaults", len(store.Addresses())),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.Duration("recompute_interval", cfg.RecomputeInterval),
		zap.Int("sinks", len(sinks)),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Run(gctx)
	})

	if cfg.HTTPAddr != "" {
		handler := api.NewHandler(store, registry, vault.NewQuoter(reader), logger)
		if cache != nil {
			handler = handler.WithCache(cache)
		}
		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler.Routes(api.NewMiddleware(logger, m), cfg.RateLimitRPM, metricsHandler),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("watch stopped")
		return nil
	}
	return err
}

// trackedAddresses returns the tracked list of one owner, or of every owner
// when owner is empty.
func trackedAddresses(list *vault.ListStore, owner string) ([]string, error) {
	owners := []string{owner}
	if owner == "" {
		var err error
		if owners, err = list.Owners(); err != nil {
			return nil, err
		}
	}

	var out []string
	for _, o := range owners {
		addrs, err := list.Load(o)
		if err != nil {
			return nil, err
		}
		out = append(out, addrs...)
	}
	return out, nil
}

// loadTracked seeds a Store from the tracked list.
func loadTracked(list *vault.ListStore, owner string) (*vault.Store, error) {
	addrs, err := trackedAddresses(list, owner)
	if err != nil {
		return nil, err
	}
	store := vault.NewStore()
	for _, addr := range addrs {
		store.Add(addr)
	}
	return store, nil
}
