package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaultScope/internal/chain"
	"vaultScope/internal/storage"
)

// Recorder receives refresh measurements.
type Recorder interface {
	RecordRefresh(ctx context.Context, vaults, failures int, duration time.Duration)
	RecordFeed(ctx context.Context, asset, source string, mismatch bool)
	RecordUnlockable(ctx context.Context, count int)
	RecordSinkFailure(ctx context.Context, sink string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRefresh(context.Context, int, int, time.Duration) {}
func (nopRecorder) RecordFeed(context.Context, string, string, bool)       {}
func (nopRecorder) RecordUnlockable(context.Context, int)                  {}
func (nopRecorder) RecordSinkFailure(context.Context, string)              {}

// RefresherConfig holds the refresh loop settings.
type RefresherConfig struct {
	RefreshInterval   time.Duration
	RecomputeInterval time.Duration
	Concurrency       int
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Refresher keeps the store current: authoritative chain reads on the refresh
// interval and cheap eligibility recomputation in between.
type Refresher struct {
	cfg      RefresherConfig
	source   Source
	store    *Store
	sinks    []storage.SnapshotSink
	recorder Recorder
	tracked  func() ([]string, error)
	logger   *zap.Logger
	now      func() time.Time
}

// NewRefresher builds a Refresher with its dependencies.
func NewRefresher(cfg RefresherConfig, source Source, store *Store, sinks []storage.SnapshotSink, recorder Recorder, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Refresher{
		cfg:      cfg,
		source:   source,
		store:    store,
		sinks:    sinks,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// WithTracked makes every refresh round start by syncing the store with the
// addresses returned by tracked: new ones are added, missing ones removed.
func (r *Refresher) WithTracked(tracked func() ([]string, error)) *Refresher {
	r.tracked = tracked
	return r
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	if r.source == nil || r.store == nil {
		return fmt.Errorf("refresher requires a source and a store")
	}
	if r.cfg.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be greater than zero")
	}

	if err := r.RefreshOnce(ctx); err != nil {
		return err
	}

	refresh := time.NewTicker(r.cfg.RefreshInterval)
	defer refresh.Stop()

	var recompute <-chan time.Time
	if r.cfg.RecomputeInterval > 0 {
		ticker := time.NewTicker(r.cfg.RecomputeInterval)
		defer ticker.Stop()
		recompute = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			if err := r.RefreshOnce(ctx); err != nil {
				return err
			}
		case <-recompute:
			r.store.Recompute(r.now())
			r.recorder.RecordUnlockable(ctx, r.store.CountUnlockable())
		}
	}
}

// RefreshOnce re-reads every tracked vault. Per-vault failures are recorded on
// the vault and never abort the round; only context cancellation is returned.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	started := r.now()
	r.syncTracked()
	addresses := r.store.Addresses()

	failures := make([]bool, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			failures[i] = !r.refreshOne(gctx, address)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}

	views := r.store.List()
	for _, sink := range r.sinks {
		if err := sink.PutSnapshots(ctx, views); err != nil {
			r.logger.Warn("snapshot sink failed", zap.String("sink", sink.Name()), zap.Error(err))
			r.recorder.RecordSinkFailure(ctx, sink.Name())
		}
	}

	duration := r.now().Sub(started)
	r.recorder.RecordRefresh(ctx, len(addresses), failed, duration)
	r.recorder.RecordUnlockable(ctx, r.store.CountUnlockable())
	r.logger.Info("refresh complete", zap.Int("vaults", len(addresses)), zap.Int("failed", failed), zap.Duration("took", duration))
	return nil
}

func (r *Refresher) refreshOne(ctx context.Context, address string) bool {
	var (
		raw       RawVault
		permanent error
	)
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		raw, err = r.source.Fetch(ctx, common.HexToAddress(address))
		if errors.Is(err, ErrUnknownAsset) {
			permanent = err
			return nil
		}
		return err
	})
	if err == nil {
		err = permanent
	}
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("vault refresh failed", zap.String("vault", address), zap.Error(err))
		}
		if markErr := r.store.MarkError(address, err); markErr != nil && !errors.Is(markErr, ErrNotTracked) {
			r.logger.Warn("mark error failed", zap.String("vault", address), zap.Error(markErr))
		}
		return false
	}

	view := BuildView(raw, r.now())
	if err := r.store.Upsert(view); err != nil {
		if errors.Is(err, ErrNotTracked) {
			r.logger.Debug("vault removed during refresh", zap.String("vault", address))
			return true
		}
		r.logger.Warn("store update failed", zap.String("vault", address), zap.Error(err))
		return false
	}
	r.recorder.RecordFeed(ctx, view.AssetCode, string(view.Selection.Source), view.FeedMismatch)
	return true
}

// syncTracked reconciles the store with the tracked list. On a read error the
// current set is kept.
func (r *Refresher) syncTracked() {
	if r.tracked == nil {
		return
	}
	addresses, err := r.tracked()
	if err != nil {
		r.logger.Warn("load tracked vaults failed", zap.Error(err))
		return
	}

	want := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		key := NormalizeAddress(addr)
		want[key] = struct{}{}
		if r.store.Add(key) {
			r.logger.Info("tracking vault", zap.String("vault", key))
		}
	}
	for _, key := range r.store.Addresses() {
		if _, ok := want[key]; ok {
			continue
		}
		if r.store.Remove(key) {
			r.logger.Info("untracking vault", zap.String("vault", key))
		}
	}
}
