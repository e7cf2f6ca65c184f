package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/dex"
	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

// RunConfig holds runtime settings for the registry scan.
type RunConfig struct {
	FromBlock    uint64
	ToBlock      uint64
	Factory      common.Address
	Owner        *common.Address
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Tracker receives the vault addresses discovered for an owner.
type Tracker interface {
	Add(owner string, addresses ...string) ([]string, error)
}

// AssetLookup resolves a factory asset key to a configured asset.
type AssetLookup interface {
	ByKey(key common.Hash) (model.AssetConfig, bool)
}

// Runner scans factory VaultCreated logs and hands them to the sinks.
type Runner struct {
	cfg         RunConfig
	assets      AssetLookup
	chain       chain.Caller
	decoder     *dex.VaultCreatedDecoder
	sinks       []storage.EventSink
	tracker     Tracker
	checkpoints Checkpoints
	logger      *zap.Logger
	seen        map[string]struct{}
}

// NewRunner builds a Runner with its dependencies. tracker and checkpoints may be nil.
func NewRunner(cfg RunConfig, caller chain.Caller, sinks []storage.EventSink, tracker Tracker, checkpoints Checkpoints, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := dex.NewVaultCreatedDecoder()
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	return &Runner{
		cfg:         cfg,
		chain:       caller,
		decoder:     decoder,
		sinks:       sinks,
		tracker:     tracker,
		checkpoints: checkpoints,
		logger:      logger,
		seen:        make(map[string]struct{}),
	}, nil
}

// WithAssets labels decoded events with the asset code of their key.
func (r *Runner) WithAssets(assets AssetLookup) *Runner {
	r.assets = assets
	return r
}

// Run executes the scan loop over the configured block range.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain caller is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Factory == (common.Address{}) {
		return fmt.Errorf("factory address is required")
	}

	chainID, err := r.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoints != nil {
		last, ok, err := r.checkpoints.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	total := 0
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		events := make([]model.VaultCreated, 0, len(logs))
		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) {
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			event, err := r.decoder.Decode(buildLogRecord(chainIDValue, log, ts))
			if err != nil {
				r.logger.Warn("skip undecodable log", zap.String("tx", log.TxHash.Hex()), zap.Uint("index", log.Index), zap.Error(err))
				continue
			}
			r.labelAsset(&event)
			events = append(events, event)
		}

		if err := r.deliver(ctx, events); err != nil {
			return err
		}

		if r.checkpoints != nil {
			if err := r.checkpoints.Save(ctx, blockRange.To); err != nil {
				return err
			}
		}

		total += len(events)
		r.logger.Info("batch complete", zap.Int("vaults", len(events)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	r.logger.Info("scan complete", zap.Int("vaults", total))
	return nil
}

func (r *Runner) labelAsset(event *model.VaultCreated) {
	if r.assets == nil {
		return
	}
	if asset, ok := r.assets.ByKey(common.HexToHash(event.AssetKey)); ok {
		event.AssetCode = asset.Code
		return
	}
	r.logger.Warn("vault created with unknown asset key", zap.String("vault", event.Vault), zap.String("asset_key", event.AssetKey))
}

func (r *Runner) deliver(ctx context.Context, events []model.VaultCreated) error {
	if len(events) == 0 {
		return nil
	}
	for _, sink := range r.sinks {
		if err := sink.PutVaultCreated(ctx, events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
	}
	if r.tracker == nil {
		return nil
	}

	byOwner := make(map[string][]string)
	var owners []string
	for _, event := range events {
		if _, ok := byOwner[event.Owner]; !ok {
			owners = append(owners, event.Owner)
		}
		byOwner[event.Owner] = append(byOwner[event.Owner], event.Vault)
	}
	for _, owner := range owners {
		added, err := r.tracker.Add(owner, byOwner[owner]...)
		if err != nil {
			return fmt.Errorf("track vaults: %w", err)
		}
		if len(added) > 0 {
			r.logger.Info("tracking new vaults", zap.String("owner", owner), zap.Strings("vaults", added))
		}
	}
	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{r.cfg.Factory},
		Topics:    eventTopics(r.decoder.Topic0(), r.cfg.Owner),
	}

	var logs []types.Log
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, query)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := chain.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
