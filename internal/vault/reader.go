package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/dex"
	"vaultScope/internal/model"
)

// ErrUnknownAsset is returned for vaults whose lock token is not in the registry.
var ErrUnknownAsset = errors.New("unknown asset")

// FeedStates holds both pools for an asset. A read failure on one pool is kept
// beside the other pool's state instead of failing the whole read.
type FeedStates struct {
	Primary    model.PairState
	PrimaryErr error
	Backup     model.PairState
	BackupErr  error
}

// RawVault is everything read from chain for one vault, before any pricing.
type RawVault struct {
	Address       common.Address
	Terms         dex.VaultTerms
	Asset         model.AssetConfig
	LockedBalance *big.Int
	LockSymbol    string
	Feeds         FeedStates
	Detail        *model.FeedDetail
}

// Source is the data-fetch boundary the refresher depends on.
type Source interface {
	Fetch(ctx context.Context, address common.Address) (RawVault, error)
	FetchFeeds(ctx context.Context, asset model.AssetConfig) FeedStates
}

// Reader reads vault and pool state over a chain.Caller.
type Reader struct {
	caller     chain.Caller
	registry   *config.AssetRegistry
	pairs      *dex.PairTokenCache
	tokens     *dex.TokenMetaCache
	feedDetail bool
	logger     *zap.Logger
}

// NewReader builds a Reader. When feedDetail is set the vault's own
// getPriceDetail view is read alongside the pools.
func NewReader(caller chain.Caller, registry *config.AssetRegistry, feedDetail bool, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		caller:     caller,
		registry:   registry,
		pairs:      dex.NewPairTokenCache(),
		tokens:     dex.NewTokenMetaCache(),
		feedDetail: feedDetail,
		logger:     logger,
	}
}

// Fetch reads one vault's terms, balance and both price feeds.
func (r *Reader) Fetch(ctx context.Context, address common.Address) (RawVault, error) {
	if r.caller == nil {
		return RawVault{}, fmt.Errorf("chain caller is nil")
	}
	if r.registry == nil {
		return RawVault{}, fmt.Errorf("asset registry is nil")
	}

	terms, err := dex.FetchVaultTerms(ctx, r.caller, address)
	if err != nil {
		return RawVault{}, fmt.Errorf("read vault terms: %w", err)
	}

	asset, ok := r.registry.ByLockToken(terms.LockToken, terms.IsNative)
	if !ok {
		return RawVault{}, fmt.Errorf("%w: lock token %s", ErrUnknownAsset, terms.LockToken.Hex())
	}

	var balance *big.Int
	if terms.IsNative {
		balance, err = r.caller.BalanceAt(ctx, address, nil)
	} else {
		balance, err = dex.BalanceOf(ctx, r.caller, terms.LockToken, address)
	}
	if err != nil {
		return RawVault{}, fmt.Errorf("read locked balance: %w", err)
	}

	raw := RawVault{
		Address:       address,
		Terms:         terms,
		Asset:         asset,
		LockedBalance: balance,
		LockSymbol:    r.lockSymbol(ctx, asset),
		Feeds:         r.FetchFeeds(ctx, asset),
	}

	if r.feedDetail {
		detail, err := dex.FetchFeedDetail(ctx, r.caller, address)
		if err != nil {
			r.logger.Debug("feed detail unavailable", zap.String("vault", address.Hex()), zap.Error(err))
		} else {
			raw.Detail = detail
		}
	}

	return raw, nil
}

// FetchFeeds reads both configured pools of an asset.
func (r *Reader) FetchFeeds(ctx context.Context, asset model.AssetConfig) FeedStates {
	var states FeedStates
	states.Primary, states.PrimaryErr = r.fetchPair(ctx, asset.Primary)
	states.Backup, states.BackupErr = r.fetchPair(ctx, asset.Backup)
	return states
}

func (r *Reader) fetchPair(ctx context.Context, quote model.QuoteConfig) (model.PairState, error) {
	if !quote.Configured() {
		return model.PairState{}, nil
	}
	state, err := dex.FetchPairState(ctx, r.caller, quote.Pair, r.pairs)
	if err != nil {
		r.logger.Debug("pair read failed", zap.String("pair", quote.Pair.Hex()), zap.Error(err))
		return model.PairState{}, err
	}
	return state, nil
}

// lockSymbol returns the on-chain symbol of an asset's lock token, warning once
// when its decimals disagree with the registry.
func (r *Reader) lockSymbol(ctx context.Context, asset model.AssetConfig) string {
	if asset.IsNative {
		return asset.Label
	}
	if meta, ok := r.tokens.Get(asset.LockToken); ok {
		return meta.Symbol
	}

	meta, err := dex.FetchTokenMeta(ctx, r.caller, asset.LockToken, r.logger)
	if err != nil {
		r.logger.Debug("token metadata unavailable", zap.String("token", asset.LockToken.Hex()), zap.Error(err))
		return asset.Label
	}
	if meta.Symbol == "" {
		meta.Symbol = asset.Label
	}
	if meta.Decimals != asset.LockDecimals {
		r.logger.Warn("lock token decimals differ from asset config",
			zap.String("asset", asset.Code),
			zap.Uint8("chain_decimals", meta.Decimals),
			zap.Uint8("config_decimals", asset.LockDecimals),
		)
	}
	r.tokens.Set(asset.LockToken, meta)
	return meta.Symbol
}
