package vault

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/config"
	"vaultScope/internal/dex"
	"vaultScope/internal/model"
)

type fakeSource struct {
	mu     sync.Mutex
	vaults map[common.Address]RawVault
	errs   map[common.Address]error
	feeds  FeedStates
	calls  map[common.Address]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		vaults: make(map[common.Address]RawVault),
		errs:   make(map[common.Address]error),
		calls:  make(map[common.Address]int),
	}
}

func (f *fakeSource) Fetch(_ context.Context, address common.Address) (RawVault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[address]++
	if err, ok := f.errs[address]; ok {
		return RawVault{}, err
	}
	raw, ok := f.vaults[address]
	if !ok {
		return RawVault{}, fmt.Errorf("execution reverted")
	}
	return raw, nil
}

func (f *fakeSource) FetchFeeds(context.Context, model.AssetConfig) FeedStates {
	return f.feeds
}

func hexAsset() model.AssetConfig {
	registry, err := config.NewAssetRegistry(nil)
	if err != nil {
		panic(err)
	}
	asset, _ := registry.Lookup("HEX")
	return asset
}

// pairFor builds a pair holding lock and quote reserves with the lock token first.
func pairFor(asset model.AssetConfig, quote model.QuoteConfig, reserveLock, reserveQuote *big.Int) model.PairState {
	return model.PairState{
		Pair:     quote.Pair.Hex(),
		Token0:   asset.LockToken.Hex(),
		Token1:   quote.Token.Hex(),
		Reserve0: reserveLock,
		Reserve1: reserveQuote,
	}
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func units(amount, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(amount), pow10(decimals))
}

// rawHexVault is a HEX vault whose primary pool prices HEX at 0.25 DAI.
func rawHexVault(address string, threshold string, unlock, start int64) RawVault {
	asset := hexAsset()
	thresholdFixed, ok := new(big.Int).SetString(threshold, 10)
	if !ok {
		panic("bad threshold")
	}
	return RawVault{
		Address: common.HexToAddress(address),
		Terms: dex.VaultTerms{
			Owner:      common.HexToAddress("0x5555555555555555555555555555555555555555"),
			LockToken:  asset.LockToken,
			Threshold:  thresholdFixed,
			UnlockTime: unlock,
			StartTime:  start,
		},
		Asset:         asset,
		LockedBalance: units(1000, 8),
		Feeds: FeedStates{
			Primary: pairFor(asset, asset.Primary, units(400, 8), units(100, 18)),
		},
	}
}
