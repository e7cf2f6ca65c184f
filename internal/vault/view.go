package vault

import (
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vaultScope/internal/model"
	"vaultScope/internal/price"
)

// PriceFeeds prices both feeds of an asset and selects the effective one.
func PriceFeeds(asset model.AssetConfig, feeds FeedStates) (primary, backup model.PoolSnapshot, sel model.FeedSelection) {
	primary = snapshotFor(feeds.Primary, feeds.PrimaryErr, asset, asset.Primary)
	backup = snapshotFor(feeds.Backup, feeds.BackupErr, asset, asset.Backup)
	return primary, backup, price.SelectEffectiveFeed(primary, backup)
}

// BuildView turns a raw chain read into the rendered vault state at now.
func BuildView(raw RawVault, now time.Time) model.VaultView {
	asset := raw.Asset
	primary, backup, sel := PriceFeeds(asset, raw.Feeds)

	view := model.VaultView{
		Address:        NormalizeAddress(raw.Address.Hex()),
		Owner:          strings.ToLower(raw.Terms.Owner.Hex()),
		AssetCode:      asset.Code,
		AssetLabel:     asset.Label,
		LockToken:      strings.ToLower(raw.Terms.LockToken.Hex()),
		IsNative:       raw.Terms.IsNative,
		ThresholdFixed: cloneBig(raw.Terms.Threshold),
		ThresholdFloat: price.FixedToFloat(raw.Terms.Threshold),
		UnlockTime:     raw.Terms.UnlockTime,
		StartTime:      raw.Terms.StartTime,
		Withdrawn:      raw.Terms.Withdrawn,
		LockedBalance:  cloneBig(raw.LockedBalance),
		LockSymbol:     raw.LockSymbol,
		LockedAmount:   price.FormatTokenAmount(raw.LockedBalance, asset.LockDecimals),
		Primary:        primary,
		Backup:         backup,
		Selection:      sel,
		Contract:       raw.Detail,
		RefreshedAt:    now.UTC(),
	}
	if raw.LockedBalance != nil {
		view.LockedBalanceFloat = decimal.NewFromBigInt(raw.LockedBalance, -int32(asset.LockDecimals)).InexactFloat64()
	}

	view = Recompute(view, now)
	if raw.Detail != nil {
		view.FeedMismatch = raw.Detail.Used != sel.Source || raw.Detail.CanWithdraw != view.Eligibility.CanWithdraw
	}
	return view
}

// Recompute re-derives eligibility and time progress from the cached selection.
func Recompute(view model.VaultView, now time.Time) model.VaultView {
	ts := now.Unix()
	view.Eligibility = price.ComputeGoalAndEligibility(view.Selection.PriceFloat, view.ThresholdFloat, view.UnlockTime, ts, view.Withdrawn)
	view.TimeProgress = price.TimeProgress(view.StartTime, view.UnlockTime, ts)
	return view
}

func snapshotFor(state model.PairState, readErr error, asset model.AssetConfig, quote model.QuoteConfig) model.PoolSnapshot {
	if readErr != nil {
		return model.PoolSnapshot{Reason: "pair read failed"}
	}
	if !quote.Configured() {
		return price.ResolvePair(model.PairState{}, "", "", 0, 0)
	}
	return price.ResolvePair(state, asset.LockToken.Hex(), quote.Token.Hex(), asset.LockDecimals, quote.Decimals)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
