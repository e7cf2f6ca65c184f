package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
)

const vaultA = "0x00000000000000000000000000000000000000A1"

func TestBuildViewPricesPrimaryFeed(t *testing.T) {
	now := time.Unix(1_700_000_500, 0)
	raw := rawHexVault(vaultA, "500000000000000000", 1_700_001_000, 1_700_000_000)

	view := BuildView(raw, now)

	assert.Equal(t, "0x00000000000000000000000000000000000000a1", view.Address)
	assert.Equal(t, "HEX", view.AssetCode)
	require.True(t, view.Primary.OK)
	assert.False(t, view.Backup.OK)
	assert.Equal(t, "pair not configured", view.Backup.Reason)
	assert.Equal(t, model.FeedPrimary, view.Selection.Source)
	assert.InDelta(t, 0.25, view.Selection.PriceFloat, 1e-12)
	assert.InDelta(t, 0.5, view.ThresholdFloat, 1e-12)
	assert.InDelta(t, 50, view.Eligibility.GoalPercent, 1e-9)
	assert.False(t, view.CanWithdraw())
	assert.InDelta(t, 50, view.TimeProgress, 1e-9)
	assert.Equal(t, 1000.0, view.LockedBalanceFloat)
}

func TestBuildViewFeedReadFailureFallsBackToTime(t *testing.T) {
	raw := rawHexVault(vaultA, "500000000000000000", 1_700_000_000, 1_600_000_000)
	raw.Feeds = FeedStates{PrimaryErr: errors.New("execution reverted")}

	view := BuildView(raw, time.Unix(1_700_000_001, 0))

	assert.Equal(t, model.FeedNone, view.Selection.Source)
	assert.Equal(t, "pair read failed", view.Primary.Reason)
	assert.True(t, view.Eligibility.TimeConditionMet)
	assert.True(t, view.CanWithdraw())
}

func TestBuildViewFlagsContractMismatch(t *testing.T) {
	raw := rawHexVault(vaultA, "500000000000000000", 1_800_000_000, 1_700_000_000)
	raw.Detail = &model.FeedDetail{Used: model.FeedBackup}

	view := BuildView(raw, time.Unix(1_700_000_000, 0))
	assert.True(t, view.FeedMismatch)

	raw.Detail = &model.FeedDetail{Used: model.FeedPrimary}
	view = BuildView(raw, time.Unix(1_700_000_000, 0))
	assert.False(t, view.FeedMismatch)

	// Same feed, but the contract already allows withdrawal while the client does not.
	raw.Detail = &model.FeedDetail{Used: model.FeedPrimary, CanWithdraw: true}
	view = BuildView(raw, time.Unix(1_700_000_000, 0))
	assert.False(t, view.CanWithdraw())
	assert.True(t, view.FeedMismatch)
	assert.True(t, view.Contract.CanWithdraw)
}

func TestBuildViewDeeperBackupWins(t *testing.T) {
	raw := rawHexVault(vaultA, "500000000000000000", 1_800_000_000, 1_700_000_000)
	raw.Asset.Backup = model.QuoteConfig{
		Token:    common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"),
		Decimals: 6,
		Pair:     common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd"),
	}
	// 1200 USD of depth at 6 decimals, pricing HEX at 0.6.
	raw.Feeds.Backup = pairFor(raw.Asset, raw.Asset.Backup, units(2000, 8), units(1200, 6))

	view := BuildView(raw, time.Unix(1_700_000_000, 0))

	assert.Equal(t, model.FeedBackup, view.Selection.Source)
	assert.InDelta(t, 0.6, view.Selection.PriceFloat, 1e-12)
	assert.True(t, view.Eligibility.PriceConditionMet)
	assert.True(t, view.CanWithdraw())
}

func TestRecomputeFollowsClock(t *testing.T) {
	raw := rawHexVault(vaultA, "500000000000000000", 1_700_000_100, 1_700_000_000)
	view := BuildView(raw, time.Unix(1_700_000_050, 0))
	require.False(t, view.CanWithdraw())

	later := Recompute(view, time.Unix(1_700_000_100, 0))
	assert.True(t, later.CanWithdraw())
	assert.Equal(t, 100.0, later.TimeProgress)
}
