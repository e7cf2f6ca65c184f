package price

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
)

const (
	lockAddr  = "0xAAaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	quoteAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func units(amount int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(amount), pow10(decimals))
}

func TestResolvePoolPriceMixedDecimals(t *testing.T) {
	// 100 tokens at 8 decimals against 250 quote units at 6 decimals.
	// fixed = 250e6 * 1e18 / 100e8 = 2.5e16; float = 2.5e16 / 10^(18+6-8) = 2.5 USD per token.
	snap := ResolvePoolPrice(big.NewInt(100_00000000), big.NewInt(250_000000), 8, 6)

	require.True(t, snap.OK)
	require.Equal(t, "25000000000000000", snap.PriceFixed.String())
	assert.Equal(t, 2.5, snap.PriceFloat)
	assert.Equal(t, 250.0, snap.QuoteReserveFloat)
}

func TestResolvePoolPriceEqualDecimals(t *testing.T) {
	snap := ResolvePoolPrice(units(1_000_000, 18), units(50, 18), 18, 18)

	require.True(t, snap.OK)
	require.Equal(t, "50000000000000", snap.PriceFixed.String())
	assert.InDelta(t, 0.00005, snap.PriceFloat, 1e-18)
	assert.Equal(t, 50.0, snap.QuoteReserveFloat)
}

func TestResolvePoolPriceFloorDivision(t *testing.T) {
	// 1e18 / 3 truncates toward zero like the contract.
	snap := ResolvePoolPrice(big.NewInt(3), big.NewInt(1), 18, 18)

	require.True(t, snap.OK)
	require.Equal(t, "333333333333333333", snap.PriceFixed.String())
}

func TestResolvePoolPriceZeroReserves(t *testing.T) {
	tests := []struct {
		name  string
		lock  *big.Int
		quote *big.Int
	}{
		{name: "zero lock", lock: big.NewInt(0), quote: big.NewInt(10)},
		{name: "zero quote", lock: big.NewInt(10), quote: big.NewInt(0)},
		{name: "both zero", lock: big.NewInt(0), quote: big.NewInt(0)},
		{name: "nil lock", lock: nil, quote: big.NewInt(10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := ResolvePoolPrice(tt.lock, tt.quote, 18, 18)
			assert.False(t, snap.OK)
			assert.Nil(t, snap.PriceFixed)
			assert.Zero(t, snap.PriceFloat)
		})
	}
}

func TestResolvePoolPriceMatchesRatio(t *testing.T) {
	tests := []struct {
		lock, quote   int64
		dLock, dQuote uint8
	}{
		{lock: 4, quote: 9, dLock: 18, dQuote: 18},
		{lock: 7, quote: 3, dLock: 8, dQuote: 18},
		{lock: 4, quote: 5, dLock: 18, dQuote: 6},
		{lock: 1, quote: 1, dLock: 0, dQuote: 18},
		{lock: 2, quote: 8, dLock: 6, dQuote: 0},
	}

	for _, tt := range tests {
		rL := units(tt.lock, int64(tt.dLock))
		rQ := units(tt.quote, int64(tt.dQuote))
		snap := ResolvePoolPrice(rL, rQ, tt.dLock, tt.dQuote)

		require.True(t, snap.OK)
		want := float64(tt.quote) / float64(tt.lock)
		assert.InEpsilon(t, want, snap.PriceFloat, 1e-9, "lock=%d quote=%d dL=%d dQ=%d", tt.lock, tt.quote, tt.dLock, tt.dQuote)
	}
}

func TestResolvePairEitherOrder(t *testing.T) {
	lockFirst := model.PairState{
		Pair:     "0xpair",
		Token0:   lockAddr,
		Token1:   quoteAddr,
		Reserve0: units(100, 8),
		Reserve1: units(250, 6),
	}
	quoteFirst := model.PairState{
		Pair:     "0xpair",
		Token0:   quoteAddr,
		Token1:   lockAddr,
		Reserve0: units(250, 6),
		Reserve1: units(100, 8),
	}

	a := ResolvePair(lockFirst, lockAddr, quoteAddr, 8, 6)
	b := ResolvePair(quoteFirst, lockAddr, quoteAddr, 8, 6)

	require.True(t, a.OK)
	require.True(t, b.OK)
	assert.Equal(t, 0, a.PriceFixed.Cmp(b.PriceFixed))
	assert.Equal(t, 2.5, a.PriceFloat)
}

func TestResolvePairTokenMismatch(t *testing.T) {
	pair := model.PairState{
		Pair:     "0xpair",
		Token0:   lockAddr,
		Token1:   "0xcccccccccccccccccccccccccccccccccccccccc",
		Reserve0: big.NewInt(1),
		Reserve1: big.NewInt(1),
	}

	snap := ResolvePair(pair, lockAddr, quoteAddr, 18, 18)
	assert.False(t, snap.OK)
	assert.Equal(t, "token mismatch", snap.Reason)

	snap = ResolvePair(model.PairState{}, lockAddr, quoteAddr, 18, 18)
	assert.False(t, snap.OK)
	assert.Equal(t, "pair not configured", snap.Reason)
}

func feed(price, reserve float64) model.PoolSnapshot {
	return model.PoolSnapshot{OK: true, PriceFixed: big.NewInt(int64(price * 1000)), PriceFloat: price, QuoteReserveFloat: reserve}
}

func TestSelectEffectiveFeed(t *testing.T) {
	down := model.PoolSnapshot{}

	tests := []struct {
		name    string
		primary model.PoolSnapshot
		backup  model.PoolSnapshot
		source  model.FeedSource
		price   float64
	}{
		{name: "only primary", primary: feed(1.0, 10), backup: down, source: model.FeedPrimary, price: 1.0},
		{name: "only backup", primary: down, backup: feed(2.0, 10), source: model.FeedBackup, price: 2.0},
		{name: "none", primary: down, backup: down, source: model.FeedNone, price: 0},
		{name: "deeper backup", primary: feed(3.0, 500), backup: feed(1.0, 1200), source: model.FeedBackup, price: 1.0},
		{name: "deeper primary", primary: feed(1.0, 1200), backup: feed(3.0, 500), source: model.FeedPrimary, price: 1.0},
		{name: "tie higher backup price", primary: feed(1.0, 700), backup: feed(1.5, 700), source: model.FeedBackup, price: 1.5},
		{name: "tie higher primary price", primary: feed(1.5, 700), backup: feed(1.0, 700), source: model.FeedPrimary, price: 1.5},
		{name: "full tie", primary: feed(1.0, 700), backup: feed(1.0, 700), source: model.FeedPrimary, price: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectEffectiveFeed(tt.primary, tt.backup)
			assert.Equal(t, tt.source, sel.Source)
			assert.Equal(t, tt.price, sel.PriceFloat)
		})
	}
}

func TestSelectEffectiveFeedSwapIsComplementary(t *testing.T) {
	a := feed(2.0, 300)
	b := feed(1.0, 900)

	forward := SelectEffectiveFeed(a, b)
	reverse := SelectEffectiveFeed(b, a)

	assert.Equal(t, model.FeedBackup, forward.Source)
	assert.Equal(t, model.FeedPrimary, reverse.Source)
	assert.Equal(t, forward.PriceFloat, reverse.PriceFloat)

	none := SelectEffectiveFeed(model.PoolSnapshot{}, model.PoolSnapshot{})
	assert.False(t, none.Available())
}

func TestSelectEffectiveFeedCopiesFixedPrice(t *testing.T) {
	primary := feed(1.0, 10)
	sel := SelectEffectiveFeed(primary, model.PoolSnapshot{})
	sel.PriceFixed.SetInt64(0)
	assert.Equal(t, int64(1000), primary.PriceFixed.Int64())
}

func TestComputeGoalAndEligibility(t *testing.T) {
	const now = int64(1_700_000_000)

	tests := []struct {
		name      string
		price     float64
		threshold float64
		unlock    int64
		withdrawn bool
		goal      float64
		can       bool
	}{
		{name: "locked", price: 0.5, threshold: 1.0, unlock: now + 100, goal: 50, can: false},
		{name: "price reached exactly", price: 1.0, threshold: 1.0, unlock: now + 100, goal: 100, can: true},
		{name: "price above clamps goal", price: 3.0, threshold: 1.0, unlock: now + 100, goal: 100, can: true},
		{name: "time reached exactly", price: 0.1, threshold: 1.0, unlock: now, goal: 10, can: true},
		{name: "no feed time path", price: 0, threshold: 1.0, unlock: now - 10, goal: 0, can: true},
		{name: "no feed locked", price: 0, threshold: 1.0, unlock: now + 10, goal: 0, can: false},
		{name: "zero threshold", price: 5.0, threshold: 0, unlock: now + 10, goal: 0, can: false},
		{name: "withdrawn overrides all", price: 100, threshold: 1.0, unlock: now - 1_000_000, withdrawn: true, goal: 100, can: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeGoalAndEligibility(tt.price, tt.threshold, tt.unlock, now, tt.withdrawn)
			assert.InDelta(t, tt.goal, got.GoalPercent, 1e-9)
			assert.Equal(t, tt.can, got.CanWithdraw)
		})
	}
}

func TestComputeGoalAndEligibilityConditions(t *testing.T) {
	got := ComputeGoalAndEligibility(2, 1, 10, 5, false)
	assert.True(t, got.PriceConditionMet)
	assert.False(t, got.TimeConditionMet)

	got = ComputeGoalAndEligibility(0, 1, 10, 10, true)
	assert.False(t, got.PriceConditionMet)
	assert.True(t, got.TimeConditionMet)
	assert.False(t, got.CanWithdraw)
	assert.False(t, math.IsNaN(got.GoalPercent))
}

func TestFixedConversions(t *testing.T) {
	fixed, err := FloatToFixed("1.25")
	require.NoError(t, err)
	assert.Equal(t, "1250000000000000000", fixed.String())
	assert.Equal(t, 1.25, FixedToFloat(fixed))

	fixed, err = FloatToFixed("0.0000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0", fixed.String())

	_, err = FloatToFixed("abc")
	assert.Error(t, err)

	assert.Zero(t, FixedToFloat(nil))
}
