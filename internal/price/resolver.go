package price

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"vaultScope/internal/model"
)

// FixedScale is the decimal precision of on-chain fixed-point prices.
const FixedScale = 18

const (
	reasonZeroReserves  = "zero reserves"
	reasonTokenMismatch = "token mismatch"
	reasonNotConfigured = "pair not configured"
)

var fixedOne = new(big.Int).Exp(big.NewInt(10), big.NewInt(FixedScale), nil)

// ResolvePoolPrice prices the locked token in quote units from raw pool reserves.
//
// The fixed price is reserveQuote * 1e18 / reserveLock with floor division, the
// same integer arithmetic the vault contract performs. PriceFloat rescales that raw
// value by 10^(18 + quoteDecimals - lockDecimals) so tokens with different decimal
// counts produce a true USD-per-token figure.
func ResolvePoolPrice(reserveLock, reserveQuote *big.Int, lockDecimals, quoteDecimals uint8) model.PoolSnapshot {
	if reserveLock == nil || reserveQuote == nil || reserveLock.Sign() <= 0 || reserveQuote.Sign() <= 0 {
		return unavailable(reasonZeroReserves)
	}

	fixed := new(big.Int).Mul(reserveQuote, fixedOne)
	fixed.Quo(fixed, reserveLock)

	shift := int32(FixedScale) + int32(quoteDecimals) - int32(lockDecimals)

	return model.PoolSnapshot{
		OK:                true,
		PriceFixed:        fixed,
		PriceFloat:        decimal.NewFromBigInt(fixed, -shift).InexactFloat64(),
		QuoteReserveFloat: decimal.NewFromBigInt(reserveQuote, -int32(quoteDecimals)).InexactFloat64(),
	}
}

// ResolvePair assigns lock/quote roles from the pool's token0/token1 in either
// order and prices the result. Pools that do not hold exactly the expected
// token pair are reported unavailable.
func ResolvePair(pair model.PairState, lockToken, quoteToken string, lockDecimals, quoteDecimals uint8) model.PoolSnapshot {
	if pair.Pair == "" {
		return unavailable(reasonNotConfigured)
	}

	token0 := strings.ToLower(pair.Token0)
	token1 := strings.ToLower(pair.Token1)
	lock := strings.ToLower(lockToken)
	quote := strings.ToLower(quoteToken)

	switch {
	case token0 == lock && token1 == quote:
		return ResolvePoolPrice(pair.Reserve0, pair.Reserve1, lockDecimals, quoteDecimals)
	case token1 == lock && token0 == quote:
		return ResolvePoolPrice(pair.Reserve1, pair.Reserve0, lockDecimals, quoteDecimals)
	default:
		return unavailable(reasonTokenMismatch)
	}
}

// SelectEffectiveFeed picks the feed used for eligibility. A lone valid feed wins;
// between two valid feeds the deeper USD-side reserve wins, then the higher price.
// A complete tie stays on the primary feed.
func SelectEffectiveFeed(primary, backup model.PoolSnapshot) model.FeedSelection {
	switch {
	case primary.OK && !backup.OK:
		return selection(model.FeedPrimary, primary)
	case backup.OK && !primary.OK:
		return selection(model.FeedBackup, backup)
	case !primary.OK && !backup.OK:
		return model.FeedSelection{Source: model.FeedNone}
	}

	if backup.QuoteReserveFloat > primary.QuoteReserveFloat {
		return selection(model.FeedBackup, backup)
	}
	if backup.QuoteReserveFloat == primary.QuoteReserveFloat && backup.PriceFloat > primary.PriceFloat {
		return selection(model.FeedBackup, backup)
	}
	return selection(model.FeedPrimary, primary)
}

// ComputeGoalAndEligibility derives the goal percentage and the unlock verdict.
// Either the time or the price condition unlocks a vault; a withdrawn vault is
// never eligible again.
func ComputeGoalAndEligibility(currentPrice, threshold float64, unlockTime, now int64, withdrawn bool) model.Eligibility {
	var goal float64
	if threshold > 0 {
		goal = clamp(currentPrice/threshold*100, 0, 100)
	}

	timeMet := now >= unlockTime
	priceMet := currentPrice > 0 && threshold > 0 && currentPrice >= threshold

	return model.Eligibility{
		GoalPercent:       goal,
		TimeConditionMet:  timeMet,
		PriceConditionMet: priceMet,
		CanWithdraw:       !withdrawn && (timeMet || priceMet),
	}
}

// FixedToFloat converts an 18-decimal fixed-point integer to a float.
func FixedToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	return decimal.NewFromBigInt(value, -FixedScale).InexactFloat64()
}

// FloatToFixed parses a decimal string into an 18-decimal fixed-point integer,
// truncating extra precision.
func FloatToFixed(input string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return nil, err
	}
	return d.Shift(FixedScale).BigInt(), nil
}

func selection(source model.FeedSource, snap model.PoolSnapshot) model.FeedSelection {
	var fixed *big.Int
	if snap.PriceFixed != nil {
		fixed = new(big.Int).Set(snap.PriceFixed)
	}
	return model.FeedSelection{
		Source:     source,
		PriceFixed: fixed,
		PriceFloat: snap.PriceFloat,
	}
}

func unavailable(reason string) model.PoolSnapshot {
	return model.PoolSnapshot{Reason: reason}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
