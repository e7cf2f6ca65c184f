package model

import (
	"encoding/json"
	"math/big"
)

// FeedSource identifies which liquidity pool priced a vault.
type FeedSource string

const (
	FeedNone    FeedSource = "none"
	FeedPrimary FeedSource = "primary"
	FeedBackup  FeedSource = "backup"
)

// PairState is the raw pool state as read from chain.
type PairState struct {
	Pair     string   `json:"pair"`
	Token0   string   `json:"token0"`
	Token1   string   `json:"token1"`
	Reserve0 *big.Int `json:"-"`
	Reserve1 *big.Int `json:"-"`
}

// PoolSnapshot is the price derived from one pool during one refresh.
type PoolSnapshot struct {
	OK                bool     `json:"ok"`
	Reason            string   `json:"reason,omitempty"`
	PriceFixed        *big.Int `json:"price_fixed"`
	PriceFloat        float64  `json:"price_float"`
	QuoteReserveFloat float64  `json:"quote_reserve_float"`
}

// MarshalJSON encodes the fixed-point price as a decimal string.
func (s PoolSnapshot) MarshalJSON() ([]byte, error) {
	type Alias PoolSnapshot
	return json.Marshal(struct {
		Alias
		PriceFixed string `json:"price_fixed"`
	}{
		Alias:      Alias(s),
		PriceFixed: bigString(s.PriceFixed),
	})
}

// FeedSelection is the effective price chosen between the primary and backup feeds.
type FeedSelection struct {
	Source     FeedSource `json:"source"`
	PriceFixed *big.Int   `json:"-"`
	PriceFloat float64    `json:"price_float"`
}

// Available reports whether any feed produced a price.
func (s FeedSelection) Available() bool {
	return s.Source != FeedNone && s.Source != ""
}

// Eligibility is the unlock verdict for a vault at a point in time.
type Eligibility struct {
	GoalPercent       float64 `json:"goal_percent"`
	TimeConditionMet  bool    `json:"time_condition_met"`
	PriceConditionMet bool    `json:"price_condition_met"`
	CanWithdraw       bool    `json:"can_withdraw"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
