package model

import "github.com/ethereum/go-ethereum/common"

// QuoteConfig describes one USD-side price feed for a locked asset.
type QuoteConfig struct {
	Token    common.Address `json:"token"`
	Decimals uint8          `json:"decimals"`
	Pair     common.Address `json:"pair"`
}

// Configured reports whether the feed has both a quote token and a pair.
func (q QuoteConfig) Configured() bool {
	return q.Token != (common.Address{}) && q.Pair != (common.Address{})
}

// AssetConfig is the static description of a lockable asset. The decimal counts
// must match the values the deployed vault contracts use.
type AssetConfig struct {
	Code         string         `json:"code"`
	Label        string         `json:"label"`
	Key          common.Hash    `json:"key"`
	IsNative     bool           `json:"is_native"`
	LockToken    common.Address `json:"lock_token"`
	LockDecimals uint8          `json:"lock_decimals"`
	Primary      QuoteConfig    `json:"primary"`
	Backup       QuoteConfig    `json:"backup"`
}
