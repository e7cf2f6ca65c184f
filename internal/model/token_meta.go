package model

import "github.com/ethereum/go-ethereum/common"

// TokenMeta captures the ERC20 fields needed to scale balances.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
}
