package model

import (
	"encoding/json"
	"math/big"
	"time"
)

// FeedDetail is the vault contract's own view of both feeds, read atomically.
type FeedDetail struct {
	PriceFixed          *big.Int   `json:"-"`
	PrimaryOK           bool       `json:"primary_ok"`
	PrimaryPrice        *big.Int   `json:"-"`
	PrimaryQuoteReserve *big.Int   `json:"-"`
	BackupOK            bool       `json:"backup_ok"`
	BackupPrice         *big.Int   `json:"-"`
	BackupQuoteReserve  *big.Int   `json:"-"`
	Used                FeedSource `json:"used"`
	CanWithdraw         bool       `json:"can_withdraw"`
}

// MarshalJSON encodes big integers as decimal strings.
func (d FeedDetail) MarshalJSON() ([]byte, error) {
	type Alias FeedDetail
	return json.Marshal(struct {
		Alias
		PriceFixed          string `json:"price_fixed"`
		PrimaryPrice        string `json:"primary_price"`
		PrimaryQuoteReserve string `json:"primary_quote_reserve"`
		BackupPrice         string `json:"backup_price"`
		BackupQuoteReserve  string `json:"backup_quote_reserve"`
	}{
		Alias:               Alias(d),
		PriceFixed:          bigString(d.PriceFixed),
		PrimaryPrice:        bigString(d.PrimaryPrice),
		PrimaryQuoteReserve: bigString(d.PrimaryQuoteReserve),
		BackupPrice:         bigString(d.BackupPrice),
		BackupQuoteReserve:  bigString(d.BackupQuoteReserve),
	})
}

// VaultView is the rendered state of one tracked vault.
type VaultView struct {
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	AssetCode  string `json:"asset_code"`
	AssetLabel string `json:"asset_label"`
	LockToken  string `json:"lock_token"`
	IsNative   bool   `json:"is_native"`

	ThresholdFixed *big.Int `json:"-"`
	ThresholdFloat float64  `json:"threshold_float"`
	UnlockTime     int64    `json:"unlock_time"`
	StartTime      int64    `json:"start_time"`

	Withdrawn          bool     `json:"withdrawn"`
	LockedBalance      *big.Int `json:"-"`
	LockedBalanceFloat float64  `json:"locked_balance_float"`
	LockedAmount       string   `json:"locked_amount"`
	LockSymbol         string   `json:"lock_symbol,omitempty"`

	Primary   PoolSnapshot  `json:"primary"`
	Backup    PoolSnapshot  `json:"backup"`
	Selection FeedSelection `json:"selection"`

	Eligibility  Eligibility `json:"eligibility"`
	TimeProgress float64     `json:"time_progress"`

	Contract     *FeedDetail `json:"contract,omitempty"`
	FeedMismatch bool        `json:"feed_mismatch"`

	Error       string    `json:"error,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// CanWithdraw is a shorthand for the derived eligibility verdict.
func (v VaultView) CanWithdraw() bool {
	return v.Eligibility.CanWithdraw
}

// MarshalJSON encodes big integers as decimal strings.
func (v VaultView) MarshalJSON() ([]byte, error) {
	type Alias VaultView
	return json.Marshal(struct {
		Alias
		ThresholdFixed string `json:"threshold_fixed"`
		LockedBalance  string `json:"locked_balance"`
		PriceFixed     string `json:"price_fixed"`
	}{
		Alias:          Alias(v),
		ThresholdFixed: bigString(v.ThresholdFixed),
		LockedBalance:  bigString(v.LockedBalance),
		PriceFixed:     bigString(v.Selection.PriceFixed),
	})
}
