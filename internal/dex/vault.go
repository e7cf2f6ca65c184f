package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/chain"
	"vaultScope/internal/model"
)

// VaultTerms are the lock parameters and status a vault reports about itself.
type VaultTerms struct {
	Owner      common.Address
	LockToken  common.Address
	IsNative   bool
	Threshold  *big.Int
	UnlockTime int64
	StartTime  int64
	Withdrawn  bool
}

// FetchVaultTerms reads the vault's owner, lock token and unlock terms.
func FetchVaultTerms(ctx context.Context, caller chain.Caller, vault common.Address) (VaultTerms, error) {
	parsed, err := VaultABI()
	if err != nil {
		return VaultTerms{}, fmt.Errorf("parse vault abi: %w", err)
	}

	call := func(method string) (interface{}, error) {
		values, err := Call(ctx, caller, vault, parsed, method, nil)
		if err != nil {
			return nil, err
		}
		return values[0], nil
	}

	var terms VaultTerms
	steps := []struct {
		method string
		assign func(interface{}) error
	}{
		{"owner", func(v interface{}) (err error) { terms.Owner, err = asAddress(v); return }},
		{"lockToken", func(v interface{}) (err error) { terms.LockToken, err = asAddress(v); return }},
		{"isNative", func(v interface{}) (err error) { terms.IsNative, err = asBool(v); return }},
		{"priceThreshold", func(v interface{}) (err error) { terms.Threshold, err = asBigInt(v); return }},
		{"unlockTime", func(v interface{}) (err error) { terms.UnlockTime, err = asInt64(v); return }},
		{"startTime", func(v interface{}) (err error) { terms.StartTime, err = asInt64(v); return }},
		{"withdrawn", func(v interface{}) (err error) { terms.Withdrawn, err = asBool(v); return }},
	}
	for _, step := range steps {
		value, err := call(step.method)
		if err != nil {
			return VaultTerms{}, err
		}
		if err := step.assign(value); err != nil {
			return VaultTerms{}, fmt.Errorf("%s: %w", step.method, err)
		}
	}
	return terms, nil
}

// FetchFeedDetail reads the vault's own combined feed view and withdraw verdict.
func FetchFeedDetail(ctx context.Context, caller chain.Caller, vault common.Address) (*model.FeedDetail, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}

	values, err := Call(ctx, caller, vault, parsed, "getPriceDetail", nil)
	if err != nil {
		return nil, err
	}
	if len(values) != 8 {
		return nil, fmt.Errorf("unexpected price detail values: %d", len(values))
	}

	price, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	primaryOK, err := asBool(values[1])
	if err != nil {
		return nil, fmt.Errorf("primaryOk: %w", err)
	}
	primaryPrice, err := asBigInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("primaryPrice: %w", err)
	}
	primaryReserve, err := asBigInt(values[3])
	if err != nil {
		return nil, fmt.Errorf("primaryQuoteReserve: %w", err)
	}
	backupOK, err := asBool(values[4])
	if err != nil {
		return nil, fmt.Errorf("backupOk: %w", err)
	}
	backupPrice, err := asBigInt(values[5])
	if err != nil {
		return nil, fmt.Errorf("backupPrice: %w", err)
	}
	backupReserve, err := asBigInt(values[6])
	if err != nil {
		return nil, fmt.Errorf("backupQuoteReserve: %w", err)
	}
	usedPrimary, err := asBool(values[7])
	if err != nil {
		return nil, fmt.Errorf("usedPrimary: %w", err)
	}

	detail := &model.FeedDetail{
		PriceFixed:          price,
		PrimaryOK:           primaryOK,
		PrimaryPrice:        primaryPrice,
		PrimaryQuoteReserve: primaryReserve,
		BackupOK:            backupOK,
		BackupPrice:         backupPrice,
		BackupQuoteReserve:  backupReserve,
		Used:                usedFeed(usedPrimary, primaryOK, backupOK),
	}

	values, err = Call(ctx, caller, vault, parsed, "canWithdraw", nil)
	if err != nil {
		return nil, err
	}
	if detail.CanWithdraw, err = asBool(values[0]); err != nil {
		return nil, fmt.Errorf("canWithdraw: %w", err)
	}
	return detail, nil
}

func usedFeed(usedPrimary, primaryOK, backupOK bool) model.FeedSource {
	switch {
	case usedPrimary && primaryOK:
		return model.FeedPrimary
	case !usedPrimary && backupOK:
		return model.FeedBackup
	default:
		return model.FeedNone
	}
}
