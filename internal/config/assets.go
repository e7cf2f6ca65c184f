package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"vaultScope/internal/model"
)

// PulseChain token and PulseX pair addresses used by the default registry.
const (
	addrDAI  = "0xefD766cCb38EaF1dfd701853BFCe31359239F305"
	addrWPLS = "0xA1077a294dDE1B09bB078844df40758a5D0f9a27"
	addrPDAI = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	addrHEX  = "0x2b591e99afe9f32eaa6214f7b7629768c40eeb39"

	pairPLSDAI  = "0x146E1f1e060e5b5016Db0D118D2C5a11A240ae32" // PulseX V2
	pairPDAIDAI = "0xfC64556FAA683e6087F425819C7Ca3C558e13aC1" // PulseX V2
	pairHEXDAI  = "0x6F1747370B1CAcb911ad6D4477b718633DB328c8" // PulseX V1
)

// AssetSpec is the config-file form of an asset. Empty fields keep the default.
type AssetSpec struct {
	Label          string `mapstructure:"label"`
	Native         *bool  `mapstructure:"native"`
	LockToken      string `mapstructure:"lock-token"`
	LockDecimals   *uint8 `mapstructure:"lock-decimals"`
	PrimaryQuote   string `mapstructure:"primary-quote"`
	PrimaryDecimal *uint8 `mapstructure:"primary-quote-decimals"`
	PrimaryPair    string `mapstructure:"primary-pair"`
	BackupQuote    string `mapstructure:"backup-quote"`
	BackupDecimal  *uint8 `mapstructure:"backup-quote-decimals"`
	BackupPair     string `mapstructure:"backup-pair"`
}

// AssetRegistry is the immutable set of lockable assets.
type AssetRegistry struct {
	byCode map[string]model.AssetConfig
}

// DefaultAssets returns the built-in PLS, pDAI and HEX configuration.
// Backup feeds are left unconfigured and are supplied through the config file.
func DefaultAssets() []model.AssetConfig {
	return []model.AssetConfig{
		newAsset("PLS", "PLS", true, addrWPLS, 18, model.QuoteConfig{
			Token: common.HexToAddress(addrDAI), Decimals: 18, Pair: common.HexToAddress(pairPLSDAI),
		}),
		newAsset("PDAI", "pDAI", false, addrPDAI, 18, model.QuoteConfig{
			Token: common.HexToAddress(addrDAI), Decimals: 18, Pair: common.HexToAddress(pairPDAIDAI),
		}),
		newAsset("HEX", "HEX", false, addrHEX, 8, model.QuoteConfig{
			Token: common.HexToAddress(addrDAI), Decimals: 18, Pair: common.HexToAddress(pairHEXDAI),
		}),
	}
}

func newAsset(code, label string, native bool, lockToken string, lockDecimals uint8, primary model.QuoteConfig) model.AssetConfig {
	return model.AssetConfig{
		Code:         code,
		Label:        label,
		Key:          AssetKey(code),
		IsNative:     native,
		LockToken:    common.HexToAddress(lockToken),
		LockDecimals: lockDecimals,
		Primary:      primary,
		Backup:       model.QuoteConfig{Decimals: 18},
	}
}

// AssetKey is the bytes32 identifier the factory uses for an asset code.
func AssetKey(code string) common.Hash {
	return crypto.Keccak256Hash([]byte(code))
}

// NewAssetRegistry builds a registry from the defaults with overrides applied.
func NewAssetRegistry(overrides map[string]AssetSpec) (*AssetRegistry, error) {
	byCode := make(map[string]model.AssetConfig)
	for _, asset := range DefaultAssets() {
		byCode[asset.Code] = asset
	}

	for rawCode, spec := range overrides {
		code := strings.ToUpper(strings.TrimSpace(rawCode))
		if code == "" {
			continue
		}
		asset, ok := byCode[code]
		if !ok {
			asset = model.AssetConfig{Code: code, Label: code, Key: AssetKey(code), LockDecimals: 18}
			asset.Primary.Decimals = 18
			asset.Backup.Decimals = 18
		}
		if err := applySpec(&asset, spec); err != nil {
			return nil, fmt.Errorf("asset %s: %w", code, err)
		}
		if asset.LockToken == (common.Address{}) {
			return nil, fmt.Errorf("asset %s: lock token is required", code)
		}
		byCode[code] = asset
	}

	return &AssetRegistry{byCode: byCode}, nil
}

func applySpec(asset *model.AssetConfig, spec AssetSpec) error {
	if spec.Label != "" {
		asset.Label = spec.Label
	}
	if spec.Native != nil {
		asset.IsNative = *spec.Native
	}
	if spec.LockDecimals != nil {
		asset.LockDecimals = *spec.LockDecimals
	}
	if spec.PrimaryDecimal != nil {
		asset.Primary.Decimals = *spec.PrimaryDecimal
	}
	if spec.BackupDecimal != nil {
		asset.Backup.Decimals = *spec.BackupDecimal
	}

	fields := []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"lock-token", spec.LockToken, &asset.LockToken},
		{"primary-quote", spec.PrimaryQuote, &asset.Primary.Token},
		{"primary-pair", spec.PrimaryPair, &asset.Primary.Pair},
		{"backup-quote", spec.BackupQuote, &asset.Backup.Token},
		{"backup-pair", spec.BackupPair, &asset.Backup.Pair},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if !common.IsHexAddress(f.value) {
			return fmt.Errorf("invalid %s: %s", f.name, f.value)
		}
		*f.dst = common.HexToAddress(f.value)
	}

	for _, dec := range []uint8{asset.LockDecimals, asset.Primary.Decimals, asset.Backup.Decimals} {
		if dec > 36 {
			return fmt.Errorf("decimals out of range: %d", dec)
		}
	}
	return nil
}

// Lookup returns the asset for a code, case-insensitively.
func (r *AssetRegistry) Lookup(code string) (model.AssetConfig, bool) {
	asset, ok := r.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return asset, ok
}

// ByLockToken identifies a vault's asset from its lock token and native flag.
// A native vault whose token matches no native asset maps to the only native
// asset when exactly one is registered.
func (r *AssetRegistry) ByLockToken(lockToken common.Address, native bool) (model.AssetConfig, bool) {
	var natives []model.AssetConfig
	for _, code := range r.Codes() {
		asset := r.byCode[code]
		if asset.IsNative != native {
			continue
		}
		if asset.LockToken == lockToken {
			return asset, true
		}
		if native {
			natives = append(natives, asset)
		}
	}
	if len(natives) == 1 {
		return natives[0], true
	}
	return model.AssetConfig{}, false
}

// ByKey finds an asset by its factory key.
func (r *AssetRegistry) ByKey(key common.Hash) (model.AssetConfig, bool) {
	for _, asset := range r.byCode {
		if asset.Key == key {
			return asset, true
		}
	}
	return model.AssetConfig{}, false
}

// Codes lists asset codes in sorted order.
func (r *AssetRegistry) Codes() []string {
	codes := make([]string, 0, len(r.byCode))
	for code := range r.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// All returns every asset sorted by code.
func (r *AssetRegistry) All() []model.AssetConfig {
	codes := r.Codes()
	out := make([]model.AssetConfig, 0, len(codes))
	for _, code := range codes {
		out = append(out, r.byCode[code])
	}
	return out
}
