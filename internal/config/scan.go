package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// ScanConfig holds configuration for the factory registry scan.
type ScanConfig struct {
	RPCURLs           []string
	Factory           string
	Owner             string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	VaultsFile        string
	PGDSN             string
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
	Assets            map[string]AssetSpec
}

// LoadScan merges config file, environment variables, and flags into ScanConfig.
func LoadScan(cfgFile string, flags *pflag.FlagSet) (ScanConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(5000),
		"out":                "./data/vault_created.jsonl",
		"checkpoint":         "./data/scan_checkpoint.json",
		"checkpoint-enabled": true,
		"vaults-file":        "./data/vaults.json",
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"log-level":          "info",
	})
	if err != nil {
		return ScanConfig{}, err
	}

	assets, err := loadAssetSpecs(v)
	if err != nil {
		return ScanConfig{}, err
	}

	return ScanConfig{
		RPCURLs:           getStringSlice(v, "rpc"),
		Factory:           strings.TrimSpace(v.GetString("factory")),
		Owner:             strings.ToLower(strings.TrimSpace(v.GetString("owner"))),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		VaultsFile:        v.GetString("vaults-file"),
		PGDSN:             v.GetString("pg-dsn"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
		Assets:            assets,
	}, nil
}
