package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the settings shared by the vault commands.
type Config struct {
	RPCURLs           []string
	Owner             string
	VaultsFile        string
	RefreshInterval   time.Duration
	RecomputeInterval time.Duration
	Concurrency       int
	MaxRetries        int
	RetryBackoff      time.Duration
	FeedDetail        bool
	Out               string
	PGDSN             string
	RedisAddr         string
	RedisTTL          time.Duration
	HTTPAddr          string
	RateLimitRPM      int
	LogLevel          string
	Assets            map[string]AssetSpec
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"vaults-file":        "./data/vaults.json",
		"refresh-interval":   15 * time.Second,
		"recompute-interval": time.Second,
		"concurrency":        8,
		"max-retries":        3,
		"retry-backoff":      500 * time.Millisecond,
		"feed-detail":        true,
		"redis-ttl":          60 * time.Second,
		"rate-limit-rpm":     120,
		"log-level":          "info",
	})
	if err != nil {
		return Config{}, err
	}

	assets, err := loadAssetSpecs(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURLs:           getStringSlice(v, "rpc"),
		Owner:             strings.ToLower(strings.TrimSpace(v.GetString("owner"))),
		VaultsFile:        v.GetString("vaults-file"),
		RefreshInterval:   v.GetDuration("refresh-interval"),
		RecomputeInterval: v.GetDuration("recompute-interval"),
		Concurrency:       v.GetInt("concurrency"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		FeedDetail:        v.GetBool("feed-detail"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		RedisAddr:         v.GetString("redis-addr"),
		RedisTTL:          v.GetDuration("redis-ttl"),
		HTTPAddr:          v.GetString("http-addr"),
		RateLimitRPM:      v.GetInt("rate-limit-rpm"),
		LogLevel:          v.GetString("log-level"),
		Assets:            assets,
	}

	return cfg, nil
}

// Registry builds the asset registry including config-file overrides.
func (c Config) Registry() (*AssetRegistry, error) {
	return NewAssetRegistry(c.Assets)
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func loadAssetSpecs(v *viper.Viper) (map[string]AssetSpec, error) {
	specs := make(map[string]AssetSpec)
	if !v.IsSet("assets") {
		return specs, nil
	}
	if err := v.UnmarshalKey("assets", &specs); err != nil {
		return nil, fmt.Errorf("parse assets: %w", err)
	}
	return specs, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseInt(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return tm.Unix(), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
