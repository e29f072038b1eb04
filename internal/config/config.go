package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL    string
	PGDSN     string
	RedisAddr string
	LogLevel  string

	// Pools lists pair addresses registered before each sync.
	Pools   []string
	DexName string

	RPCRate  float64
	RPCBurst int

	SyncInterval    string
	SyncConcurrency int
	FetchTimeout    time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration

	QuoteTimeout    time.Duration
	DefaultSlippage decimal.Decimal
	MaxPriceImpact  decimal.Decimal
	AssumedLPSupply decimal.Decimal
	GasEstimate     uint64
	Spender         string

	StableTokens []string
	PricePairs   map[string]string
	BlocksPerDay uint64
	LogBatchSize uint64

	SnapshotLog string
	MetricsAddr string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("dex-name", "uniswap-v2")
	v.SetDefault("rpc-rate", 10.0)
	v.SetDefault("rpc-burst", 20)
	v.SetDefault("sync-interval", "@every 5m")
	v.SetDefault("sync-concurrency", 4)
	v.SetDefault("fetch-timeout", 10*time.Second)
	v.SetDefault("max-retries", 2)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("quote-timeout", 5*time.Second)
	v.SetDefault("default-slippage", "0.5")
	v.SetDefault("max-price-impact", "5")
	v.SetDefault("assumed-lp-supply", "1000000")
	v.SetDefault("gas-estimate", 150000)
	v.SetDefault("blocks-per-day", uint64(28800))
	v.SetDefault("log-batch-size", uint64(5000))
	v.SetDefault("metrics-addr", ":9102")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		PGDSN:           v.GetString("pg-dsn"),
		RedisAddr:       v.GetString("redis-addr"),
		LogLevel:        v.GetString("log-level"),
		Pools:           getStringSlice(v, "pools"),
		DexName:         v.GetString("dex-name"),
		RPCRate:         v.GetFloat64("rpc-rate"),
		RPCBurst:        v.GetInt("rpc-burst"),
		SyncInterval:    v.GetString("sync-interval"),
		SyncConcurrency: v.GetInt("sync-concurrency"),
		FetchTimeout:    v.GetDuration("fetch-timeout"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		QuoteTimeout:    v.GetDuration("quote-timeout"),
		GasEstimate:     v.GetUint64("gas-estimate"),
		Spender:         v.GetString("spender"),
		StableTokens:    getStringSlice(v, "stable-tokens"),
		PricePairs:      getStringMap(v, "price-pairs"),
		BlocksPerDay:    v.GetUint64("blocks-per-day"),
		LogBatchSize:    v.GetUint64("log-batch-size"),
		SnapshotLog:     v.GetString("snapshot-log"),
		MetricsAddr:     v.GetString("metrics-addr"),
	}

	var err error
	if cfg.DefaultSlippage, err = getDecimal(v, "default-slippage"); err != nil {
		return Config{}, err
	}
	if cfg.MaxPriceImpact, err = getDecimal(v, "max-price-impact"); err != nil {
		return Config{}, err
	}
	if cfg.AssumedLPSupply, err = getDecimal(v, "assumed-lp-supply"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
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

// getStringMap accepts a config-file table or a "key=value,key=value" string.
func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	switch typed := v.Get(key).(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, val := range typed {
			out[k] = fmt.Sprintf("%v", val)
		}
		return out
	case string:
		return parseStringMap(typed)
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitAndClean(input) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
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
