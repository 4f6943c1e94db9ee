// internal/config/config.go
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Config is the full bot configuration, loaded from a YAML file with
// PUMPBOT_* environment overrides for the sensitive fields.
type Config struct {
	RPCList      []string `mapstructure:"rpc_list"`
	FeedURL      string   `mapstructure:"feed_url"`
	QuoteAPIURL  string   `mapstructure:"quote_api_url"`
	PumpAPIURL   string   `mapstructure:"pump_api_url"`
	DexAPIURL    string   `mapstructure:"dex_api_url"`
	ProxyListen  string   `mapstructure:"proxy_listen"`
	PrivateKey   string   `mapstructure:"private_key"`
	DebugLogging bool     `mapstructure:"debug_logging"`

	Trading TradingConfig `mapstructure:"trading"`
}

// TradingConfig is the user-controlled auto-buy configuration.
type TradingConfig struct {
	AutoBuyEnabled       bool     `mapstructure:"auto_buy_enabled"`
	FollowerCheckEnabled bool     `mapstructure:"follower_check_enabled"`
	MinFollowers         int      `mapstructure:"min_followers"`
	AgeCheckEnabled      bool     `mapstructure:"age_check_enabled"`
	MaxAgeMinutes        int      `mapstructure:"max_age_minutes"`
	BuyAmountSol         float64  `mapstructure:"buy_amount_sol"`
	SlippagePercent      float64  `mapstructure:"slippage_percent"`
	Buylist              []string `mapstructure:"buylist"`
	Blacklist            []string `mapstructure:"blacklist"`
}

const (
	DefaultQuoteAPIURL = "https://quote-api.jup.ag/v6"
	DefaultPumpAPIURL  = "https://frontend-api.pump.fun"
	DefaultDexAPIURL   = "https://api.dexscreener.com"
	DefaultProxyListen = ":8787"

	DefaultMinFollowers  = 1000
	DefaultMaxAgeMinutes = 5
	DefaultBuyAmountSol  = 0.1
	DefaultSlippage      = 1.0
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("quote_api_url", DefaultQuoteAPIURL)
	v.SetDefault("pump_api_url", DefaultPumpAPIURL)
	v.SetDefault("dex_api_url", DefaultDexAPIURL)
	v.SetDefault("proxy_listen", DefaultProxyListen)
	v.SetDefault("trading.min_followers", DefaultMinFollowers)
	v.SetDefault("trading.max_age_minutes", DefaultMaxAgeMinutes)
	v.SetDefault("trading.buy_amount_sol", DefaultBuyAmountSol)
	v.SetDefault("trading.slippage_percent", DefaultSlippage)
	v.SetDefault("trading.auto_buy_enabled", false)
	v.SetDefault("trading.follower_check_enabled", false)
	v.SetDefault("trading.age_check_enabled", false)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, Validate(&cfg)
}

// Validate checks the configuration invariants up front so every
// downstream component can trust its inputs.
func Validate(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.FeedURL == "" {
		return errors.New("missing feed_url in configuration")
	}
	if err := validateURLWithCache(cfg.FeedURL, "ws"); err != nil {
		return errors.New("invalid feed URL protocol")
	}
	if cfg.PrivateKey == "" {
		return errors.New("missing private_key in configuration")
	}
	return validateTradingParams(&cfg.Trading)
}

func validateTradingParams(t *TradingConfig) error {
	if t.MinFollowers < 0 {
		return errors.New("invalid min_followers")
	}
	if t.MaxAgeMinutes <= 0 {
		return errors.New("invalid max_age_minutes")
	}
	if t.BuyAmountSol <= 0 {
		return errors.New("invalid buy_amount_sol")
	}
	if t.SlippagePercent <= 0 || t.SlippagePercent > 100 {
		return errors.New("invalid slippage_percent")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("PUMPBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if key := v.GetString("PRIVATE_KEY"); key != "" {
		cfg.PrivateKey = key
	}
	if rpcs := v.GetString("RPC_LIST"); rpcs != "" {
		var clean []string
		for _, rpc := range strings.Split(rpcs, ",") {
			if trimmed := strings.TrimSpace(rpc); trimmed != "" {
				clean = append(clean, trimmed)
			}
		}
		if len(clean) > 0 {
			cfg.RPCList = clean
		}
	}
}
