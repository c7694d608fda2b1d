package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 12 * time.Second
	}
	if cfg.SMS.TwilioPath == "" {
		cfg.SMS.TwilioPath = "/sms/twilio"
	}
	if cfg.SMS.JSONPath == "" {
		cfg.SMS.JSONPath = "/sms/json"
	}
	if cfg.RateLimit.PerSenderRPS > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.Aggregator.Timeout == 0 {
		cfg.Aggregator.Timeout = 8 * time.Second
	}
	if cfg.Redis.DedupeTTL == 0 {
		cfg.Redis.DedupeTTL = 24 * time.Hour
	}

	if len(cfg.Chains) == 0 {
		cfg.Chains = DefaultChains()
	}
	for i := range cfg.Chains {
		c := &cfg.Chains[i]
		c.Key = strings.ToLower(strings.TrimSpace(c.Key))
		if c.NativeDecimals == 0 {
			c.NativeDecimals = 18
		}
		if c.Stablecoin != nil && c.Stablecoin.Decimals == 0 {
			c.Stablecoin.Decimals = 6
		}
		for j := range c.Providers {
			if c.Providers[j].Timeout == 0 {
				c.Providers[j].Timeout = 10 * time.Second
			}
		}
	}
}

// Validate checks the chain list for duplicates and missing fields.
func (c *AppConfig) Validate() error {
	seen := make(map[string]string)
	for _, chain := range c.Chains {
		if chain.Key == "" {
			return fmt.Errorf("chain %q: key is required", chain.Name)
		}
		if chain.NativeSymbol == "" {
			return fmt.Errorf("chain %s: native_symbol is required", chain.Key)
		}
		names := append([]string{chain.Key}, chain.Aliases...)
		for _, alias := range names {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if owner, ok := seen[alias]; ok && owner != chain.Key {
				return fmt.Errorf("alias %q used by both %s and %s", alias, owner, chain.Key)
			}
			seen[alias] = chain.Key
		}
	}
	return nil
}

// DefaultChains lists the testnets supported out of the box.
// Providers are empty; balances for these chains need RPC URLs from config.
func DefaultChains() []ChainConfig {
	return []ChainConfig{
		{
			Key:            "polygon",
			Name:           "Polygon Amoy",
			ChainID:        80002,
			NativeSymbol:   "MATIC",
			NativeDecimals: 18,
			Aliases:        []string{"matic", "amoy"},
			Stablecoin: &StablecoinConfig{
				Symbol:   "USDC",
				Contract: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
				Decimals: 6,
			},
		},
		{
			Key:            "base",
			Name:           "Base Sepolia",
			ChainID:        84532,
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			Stablecoin: &StablecoinConfig{
				Symbol:   "USDC",
				Contract: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
				Decimals: 6,
			},
		},
		{
			Key:            "eth",
			Name:           "Ethereum Sepolia",
			ChainID:        11155111,
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			Aliases:        []string{"ethereum", "sepolia"},
			Stablecoin: &StablecoinConfig{
				Symbol:   "USDC",
				Contract: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
				Decimals: 6,
			},
		},
		{
			Key:            "arb",
			Name:           "Arbitrum Sepolia",
			ChainID:        421614,
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			Aliases:        []string{"arbitrum"},
		},
	}
}
