package config

import (
	"time"

	redisclient "github.com/vietddude/textchain/internal/infra/redis"
	"github.com/vietddude/textchain/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Chains     []ChainConfig      `yaml:"chains"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
	Database   postgres.Config    `yaml:"database"`
	SMS        SMSConfig          `yaml:"sms"`
	RateLimit  RateLimitConfig    `yaml:"ratelimit"`
	Aggregator AggregatorConfig   `yaml:"aggregator"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// RequestTimeout bounds the processing of a single inbound message.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SMSConfig holds the SMS gateway settings.
type SMSConfig struct {
	AccountSID  string `yaml:"account_sid"`
	AuthToken   string `yaml:"auth_token"`
	PhoneNumber string `yaml:"phone_number"`
	TwilioPath  string `yaml:"twilio_path"`
	JSONPath    string `yaml:"json_path"`
	// WebhookURL is the public URL Twilio posts to. Together with AuthToken
	// it enables X-Twilio-Signature verification.
	WebhookURL string `yaml:"webhook_url"`
}

// RateLimitConfig limits inbound messages per sender.
type RateLimitConfig struct {
	PerSenderRPS float64       `yaml:"per_sender_rps"` // 0 = disabled
	Burst        int           `yaml:"burst"`
	IdleTTL      time.Duration `yaml:"idle_ttl"`
}

// AggregatorConfig bounds the BALANCE fan-out.
type AggregatorConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ChainConfig holds settings for a specific blockchain.
type ChainConfig struct {
	Key            string            `yaml:"key"`
	Name           string            `yaml:"name"`
	ChainID        uint64            `yaml:"chain_id"`
	NativeSymbol   string            `yaml:"native_symbol"`
	NativeDecimals int32             `yaml:"native_decimals"`
	Aliases        []string          `yaml:"aliases"`
	Stablecoin     *StablecoinConfig `yaml:"stablecoin"`
	RateLimitRPS   float64           `yaml:"rate_limit_rps"` // 0 = unlimited
	DailyQuota     int               `yaml:"daily_quota"`    // 0 = unlimited
	Providers      []ProviderConfig  `yaml:"providers"`
}

// StablecoinConfig describes the ERC-20 token queried alongside the native balance.
type StablecoinConfig struct {
	Symbol   string `yaml:"symbol"`
	Contract string `yaml:"contract"`
	Decimals int32  `yaml:"decimals"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name       string        `yaml:"name"`
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	DailyQuota int           `yaml:"daily_quota"` // 0 = unlimited
}
