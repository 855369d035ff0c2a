package config

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

// DefaultAccount is the vault address the simulated background hands out
const DefaultAccount = "0x1234567890123456789012345678901234567890"

// Config holds harness configuration, loaded from environment variables
type Config struct {
	// Logging
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`

	// Server
	Port             int    `envconfig:"PORT" default:"8080"`
	APITokenHash     string `envconfig:"API_TOKEN_HASH"`
	RateLimitEnabled bool   `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS     int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst   int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
	// CIDRs or addresses of reverse proxies whose forwarding headers are honoured
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// Database (optional transcript store)
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	// Simulated wallet
	ChainID        int64  `envconfig:"CHAIN_ID" default:"8453"`
	AccountAddress string `envconfig:"ACCOUNT_ADDRESS" default:"0x1234567890123456789012345678901234567890"`
	SignerSeedHex  string `envconfig:"SIGNER_SEED"`
	EnforceIDEcho  bool   `envconfig:"ENFORCE_ID_ECHO" default:"false"`

	// Target under assessment
	TargetOrigin     string `envconfig:"TARGET_ORIGIN" default:"*"`
	SDKVersion       string `envconfig:"SDK_VERSION" default:"^0.4.8"`
	RPCURL           string `envconfig:"RPC_URL"`
	CollisionSamples int    `envconfig:"COLLISION_SAMPLES" default:"1000"`

	// Report
	LedgerPath   string `envconfig:"LEDGER_PATH"`
	ReportPath   string `envconfig:"REPORT_PATH" default:"VULNERABILITY_REPORT.md"`
	ReportFormat string `envconfig:"REPORT_FORMAT" default:"markdown"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got: %s", c.LogFormat)
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got: %d", c.ChainID)
	}

	if !common.IsHexAddress(c.AccountAddress) {
		return fmt.Errorf("ACCOUNT_ADDRESS is not a valid address: %s", c.AccountAddress)
	}

	if c.SignerSeedHex != "" {
		seed, err := hex.DecodeString(strings.TrimPrefix(c.SignerSeedHex, "0x"))
		if err != nil {
			return fmt.Errorf("SIGNER_SEED must be hex: %w", err)
		}
		if len(seed) < 16 {
			return fmt.Errorf("SIGNER_SEED must be at least 16 bytes, got: %d", len(seed))
		}
	}

	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}

	if c.CollisionSamples < 2 {
		return fmt.Errorf("COLLISION_SAMPLES must be at least 2, got: %d", c.CollisionSamples)
	}

	if c.ReportFormat != "markdown" && c.ReportFormat != "json" {
		return fmt.Errorf("REPORT_FORMAT must be 'markdown' or 'json', got: %s", c.ReportFormat)
	}

	return nil
}

// SignerSeed returns the decoded signer seed, or nil when none is configured
func (c *Config) SignerSeed() []byte {
	if c.SignerSeedHex == "" {
		return nil
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(c.SignerSeedHex, "0x"))
	if err != nil {
		return nil
	}
	return seed
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES. Bare addresses become single-host prefixes.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES entry %q is invalid: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES entry %q is invalid: %w", raw, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
