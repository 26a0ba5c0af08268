// Package config loads and validates process configuration. Secrets (DB DSN,
// indexer API key, RSA key material) come from the environment; everything
// else comes from a JSON file with sane development defaults. HTTP/CORS,
// JWT auth and the DB connection string's own bootstrap are external
// collaborators per spec.md §1 — this package only owes them a typed
// contract, not a feature-rich loader, so it stays on the standard library
// the way the teacher's config package does.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ChainEndpoint is one entry in the RPC Pool's ordered endpoint list.
type ChainEndpoint struct {
	URL string `json:"url"`
}

// ContractAddresses maps the logical names of spec.md §3 to their deployed
// addresses on the configured chain.
type ContractAddresses struct {
	Heroes  string `json:"heroes"`
	Weapons string `json:"weapons"`
	Lands   string `json:"lands"`
	MOH     string `json:"moh"`
	MedalLC string `json:"medallc"`
}

// CacheTTLs holds the Hot Cache TTLs of spec.md §4.3.
type CacheTTLs struct {
	Ownership        time.Duration `json:"ownership"`
	AttributesInfo   time.Duration `json:"attributes_info"`
	ERC1155Balance   time.Duration `json:"erc1155_balance"`
	ERC20Balance     time.Duration `json:"erc20_balance"`
	IndexerSnapshot  time.Duration `json:"indexer_snapshot"`
}

// RSAKeyConfig points at a PEM-encoded RSA private key, either a filesystem
// path or a base64-encoded PEM blob, per spec.md §6 (Environment) and §9
// (Design Notes — the original wrote a temp file and stripped quotes; we
// accept either form directly and validate at startup).
type RSAKeyConfig struct {
	Path   string `json:"path,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

func (k RSAKeyConfig) empty() bool {
	return k.Path == "" && k.Base64 == ""
}

// Config holds all gateway configuration.
type Config struct {
	HTTPAddr string `json:"http_addr"`

	ChainEndpoints    []ChainEndpoint   `json:"chain_endpoints"`
	Contracts         ContractAddresses `json:"contracts"`
	ContractCallRetry int               `json:"contract_call_retry"` // R in spec.md §4.2, >= 2
	FanOutLimit       int               `json:"fan_out_limit"`       // M in spec.md §5, 8-16

	HotCacheTTLs CacheTTLs `json:"hot_cache_ttls"`
	HotCacheSize int       `json:"hot_cache_size"`

	DatabaseDSN string `json:"-"` // env DATABASE_DSN only, never logged

	IndexerBaseURL string `json:"indexer_base_url"`
	IndexerAPIKey  string `json:"-"` // env INDEXER_API_KEY only

	ScoreKey RSAKeyConfig `json:"score_key"`
	InfoKey  RSAKeyConfig `json:"info_key"`

	CacheErrorRetention time.Duration `json:"cache_error_retention"` // resolved rows older than this are swept
}

// DefaultConfig returns a single-replica development configuration.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:          ":8080",
		ContractCallRetry: 3,
		FanOutLimit:       12,
		HotCacheTTLs: CacheTTLs{
			Ownership:       5 * time.Minute,
			AttributesInfo:  6 * time.Hour,
			ERC1155Balance:  5 * time.Minute,
			ERC20Balance:    5 * time.Minute,
			IndexerSnapshot: 5 * time.Minute,
		},
		HotCacheSize:        4096,
		CacheErrorRetention: 30 * 24 * time.Hour,
	}
}

// Load reads a JSON config file from path, merges environment-sourced
// secrets, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.loadEnvSecrets()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadEnvSecrets() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.DatabaseDSN = v
	}
	if v := os.Getenv("INDEXER_API_KEY"); v != "" {
		c.IndexerAPIKey = v
	}
	if v := os.Getenv("SCORE_RSA_KEY_PATH"); v != "" {
		c.ScoreKey.Path = v
	}
	if v := os.Getenv("SCORE_RSA_KEY_BASE64"); v != "" {
		c.ScoreKey.Base64 = v
	}
	if v := os.Getenv("INFO_RSA_KEY_PATH"); v != "" {
		c.InfoKey.Path = v
	}
	if v := os.Getenv("INFO_RSA_KEY_BASE64"); v != "" {
		c.InfoKey.Base64 = v
	}
}

// Validate checks the fields required for the gateway to serve any traffic
// at all. RSA key presence is intentionally NOT checked here: per spec.md
// §6 the score subsystem alone is startup-fatal on missing keys, every
// other path must degrade gracefully. Callers that need the score
// subsystem call HasScoreKeys and fail that subsystem's init explicitly.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must not be empty")
	}
	if len(c.ChainEndpoints) == 0 {
		return fmt.Errorf("chain_endpoints must not be empty")
	}
	if c.ContractCallRetry < 2 {
		return fmt.Errorf("contract_call_retry must be >= 2, got %d", c.ContractCallRetry)
	}
	if c.FanOutLimit < 1 {
		return fmt.Errorf("fan_out_limit must be >= 1, got %d", c.FanOutLimit)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN must be set")
	}
	return nil
}

// HasScoreKeys reports whether both RSA key configs were supplied.
func (c *Config) HasScoreKeys() bool {
	return !c.ScoreKey.empty() && !c.InfoKey.empty()
}
