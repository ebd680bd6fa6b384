package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"token_vote/internal/domain"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultRPCURL    = "https://api.devnet.solana.com"
	DefaultMarketURL = "https://api.dexscreener.com/latest/dex/tokens"
)

// Config holds every application setting.
// After LoadConfig reads the file, environment variables override sensitive values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Ledger struct {
		RPCURL        string `yaml:"rpc_url"`
		ProgramID     string `yaml:"program_id"`
		Commitment    string `yaml:"commitment"`
		TimeoutSec    int    `yaml:"timeout_sec"`
		ConfirmPollMS int    `yaml:"confirm_poll_ms"`
	} `yaml:"ledger"`

	Market struct {
		BaseURL     string `yaml:"base_url"`
		CacheTTLSec int    `yaml:"cache_ttl_sec"`
		TimeoutSec  int    `yaml:"timeout_sec"`
	} `yaml:"market"`

	Wallet struct {
		KeypairPath    string `yaml:"keypair_path"`
		PollIntervalMS int    `yaml:"poll_interval_ms"`
		AutoConnect    bool   `yaml:"auto_connect"`
	} `yaml:"wallet"`

	Server struct {
		Addr      string `yaml:"addr"`
		PprofAddr string `yaml:"pprof_addr"`
	} `yaml:"server"`

	Storage struct {
		Path     string `yaml:"path"`
		IconsDir string `yaml:"icons_dir"`
	} `yaml:"storage"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Security struct {
		VerifyFlagOwner bool `yaml:"verify_flag_owner"`
	} `yaml:"security"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file. A .env file next to the process is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &domain.ConfigError{Field: ".env", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML, applies defaults and env overrides, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	// 4원칙: 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(&cfg)

	// 5원칙: 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Ledger.RPCURL == "" {
		c.Ledger.RPCURL = DefaultRPCURL
	}
	if c.Ledger.ProgramID == "" {
		c.Ledger.ProgramID = "11111111111111111111111111111111"
	}
	if c.Ledger.Commitment == "" {
		c.Ledger.Commitment = "confirmed"
	}
	if c.Ledger.TimeoutSec == 0 {
		c.Ledger.TimeoutSec = 30
	}
	if c.Ledger.ConfirmPollMS == 0 {
		c.Ledger.ConfirmPollMS = 500
	}
	if c.Market.BaseURL == "" {
		c.Market.BaseURL = DefaultMarketURL
	}
	if c.Market.CacheTTLSec == 0 {
		c.Market.CacheTTLSec = 60
	}
	if c.Market.TimeoutSec == 0 {
		c.Market.TimeoutSec = 10
	}
	if c.Wallet.PollIntervalMS == 0 {
		c.Wallet.PollIntervalMS = 1000
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "votes.recorded"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Ledger.RPCURL, "http://") && !strings.HasPrefix(c.Ledger.RPCURL, "https://") {
		return &domain.ConfigError{Field: "ledger.rpc_url", Err: fmt.Errorf("not an http(s) URL: %q", c.Ledger.RPCURL)}
	}
	if _, err := domain.ParseAddress(c.Ledger.ProgramID); err != nil {
		return &domain.ConfigError{Field: "ledger.program_id", Err: err}
	}
	switch c.Ledger.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return &domain.ConfigError{Field: "ledger.commitment", Err: fmt.Errorf("unknown level %q", c.Ledger.Commitment)}
	}
	if c.Ledger.TimeoutSec < 0 || c.Ledger.ConfirmPollMS < 0 {
		return &domain.ConfigError{Field: "ledger", Err: errors.New("durations must be positive")}
	}

	if !strings.HasPrefix(c.Market.BaseURL, "http://") && !strings.HasPrefix(c.Market.BaseURL, "https://") {
		return &domain.ConfigError{Field: "market.base_url", Err: fmt.Errorf("not an http(s) URL: %q", c.Market.BaseURL)}
	}
	if c.Market.CacheTTLSec < 0 || c.Market.TimeoutSec < 0 {
		return &domain.ConfigError{Field: "market", Err: errors.New("durations must be positive")}
	}

	if c.Wallet.PollIntervalMS < 0 {
		return &domain.ConfigError{Field: "wallet.poll_interval_ms", Err: errors.New("must be positive")}
	}
	if c.Wallet.AutoConnect && c.Wallet.KeypairPath == "" {
		return &domain.ConfigError{Field: "wallet.keypair_path", Err: errors.New("required when auto_connect is set")}
	}

	for _, b := range c.Kafka.Brokers {
		if strings.TrimSpace(b) == "" {
			return &domain.ConfigError{Field: "kafka.brokers", Err: errors.New("empty broker address")}
		}
	}

	return nil
}

// overrideWithEnv overrides config values with environment variables when set.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("TOKENVOTE_RPC_URL"); url != "" {
		cfg.Ledger.RPCURL = url
	}
	if program := os.Getenv("TOKENVOTE_PROGRAM_ID"); program != "" {
		cfg.Ledger.ProgramID = program
	}
	if keypair := os.Getenv("TOKENVOTE_KEYPAIR"); keypair != "" {
		cfg.Wallet.KeypairPath = keypair
	}
	if url := os.Getenv("TOKENVOTE_MARKET_URL"); url != "" {
		cfg.Market.BaseURL = url
	}
	if brokers := os.Getenv("TOKENVOTE_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	if v := os.Getenv("TOKENVOTE_VERIFY_FLAG_OWNER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.VerifyFlagOwner = b
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LedgerTimeout returns the per-request RPC timeout.
func (c *Config) LedgerTimeout() time.Duration {
	return time.Duration(c.Ledger.TimeoutSec) * time.Second
}

func (c *Config) ConfirmPoll() time.Duration {
	return time.Duration(c.Ledger.ConfirmPollMS) * time.Millisecond
}

func (c *Config) MarketTimeout() time.Duration {
	return time.Duration(c.Market.TimeoutSec) * time.Second
}

// CacheTTL returns the market cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Market.CacheTTLSec) * time.Second
}

func (c *Config) WalletPoll() time.Duration {
	return time.Duration(c.Wallet.PollIntervalMS) * time.Millisecond
}
