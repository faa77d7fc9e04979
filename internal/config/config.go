package config

import (
	"math"
	"os"
	"time"

	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

// Account holds one set of exchange credentials. The live or testnet pair
// is selected by Mode.
type Account struct {
	Name             string `yaml:"name"`
	APIKey           string `yaml:"api_key"`
	APISecret        string `yaml:"api_secret"`
	TestnetAPIKey    string `yaml:"testnet_api_key"`
	TestnetAPISecret string `yaml:"testnet_api_secret"`
	Mode             string `yaml:"mode"`
}

// Testnet reports whether the account runs against the exchange testnet.
func (a Account) Testnet() bool {
	return a.Mode == "testnet"
}

// Credentials returns the key pair matching the account mode.
func (a Account) Credentials() (key, secret string) {
	if a.Testnet() {
		return a.TestnetAPIKey, a.TestnetAPISecret
	}
	return a.APIKey, a.APISecret
}

// Source is a followed account plus its replication parameters.
type Source struct {
	Account     `yaml:",inline"`
	Enabled     *bool   `yaml:"enabled"`
	Coefficient float64 `yaml:"coefficient"`
	Reverse     bool    `yaml:"reverse"`
}

// IsEnabled defaults to true when the flag is omitted.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Dispatcher controls the order submission worker pool.
type Dispatcher struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// Journal configures the optional postgres replication journal.
type Journal struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Profiling configures the optional continuous profiler.
type Profiling struct {
	ServerAddress   string `yaml:"server_address"`
	ApplicationName string `yaml:"application_name"`
}

// Config is the full copytrade runtime configuration.
type Config struct {
	MainAccount    Account    `yaml:"main_account"`
	SourceAccounts []Source   `yaml:"source_accounts"`
	Dispatcher     Dispatcher `yaml:"dispatcher"`
	Journal        Journal    `yaml:"journal"`
	Profiling      Profiling  `yaml:"profiling"`
}

// Load reads a YAML config file, expands $ENV_VAR references and validates
// the result. Any failure here is fatal before a single session opens.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}
	expanded, err := expandEnv(raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "expand config env vars")
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config yaml")
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.MainAccount.Name == "" {
		c.MainAccount.Name = "main"
	}
	for i := range c.SourceAccounts {
		if c.SourceAccounts[i].Coefficient == 0 {
			c.SourceAccounts[i].Coefficient = 1.0
		}
	}
	if c.Dispatcher.Workers <= 0 {
		c.Dispatcher.Workers = 1
	}
	if c.Dispatcher.QueueSize <= 0 {
		c.Dispatcher.QueueSize = 256
	}
	if c.Dispatcher.MaxAttempts <= 0 {
		c.Dispatcher.MaxAttempts = 3
	}
	if c.Dispatcher.RetryBackoff <= 0 {
		c.Dispatcher.RetryBackoff = 500 * time.Millisecond
	}
	if c.Journal.Port == 0 {
		c.Journal.Port = 5432
	}
	if c.Profiling.ApplicationName == "" {
		c.Profiling.ApplicationName = "copytrade"
	}
	return c
}

// Validate enforces the fail-fast configuration invariants.
func (c Config) Validate() error {
	if err := validateCredentials(c.MainAccount); err != nil {
		return err
	}
	if len(c.SourceAccounts) == 0 {
		return errors.New("config: no source accounts")
	}

	seen := make(map[string]struct{}, len(c.SourceAccounts))
	for _, src := range c.SourceAccounts {
		if src.Name == "" {
			return errors.New("config: source account without name")
		}
		if _, dup := seen[src.Name]; dup {
			return errors.Errorf("config: ambiguous source name %q", src.Name)
		}
		seen[src.Name] = struct{}{}

		if src.Coefficient <= 0 || math.IsInf(src.Coefficient, 0) || math.IsNaN(src.Coefficient) {
			return errors.Errorf("config: source %q coefficient must be a positive finite number, got %v", src.Name, src.Coefficient)
		}
		if !src.IsEnabled() {
			continue
		}
		if err := validateCredentials(src.Account); err != nil {
			return err
		}
	}
	return nil
}

func validateCredentials(a Account) error {
	key, secret := a.Credentials()
	if key == "" || secret == "" {
		return errors.Errorf("config: account %q missing credentials for mode %q", a.Name, a.Mode)
	}
	return nil
}
