// Package config defines the immutable configuration value the pipeline
// components are constructed from. Loading goes through viper; once built,
// nothing mutates the configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/xmou/bento/internal/common"
)

// Config is the full application configuration.
type Config struct {
	Classifier ClassifierConfig        `mapstructure:"classifier"`
	Ledger     LedgerConfig            `mapstructure:"ledger"`
	Sources    map[string]SourceConfig `mapstructure:"sources"`
	Workers    int                     `mapstructure:"workers"`
}

// ClassifierConfig configures the classification engine.
type ClassifierConfig struct {
	// RulesPath points at the ordered YAML rule set.
	RulesPath string `mapstructure:"rules_path"`
	// ConfidenceThreshold gates the scored classifier's predictions.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// HistoryPath is the SQLite database of confirmed classifications the
	// scored classifier trains from. Empty disables the scored fallback.
	HistoryPath string `mapstructure:"history_path"`
}

// LedgerConfig configures the output side.
type LedgerConfig struct {
	// DuplicateMetaKey is the reserved boolean metadata key for duplicate
	// flagging.
	DuplicateMetaKey string `mapstructure:"duplicate_meta"`
}

// SourceConfig is the per-source account policy.
type SourceConfig struct {
	Account         string            `mapstructure:"account"`
	SubAccounts     map[string]string `mapstructure:"additional_accounts"`
	ExplicitSource  bool              `mapstructure:"explicit_source"`
	ExpenseAccount  string            `mapstructure:"expense_account"`
	IncomeAccount   string            `mapstructure:"income_account"`
	AssetAccount    string            `mapstructure:"asset_account"`
	FeeAccount      string            `mapstructure:"fee_account"`
	Currency        string            `mapstructure:"currency"`
	WithdrawalTypes []string          `mapstructure:"withdrawal_types"`
	IgnoreApps      bool              `mapstructure:"ignore_apps"`
	AppMarkers      []string          `mapstructure:"app_markers"`
	RepaymentTypes  []string          `mapstructure:"repayment_types"`
}

// Defaults mirrored into viper before reading the file.
const (
	defaultExpenseAccount = "Expenses:Uncategorized"
	defaultIncomeAccount  = "Income:Uncategorized"
	defaultDuplicateMeta  = "__duplicate__"
	defaultThreshold      = 0.8
)

// Load builds the configuration from the current viper state (config file,
// env, flags) and validates it.
func Load() (*Config, error) {
	viper.SetDefault("ledger.duplicate_meta", defaultDuplicateMeta)
	viper.SetDefault("classifier.confidence_threshold", defaultThreshold)
	viper.SetDefault("workers", 4)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Classifier.RulesPath = ExpandPath(cfg.Classifier.RulesPath)
	cfg.Classifier.HistoryPath = ExpandPath(cfg.Classifier.HistoryPath)

	for name, src := range cfg.Sources {
		if src.ExpenseAccount == "" {
			src.ExpenseAccount = defaultExpenseAccount
		}
		if src.IncomeAccount == "" {
			src.IncomeAccount = defaultIncomeAccount
		}
		cfg.Sources[name] = src
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.Classifier.ConfidenceThreshold < 0 || c.Classifier.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be in [0,1], got %v",
			common.ErrInvalidConfig, c.Classifier.ConfidenceThreshold)
	}
	for name, src := range c.Sources {
		if src.Account == "" {
			return fmt.Errorf("%w: source %q has no account", common.ErrInvalidConfig, name)
		}
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
