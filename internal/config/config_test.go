package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmou/bento/internal/common"
)

func loadFrom(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFrom(t, `
sources:
  cmb:
    account: Assets:CMB
    currency: CNY
`)
	require.NoError(t, err)

	assert.Equal(t, "__duplicate__", cfg.Ledger.DuplicateMetaKey)
	assert.InDelta(t, 0.8, cfg.Classifier.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 4, cfg.Workers)

	src := cfg.Sources["cmb"]
	assert.Equal(t, "Expenses:Uncategorized", src.ExpenseAccount)
	assert.Equal(t, "Income:Uncategorized", src.IncomeAccount)
}

func TestLoad_FullSource(t *testing.T) {
	cfg, err := loadFrom(t, `
classifier:
  rules_path: ./rules.yaml
  confidence_threshold: 0.9
ledger:
  duplicate_meta: passthrough
sources:
  wechat:
    account: Assets:WeChat
    fee_account: Expenses:Fee
    income_account: Income:RedPacket
    withdrawal_types: ["零钱提现"]
    additional_accounts:
      "招商银行(6066)": Assets:CMB:6066
  boc_credit:
    account: Liabilities:Credit:BOC
    asset_account: Assets:Uncategorized
    explicit_source: true
    ignore_apps: true
    app_markers: ["微信", "支付宝"]
    repayment_types: ["还款"]
`)
	require.NoError(t, err)

	assert.Equal(t, "passthrough", cfg.Ledger.DuplicateMetaKey)
	assert.InDelta(t, 0.9, cfg.Classifier.ConfidenceThreshold, 1e-9)

	wechat := cfg.Sources["wechat"]
	assert.Equal(t, "Income:RedPacket", wechat.IncomeAccount)
	assert.Equal(t, "Assets:CMB:6066", wechat.SubAccounts["招商银行(6066)"])
	assert.Equal(t, []string{"零钱提现"}, wechat.WithdrawalTypes)

	boc := cfg.Sources["boc_credit"]
	assert.True(t, boc.ExplicitSource)
	assert.True(t, boc.IgnoreApps)
	assert.Equal(t, []string{"还款"}, boc.RepaymentTypes)
}

func TestLoad_InvalidConfig(t *testing.T) {
	_, err := loadFrom(t, `
sources:
  cmb:
    currency: CNY
`)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = loadFrom(t, `
classifier:
  confidence_threshold: 1.5
`)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "rules.yaml"), ExpandPath("~/rules.yaml"))
	assert.Equal(t, "", ExpandPath(""))

	t.Setenv("BENTO_DIR", "/tmp/bento")
	assert.Equal(t, "/tmp/bento/rules.yaml", ExpandPath("$BENTO_DIR/rules.yaml"))
}
