package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmou/bento/internal/config"
	"github.com/xmou/bento/internal/model"
)

type discardWriter struct{}

func (discardWriter) Write(_ *model.Statement, _ []model.Transaction) error { return nil }

func confidentTxn(postings ...model.Posting) model.Transaction {
	return model.Transaction{
		Date:      time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		Flag:      model.FlagConfident,
		Payee:     "STARBUCKS COFFEE",
		Narration: "Latte",
		Postings:  postings,
	}
}

func TestSampleCollector_CounterAccountByAccount(t *testing.T) {
	collector := &sampleCollector{
		next:    discardWriter{},
		sources: []string{"Assets:WeChat", "Assets:CMB:6066", "Liabilities:Credit:BOC"},
	}
	amount := decimal.RequireFromString("35.00")

	txns := []model.Transaction{
		// Implicit source first, explicit counter second.
		confidentTxn(
			model.NewImplicitPosting("Assets:WeChat"),
			model.NewPosting("Expenses:Coffee", amount, "CNY"),
		),
		// Explicit source first, implicit counter second.
		confidentTxn(
			model.NewPosting("Liabilities:Credit:BOC:1234", amount.Neg(), "CNY"),
			model.NewImplicitPosting("Expenses:Dining"),
		),
		// Counter leg in first position still found.
		confidentTxn(
			model.NewPosting("Expenses:Transport", amount, "CNY"),
			model.NewImplicitPosting("Assets:CMB:6066"),
		),
		// Both legs source-side: nothing to learn.
		confidentTxn(
			model.NewPosting("Assets:WeChat", amount.Neg(), "CNY"),
			model.NewImplicitPosting("Assets:CMB:6066"),
		),
	}
	uncertain := confidentTxn(
		model.NewImplicitPosting("Assets:WeChat"),
		model.NewPosting("Expenses:Skipped", amount, "CNY"),
	)
	uncertain.Flag = model.FlagUncertain

	require.NoError(t, collector.Write(&model.Statement{}, append(txns, uncertain)))

	require.Len(t, collector.samples, 3)
	assert.Equal(t, "Expenses:Coffee", collector.samples[0].Account)
	assert.Equal(t, "Expenses:Dining", collector.samples[1].Account)
	assert.Equal(t, "Expenses:Transport", collector.samples[2].Account)
}

func TestSourceAccounts(t *testing.T) {
	cfg := &config.Config{Sources: map[string]config.SourceConfig{
		"wechat": {
			Account:     "Assets:WeChat",
			SubAccounts: map[string]string{"招商银行(6066)": "Assets:CMB:6066"},
		},
	}}

	accounts := sourceAccounts(cfg)
	assert.ElementsMatch(t, []string{"Assets:WeChat", "Assets:CMB:6066"}, accounts)
}
