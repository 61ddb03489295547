// Package synth builds balanced ledger transactions from normalized
// statement records and their classification results.
package synth

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xmou/bento/internal/model"
)

// Record-level synthesis errors. Callers skip the record and continue.
var (
	ErrCurrencyMismatch = errors.New("record currency does not match source currency")
	ErrUnknownDirection = errors.New("record has unknown direction")
)

// Extra-field keys the synthesizer understands.
const (
	extraTransactionType = "transaction_type"
	extraPaymentMethod   = "payment_method"
	extraNote            = "note"

	// placeholder is the value some exports write for an absent field.
	placeholder = "/"
)

// feePattern extracts the service-fee amount from free-text withdrawal
// notes, e.g. "服务费¥0.60".
var feePattern = regexp.MustCompile(`服务费¥(\d+\.?\d*)`)

// AccountPolicy is the per-source account configuration the synthesizer
// works from. It is immutable after construction.
type AccountPolicy struct {
	// SourceAccount is the base ledger account for the statement source,
	// e.g. "Assets:CMB" or "Liabilities:Credit:BOC".
	SourceAccount string
	// SubAccounts overrides the source account per payment channel, for
	// wallet sources that pay through linked cards.
	SubAccounts map[string]string
	// ExplicitSource puts the signed amount on the source posting and
	// leaves the counter posting implicit (credit-card statement style).
	// Sources whose rows can merge into multi-leg transactions need this.
	ExplicitSource bool
	// DefaultExpense and DefaultIncome are the counter accounts used when
	// classification did not match.
	DefaultExpense string
	DefaultIncome  string
	// DefaultAsset, when set, is the counter account for unclassified
	// inflows instead of DefaultIncome (refunds and repayments on credit
	// sources go back to an asset, not to income).
	DefaultAsset string
	// FeeAccount receives the fee leg of a withdrawal-with-fee record.
	FeeAccount string
	// Currency is the currency the source is expected to report. Empty
	// accepts any currency.
	Currency string
	// WithdrawalTypes lists the transaction_type values that mark a
	// cash-withdrawal-with-fee record.
	WithdrawalTypes []string
}

// Synthesizer converts records into ledger transactions under one source's
// account policy. Safe for concurrent use.
type Synthesizer struct {
	policy AccountPolicy
	logger *slog.Logger
}

// New creates a synthesizer for the given policy.
func New(policy AccountPolicy, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{policy: policy, logger: logger}
}

// MergesLegs reports whether this source's transactions can absorb extra
// postings. Only an explicit source posting keeps its amount correct when a
// later leg is appended; with an implicit source the appended leg would be
// swallowed by the residual and the counter account understated.
func (s *Synthesizer) MergesLegs() bool {
	return s.policy.ExplicitSource
}

// SourceAccount resolves the ledger account the record's source leg posts
// to: a payment-channel override when configured, else the base account
// extended with the record's account key (card suffix). A key that is
// already a full account path is used as-is.
func (s *Synthesizer) SourceAccount(record model.NormalizedRecord) string {
	if method := record.Extra[extraPaymentMethod]; method != "" {
		if account, ok := s.policy.SubAccounts[method]; ok {
			return account
		}
	}
	key := strings.TrimSpace(record.SourceAccountKey)
	switch {
	case key == "":
		return s.policy.SourceAccount
	case strings.Contains(key, ":"):
		return key
	default:
		return s.policy.SourceAccount + ":" + key
	}
}

// Synthesize builds one balanced transaction from a record and its
// classification. A returned error means this record is skipped; it never
// aborts the rest of the file.
func (s *Synthesizer) Synthesize(record model.NormalizedRecord, classification model.ClassificationResult) (*model.Transaction, error) {
	if s.policy.Currency != "" && record.Currency != s.policy.Currency {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrCurrencyMismatch, record.Currency, s.policy.Currency)
	}
	if record.Direction != model.DirectionExpense && record.Direction != model.DirectionIncome {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDirection, record.Direction)
	}

	txn := &model.Transaction{
		Date:      record.Date(),
		Payee:     strings.TrimSpace(record.CounterpartyRaw),
		Narration: strings.TrimSpace(record.DescriptionRaw),
		Tags:      make(map[string]struct{}),
		Links:     make(map[string]struct{}),
		Meta:      s.metadata(record),
	}

	withdrawal := s.isWithdrawal(record)
	switch {
	case withdrawal:
		txn.Postings = s.withdrawalPostings(record)
	case record.Direction == model.DirectionExpense:
		txn.Postings = s.expensePostings(record, classification)
	default:
		txn.Postings = s.incomePostings(record, classification)
	}

	// Unambiguous subtypes are trusted even without a classification match.
	if classification.Matched || withdrawal {
		txn.Flag = model.FlagConfident
	} else {
		txn.Flag = model.FlagUncertain
	}

	if err := txn.Validate(); err != nil {
		return nil, fmt.Errorf("synthesized transaction does not balance: %w", err)
	}
	return txn, nil
}

func (s *Synthesizer) isWithdrawal(record model.NormalizedRecord) bool {
	if record.Direction != model.DirectionExpense {
		return false
	}
	txType := record.Extra[extraTransactionType]
	for _, w := range s.policy.WithdrawalTypes {
		if txType == w {
			return true
		}
	}
	return false
}

// withdrawalPostings builds the three-leg cash-withdrawal case: the wallet
// pays the full amount, the fee account takes the parsed fee, and the
// destination asset absorbs the rest.
func (s *Synthesizer) withdrawalPostings(record model.NormalizedRecord) []model.Posting {
	destination := s.policy.DefaultAsset
	if method := record.Extra[extraPaymentMethod]; method != "" {
		if account, ok := s.policy.SubAccounts[method]; ok {
			destination = account
		}
	}

	fee := parseFee(record.Extra[extraNote])
	if fee.IsZero() {
		s.logger.Debug("no service fee found in withdrawal note",
			"payee", record.CounterpartyRaw)
	}

	return []model.Posting{
		model.NewPosting(s.policy.SourceAccount, record.Amount.Neg(), record.Currency),
		model.NewImplicitPosting(destination),
		model.NewPosting(s.policy.FeeAccount, fee, record.Currency),
	}
}

func (s *Synthesizer) expensePostings(record model.NormalizedRecord, classification model.ClassificationResult) []model.Posting {
	counter := s.policy.DefaultExpense
	if classification.Matched {
		counter = classification.Account
	}

	source := s.SourceAccount(record)
	if s.policy.ExplicitSource {
		return []model.Posting{
			model.NewPosting(source, record.Amount.Neg(), record.Currency),
			model.NewImplicitPosting(counter),
		}
	}
	return []model.Posting{
		model.NewImplicitPosting(source),
		model.NewPosting(counter, record.Amount, record.Currency),
	}
}

func (s *Synthesizer) incomePostings(record model.NormalizedRecord, classification model.ClassificationResult) []model.Posting {
	counter := s.policy.DefaultIncome
	if s.policy.DefaultAsset != "" {
		counter = s.policy.DefaultAsset
	}
	if classification.Matched {
		counter = classification.Account
	}

	return []model.Posting{
		model.NewPosting(s.SourceAccount(record), record.Amount, record.Currency),
		model.NewImplicitPosting(counter),
	}
}

// parseFee extracts the withdrawal fee from a note. An absent or
// unparseable fee is zero, never a failure.
func parseFee(note string) decimal.Decimal {
	m := feePattern.FindStringSubmatch(note)
	if m == nil {
		return decimal.Zero
	}
	fee, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero
	}
	return fee
}

// metadata assembles the record's deterministic metadata: well-known keys
// first in a fixed order, then the remaining extra fields sorted by key.
// Empty and placeholder values are dropped.
func (s *Synthesizer) metadata(record model.NormalizedRecord) model.Metadata {
	var meta model.Metadata

	set := func(key, value string) {
		value = strings.TrimSpace(value)
		if value == "" || value == placeholder {
			return
		}
		meta.Set(key, value)
	}

	set(extraTransactionType, record.Extra[extraTransactionType])
	set(extraPaymentMethod, record.Extra[extraPaymentMethod])

	if h, m, sec := record.OccurredAt.Clock(); h != 0 || m != 0 || sec != 0 {
		meta.Set("time", record.OccurredAt.Format("15:04:05"))
	}
	if record.PostedAt != nil && record.Date().Format("2006-01-02") != record.OccurredAt.Format("2006-01-02") {
		meta.Set("occurred", record.OccurredAt.Format("2006-01-02"))
	}

	keys := make([]string, 0, len(record.Extra))
	for k := range record.Extra {
		if k == extraTransactionType || k == extraPaymentMethod {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set(k, record.Extra[k])
	}

	return meta
}
