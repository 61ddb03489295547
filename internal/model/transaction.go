package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Flag marks how much the pipeline trusts a transaction's classification.
type Flag string

// Flag constants. The values follow ledger convention: "*" for cleared,
// "!" for needs-review.
const (
	FlagConfident Flag = "*"
	FlagUncertain Flag = "!"
)

// Posting is one leg of a double-entry transaction. A nil Amount makes the
// posting implicit: it absorbs whatever residual is needed to balance the
// transaction. At most one posting per transaction may be implicit.
type Posting struct {
	Account  string
	Amount   *decimal.Decimal
	Currency string
}

// NewPosting builds an explicit posting.
func NewPosting(account string, amount decimal.Decimal, currency string) Posting {
	return Posting{Account: account, Amount: &amount, Currency: currency}
}

// NewImplicitPosting builds a posting whose amount is inferred at balance
// time.
func NewImplicitPosting(account string) Posting {
	return Posting{Account: account}
}

// MetaEntry is one metadata key/value pair. Value is either a string or a
// bool; nothing else is representable downstream.
type MetaEntry struct {
	Key   string
	Value any
}

// Metadata is an ordered list of metadata entries. Order is the order keys
// were first set, which keeps output stable across runs for the same input.
type Metadata []MetaEntry

// Set stores a value under key, replacing an existing entry in place so the
// original position is kept.
func (m *Metadata) Set(key string, value any) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, MetaEntry{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m Metadata) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// GetBool returns the boolean stored under key, or false when the key is
// absent or holds a non-bool value.
func (m Metadata) GetBool(key string) bool {
	v, ok := m.Get(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Transaction is one balanced, classified double-entry ledger transaction,
// ready to hand to a ledger-writing collaborator.
type Transaction struct {
	Date      time.Time
	Flag      Flag
	Payee     string
	Narration string
	Tags      map[string]struct{}
	Links     map[string]struct{}
	Meta      Metadata
	Postings  []Posting
}

// Validate checks the balance invariant: per currency, the explicit posting
// amounts plus at most one implicit posting must sum to zero.
func (t *Transaction) Validate() error {
	if len(t.Postings) < 2 {
		return fmt.Errorf("transaction %q has %d postings, need at least 2", t.Payee, len(t.Postings))
	}

	implicit := 0
	sums := make(map[string]decimal.Decimal)
	for _, p := range t.Postings {
		if p.Amount == nil {
			implicit++
			continue
		}
		sums[p.Currency] = sums[p.Currency].Add(*p.Amount)
	}

	if implicit > 1 {
		return fmt.Errorf("transaction %q has %d implicit postings, at most 1 allowed", t.Payee, implicit)
	}

	unbalanced := 0
	for currency, sum := range sums {
		if sum.IsZero() {
			continue
		}
		unbalanced++
		if implicit == 0 {
			return fmt.Errorf("transaction %q does not balance: %s %s left over", t.Payee, sum.String(), currency)
		}
	}
	if unbalanced > 1 {
		return fmt.Errorf("transaction %q leaves residuals in %d currencies for a single implicit posting", t.Payee, unbalanced)
	}

	return nil
}

// Currency returns the currency established by the transaction's first
// explicit posting, or "" when every posting is implicit.
func (t *Transaction) Currency() string {
	for _, p := range t.Postings {
		if p.Amount != nil {
			return p.Currency
		}
	}
	return ""
}
