// Package merge implements the per-statement-file merge and duplicate
// engine: folding split legs of one logical transaction together, and
// flagging transactions expected to appear again in another source's
// statement.
package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xmou/bento/internal/model"
)

// ErrCurrencyConflict is returned when a later leg under an existing merge
// key reports a different currency. Policy: the first record's currency
// wins; the mismatched leg is an ordinary record-level skip.
var ErrCurrencyConflict = errors.New("leg currency conflicts with merged transaction")

// State is the explicit accumulator threaded through one file's record
// fold. It never survives the file and is not safe for concurrent use;
// each file's worker owns exactly one State.
type State struct {
	byKey map[model.MergeKey]*model.Transaction
	order []*model.Transaction
}

// NewState creates an empty per-file merge state.
func NewState() *State {
	return &State{byKey: make(map[model.MergeKey]*model.Transaction)}
}

// Lookup returns the transaction already established under key, if any.
func (s *State) Lookup(key model.MergeKey) (*model.Transaction, bool) {
	txn, ok := s.byKey[key]
	return txn, ok
}

// Insert registers a freshly synthesized transaction under its key. The
// first record under a key owns the transaction's date, payee, flag, and
// metadata; later records only contribute postings via AppendLeg.
func (s *State) Insert(key model.MergeKey, txn *model.Transaction) {
	s.byKey[key] = txn
	s.order = append(s.order, txn)
}

// AppendLeg adds one signed source-account posting to an existing
// transaction for a later record under the same key. The record produces
// no independent transaction.
func (s *State) AppendLeg(txn *model.Transaction, account string, record model.NormalizedRecord) error {
	if established := txn.Currency(); established != "" && record.Currency != established {
		return fmt.Errorf("%w: got %q, want %q", ErrCurrencyConflict, record.Currency, established)
	}

	amount := record.Amount
	if record.Direction == model.DirectionExpense {
		amount = amount.Neg()
	}
	txn.Postings = append(txn.Postings, model.NewPosting(account, amount, record.Currency))
	return nil
}

// Transactions returns the file's surviving transactions in the order their
// first legs appeared.
func (s *State) Transactions() []model.Transaction {
	out := make([]model.Transaction, len(s.order))
	for i, txn := range s.order {
		out[i] = *txn
	}
	return out
}

// Len reports how many transactions the state holds.
func (s *State) Len() int {
	return len(s.order)
}

// Policy configures per-source duplicate flagging. Zero value disables it.
type Policy struct {
	// IgnoreApps enables flagging of rows that went through a known
	// pass-through app and will also appear in that app's own statement.
	IgnoreApps bool
	// AppMarkers are the intermediary-app substrings searched for in payee
	// and narration text.
	AppMarkers []string
	// RepaymentMarkers flag rows that mirror a transfer already recorded by
	// the counterpart statement, e.g. a credit-card repayment row.
	RepaymentMarkers []string
	// DuplicateMetaKey is the reserved boolean metadata key set on flagged
	// transactions.
	DuplicateMetaKey string
}

// DefaultDuplicateMetaKey is the reserved metadata key used when none is
// configured.
const DefaultDuplicateMetaKey = "__duplicate__"

func (p Policy) metaKey() string {
	if p.DuplicateMetaKey != "" {
		return p.DuplicateMetaKey
	}
	return DefaultDuplicateMetaKey
}

// Apply sets the duplicate marker on the transaction when its payee or
// narration mentions a known pass-through app or repayment subtype. It is
// additive: postings and amounts are never touched.
func (p Policy) Apply(txn *model.Transaction) {
	if p.IgnoreApps {
		for _, marker := range p.AppMarkers {
			if marker == "" {
				continue
			}
			if strings.Contains(txn.Payee, marker) || strings.Contains(txn.Narration, marker) {
				txn.Meta.Set(p.metaKey(), true)
				return
			}
		}
	}
	for _, marker := range p.RepaymentMarkers {
		if marker == "" {
			continue
		}
		if strings.Contains(txn.Payee, marker) || strings.Contains(txn.Narration, marker) {
			txn.Meta.Set(p.metaKey(), true)
			return
		}
	}
}
