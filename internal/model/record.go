// Package model defines the core domain types for the bento pipeline:
// normalized statement records on the way in, balanced ledger transactions
// on the way out.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates which way money moved on a statement row.
type Direction string

// Direction constants.
const (
	DirectionExpense Direction = "expense"
	DirectionIncome  Direction = "income"
)

// NormalizedRecord is the canonical, source-agnostic shape of one statement
// row. Format adapters produce these; the pipeline never sees raw rows.
// Amount is always the absolute magnitude; Direction carries the sign.
type NormalizedRecord struct {
	OccurredAt       time.Time
	PostedAt         *time.Time
	Direction        Direction
	Amount           decimal.Decimal
	Currency         string
	CounterpartyRaw  string
	DescriptionRaw   string
	SourceAccountKey string
	Extra            map[string]string
}

// Date returns the ledger date for the record: the posted date when the
// statement reports one (credit-card style), otherwise the day the
// transaction occurred.
func (r NormalizedRecord) Date() time.Time {
	if r.PostedAt != nil {
		return truncateDay(*r.PostedAt)
	}
	return truncateDay(r.OccurredAt)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Statement is one exported document from a bank or payment platform,
// already decoded by a format adapter. Records are in chronological
// ascending order; adapters that receive newest-first exports reverse them
// before handing the statement over.
type Statement struct {
	Title      string
	Date       time.Time
	AccountKey string
	Records    []NormalizedRecord
}

// MergeKey identifies raw rows that are legs of the same logical
// transaction within one statement file.
type MergeKey struct {
	Date             string
	SourceAccountKey string
	Payee            string
}

// NewMergeKey builds the merge identity for a record. The date collapses to
// day precision so a charge and its same-day refund leg collide.
func NewMergeKey(date time.Time, sourceAccountKey, payee string) MergeKey {
	return MergeKey{
		Date:             date.Format("2006-01-02"),
		SourceAccountKey: sourceAccountKey,
		Payee:            strings.TrimSpace(payee),
	}
}

// ClassificationResult is the outcome of running the classification engine
// over a record's payee and narration. When Matched is false, Account is
// meaningless and the synthesizer falls back to per-source defaults.
type ClassificationResult struct {
	Matched bool
	Account string
}
