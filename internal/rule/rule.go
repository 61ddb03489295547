// Package rule implements the deterministic half of the classification
// engine: an ordered list of account rules evaluated first-match-wins
// against a record's payee and narration.
package rule

import (
	"errors"
	"strings"
)

// Field names a classifiable text field on a record.
type Field string

// Fields a rule condition may address.
const (
	FieldPayee     Field = "payee"
	FieldNarration Field = "narration"
)

// Predicate is one comparison kind inside a rule condition. The set is
// closed: unknown names are rejected when the matcher is built, never
// silently skipped at match time.
type Predicate string

// Predicate kinds.
const (
	PredicateEquals     Predicate = "equals"
	PredicateContains   Predicate = "contains"
	PredicateStartsWith Predicate = "starts_with"
	PredicateEndsWith   Predicate = "ends_with"
	PredicateMatches    Predicate = "matches"
)

// Rule maps a condition over payee/narration text to a ledger account.
// Condition semantics: OR across fields, AND across the predicates inside
// one field's block. Rules are ordered; the first match wins.
type Rule struct {
	Name      string                        `yaml:"name"`
	Condition map[Field]map[Predicate]string `yaml:"condition"`
	Account   string                        `yaml:"prediction_account"`
}

// Rule-set configuration errors.
var (
	ErrUnknownField     = errors.New("unknown condition field")
	ErrUnknownPredicate = errors.New("unknown predicate")
	ErrEmptyAccount     = errors.New("rule has no prediction account")
)

// eval applies a non-regex predicate to lower-cased values. PredicateMatches
// is handled by the matcher, which owns the compiled expressions.
func (p Predicate) eval(value, target string) bool {
	switch p {
	case PredicateEquals:
		return value == target
	case PredicateContains:
		return strings.Contains(value, target)
	case PredicateStartsWith:
		return strings.HasPrefix(value, target)
	case PredicateEndsWith:
		return strings.HasSuffix(value, target)
	default:
		return false
	}
}

func (p Predicate) valid() bool {
	switch p {
	case PredicateEquals, PredicateContains, PredicateStartsWith, PredicateEndsWith, PredicateMatches:
		return true
	default:
		return false
	}
}

func (f Field) valid() bool {
	return f == FieldPayee || f == FieldNarration
}
