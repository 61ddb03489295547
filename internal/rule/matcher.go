package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xmou/bento/internal/model"
)

// Matcher evaluates an ordered rule set. It is immutable after construction
// and safe for concurrent use; compiled regular expressions are shared by
// every lookup.
type Matcher struct {
	rules         []Rule
	compiledRegex map[string]*regexp.Regexp
}

// NewMatcher validates the rule set and pre-compiles every regex target.
// Unknown fields, unknown predicate names, empty accounts, and invalid
// regular expressions are configuration errors and fail loudly here.
func NewMatcher(rules []Rule) (*Matcher, error) {
	m := &Matcher{
		rules:         rules,
		compiledRegex: make(map[string]*regexp.Regexp),
	}

	for _, r := range rules {
		if r.Account == "" {
			return nil, fmt.Errorf("rule %q: %w", r.Name, ErrEmptyAccount)
		}
		for field, predicates := range r.Condition {
			if !field.valid() {
				return nil, fmt.Errorf("rule %q: %w: %q", r.Name, ErrUnknownField, field)
			}
			for predicate, target := range predicates {
				if !predicate.valid() {
					return nil, fmt.Errorf("rule %q: %w: %q", r.Name, ErrUnknownPredicate, predicate)
				}
				if predicate != PredicateMatches {
					continue
				}
				pattern := strings.ToLower(target)
				if _, ok := m.compiledRegex[pattern]; ok {
					continue
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, fmt.Errorf("rule %q: invalid pattern %q: %w", r.Name, target, err)
				}
				m.compiledRegex[pattern] = re
			}
		}
	}

	return m, nil
}

// Rules returns the configured rules in declared order.
func (m *Matcher) Rules() []Rule {
	return m.rules
}

// Classify runs the rule set against payee and narration in declared order
// and returns the first matching rule's account.
func (m *Matcher) Classify(payee, narration string) model.ClassificationResult {
	for _, r := range m.rules {
		if m.ruleMatches(r, payee, narration) {
			return model.ClassificationResult{Matched: true, Account: r.Account}
		}
	}
	return model.ClassificationResult{}
}

// ruleMatches is OR across condition fields: any one field's block matching
// in full satisfies the rule. A field with an empty value is skipped, not
// treated as a match.
func (m *Matcher) ruleMatches(r Rule, payee, narration string) bool {
	for field, predicates := range r.Condition {
		value := payee
		if field == FieldNarration {
			value = narration
		}
		if value == "" {
			continue
		}
		if m.blockMatches(predicates, value) {
			return true
		}
	}
	return false
}

// blockMatches is AND across the predicates of one field block. Comparisons
// are case-insensitive on both sides.
func (m *Matcher) blockMatches(predicates map[Predicate]string, value string) bool {
	value = strings.ToLower(value)
	for predicate, target := range predicates {
		target = strings.ToLower(target)
		if predicate == PredicateMatches {
			re, ok := m.compiledRegex[target]
			if !ok || !re.MatchString(value) {
				return false
			}
			continue
		}
		if !predicate.eval(value, target) {
			return false
		}
	}
	return len(predicates) > 0
}
