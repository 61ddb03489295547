package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Classify(t *testing.T) {
	tests := []struct {
		name        string
		rules       []Rule
		payee       string
		narration   string
		wantMatched bool
		wantAccount string
	}{
		{
			name: "contains match on payee",
			rules: []Rule{
				{
					Name:      "coffee",
					Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "starbucks"}},
					Account:   "Expenses:Coffee",
				},
			},
			payee:       "STARBUCKS COFFEE",
			wantMatched: true,
			wantAccount: "Expenses:Coffee",
		},
		{
			name: "first rule wins over later match",
			rules: []Rule{
				{
					Name:      "coffee",
					Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "starbucks"}},
					Account:   "Expenses:Coffee",
				},
				{
					Name:      "dining",
					Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "star"}},
					Account:   "Expenses:Dining",
				},
			},
			payee:       "Starbucks",
			wantMatched: true,
			wantAccount: "Expenses:Coffee",
		},
		{
			name: "and across predicates in one field",
			rules: []Rule{
				{
					Name: "airport coffee",
					Condition: map[Field]map[Predicate]string{
						FieldPayee: {PredicateContains: "coffee", PredicateStartsWith: "airport"},
					},
					Account: "Expenses:Travel",
				},
			},
			payee:       "Downtown Coffee",
			wantMatched: false,
		},
		{
			name: "or across fields",
			rules: []Rule{
				{
					Name: "transport",
					Condition: map[Field]map[Predicate]string{
						FieldPayee:     {PredicateEquals: "no such payee"},
						FieldNarration: {PredicateContains: "地铁"},
					},
					Account: "Expenses:Transport",
				},
			},
			payee:       "上海地铁",
			narration:   "地铁出行",
			wantMatched: true,
			wantAccount: "Expenses:Transport",
		},
		{
			name: "regex search not full match",
			rules: []Rule{
				{
					Name:      "rent",
					Condition: map[Field]map[Predicate]string{FieldNarration: {PredicateMatches: `房租\d+月`}},
					Account:   "Expenses:Rent",
				},
			},
			narration:   "2024年房租8月付款",
			wantMatched: true,
			wantAccount: "Expenses:Rent",
		},
		{
			name: "empty field value skipped not matched",
			rules: []Rule{
				{
					Name:      "anything",
					Condition: map[Field]map[Predicate]string{FieldNarration: {PredicateMatches: ".*"}},
					Account:   "Expenses:Misc",
				},
			},
			payee:       "someone",
			narration:   "",
			wantMatched: false,
		},
		{
			name: "empty condition never matches",
			rules: []Rule{
				{Name: "empty", Condition: map[Field]map[Predicate]string{}, Account: "Expenses:Misc"},
			},
			payee:       "anyone",
			narration:   "anything",
			wantMatched: false,
		},
		{
			name: "starts_with and ends_with",
			rules: []Rule{
				{
					Name:      "salary",
					Condition: map[Field]map[Predicate]string{FieldNarration: {PredicateStartsWith: "工资", PredicateEndsWith: "发放"}},
					Account:   "Income:Salary",
				},
			},
			narration:   "工资2024-08发放",
			wantMatched: true,
			wantAccount: "Income:Salary",
		},
		{
			name: "no rules no match",
			rules: nil,
			payee: "Starbucks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatcher(tt.rules)
			require.NoError(t, err)

			result := m.Classify(tt.payee, tt.narration)
			assert.Equal(t, tt.wantMatched, result.Matched)
			if tt.wantMatched {
				assert.Equal(t, tt.wantAccount, result.Account)
			}
		})
	}
}

func TestMatcher_CaseInsensitive(t *testing.T) {
	m, err := NewMatcher([]Rule{
		{
			Name:      "coffee",
			Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "Starbucks"}},
			Account:   "Expenses:Coffee",
		},
	})
	require.NoError(t, err)

	upper := m.Classify("STARBUCKS", "")
	lower := m.Classify("starbucks", "")
	assert.Equal(t, upper, lower)
	assert.True(t, upper.Matched)
}

func TestMatcher_FirstMatchIsDeterministic(t *testing.T) {
	// If rule i matches, no rule j<i may match the same input. Exercised by
	// checking that the winning rule is always the earliest matching one
	// regardless of how many later rules also match.
	rules := []Rule{
		{Name: "r0", Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "zzz"}}, Account: "A0"},
		{Name: "r1", Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "hotel"}}, Account: "A1"},
		{Name: "r2", Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "hotel x"}}, Account: "A2"},
		{Name: "r3", Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "h"}}, Account: "A3"},
	}
	m, err := NewMatcher(rules)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		result := m.Classify("Hotel X", "")
		require.True(t, result.Matched)
		require.Equal(t, "A1", result.Account)
	}
}

func TestNewMatcher_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr error
	}{
		{
			name: "unknown predicate",
			rules: []Rule{
				{Name: "bad", Condition: map[Field]map[Predicate]string{FieldPayee: {"fuzzy": "x"}}, Account: "A"},
			},
			wantErr: ErrUnknownPredicate,
		},
		{
			name: "unknown field",
			rules: []Rule{
				{Name: "bad", Condition: map[Field]map[Predicate]string{"memo": {PredicateContains: "x"}}, Account: "A"},
			},
			wantErr: ErrUnknownField,
		},
		{
			name: "empty account",
			rules: []Rule{
				{Name: "bad", Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateContains: "x"}}},
			},
			wantErr: ErrEmptyAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMatcher(tt.rules)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewMatcher_InvalidRegex(t *testing.T) {
	_, err := NewMatcher([]Rule{
		{Name: "bad", Condition: map[Field]map[Predicate]string{FieldPayee: {PredicateMatches: "("}}, Account: "A"},
	})
	assert.Error(t, err)
}

func TestLoader_Parse(t *testing.T) {
	data := []byte(`
rules:
  - name: coffee
    condition:
      payee:
        contains: starbucks
    prediction_account: Expenses:Coffee
  - name: rent
    condition:
      narration:
        matches: '房租'
    prediction_account: Expenses:Rent
`)
	rules, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "coffee", rules[0].Name)
	assert.Equal(t, "Expenses:Coffee", rules[0].Account)
	assert.Equal(t, "starbucks", rules[0].Condition[FieldPayee][PredicateContains])

	m, err := NewMatcher(rules)
	require.NoError(t, err)
	assert.True(t, m.Classify("Starbucks Reserve", "").Matched)
}
