package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmou/bento/internal/model"
)

type stubClassifier struct {
	result model.ClassificationResult
	calls  int
}

func (s *stubClassifier) Classify(_, _ string) model.ClassificationResult {
	s.calls++
	return s.result
}

type stubScored struct {
	account    string
	confidence float64
	err        error
}

func (s stubScored) Score(_, _ string) (string, float64, error) {
	return s.account, s.confidence, s.err
}

func TestNone_NeverMatches(t *testing.T) {
	result := None().Classify("Starbucks", "Latte")
	assert.False(t, result.Matched)
	assert.Empty(t, result.Account)
}

func TestChain_RulesFirst(t *testing.T) {
	rules := &stubClassifier{result: model.ClassificationResult{Matched: true, Account: "Expenses:Coffee"}}
	fallback := &stubClassifier{result: model.ClassificationResult{Matched: true, Account: "Expenses:Other"}}

	result := Chain(rules, fallback).Classify("Starbucks", "")
	assert.True(t, result.Matched)
	assert.Equal(t, "Expenses:Coffee", result.Account)
	assert.Equal(t, 0, fallback.calls, "fallback must not run when rules match")
}

func TestChain_FallsThrough(t *testing.T) {
	rules := &stubClassifier{}
	fallback := &stubClassifier{result: model.ClassificationResult{Matched: true, Account: "Expenses:Predicted"}}

	result := Chain(rules, fallback).Classify("Unknown Shop", "")
	assert.True(t, result.Matched)
	assert.Equal(t, "Expenses:Predicted", result.Account)
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		name        string
		scored      stubScored
		min         float64
		wantMatched bool
	}{
		{
			name:        "confident prediction passes",
			scored:      stubScored{account: "Expenses:Coffee", confidence: 0.92},
			min:         0.8,
			wantMatched: true,
		},
		{
			name:   "low confidence rejected",
			scored: stubScored{account: "Expenses:Coffee", confidence: 0.5},
			min:    0.8,
		},
		{
			name:        "exactly at threshold passes",
			scored:      stubScored{account: "Expenses:Coffee", confidence: 0.8},
			min:         0.8,
			wantMatched: true,
		},
		{
			name:   "classifier failure treated as no match",
			scored: stubScored{err: errors.New("model unavailable")},
			min:    0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Threshold(tt.scored, tt.min, nil).Classify("payee", "narration")
			assert.Equal(t, tt.wantMatched, result.Matched)
			if tt.wantMatched {
				assert.Equal(t, "Expenses:Coffee", result.Account)
			}
		})
	}
}

func TestTrainBayes(t *testing.T) {
	samples := []TrainingSample{
		{Payee: "Starbucks Coffee", Narration: "latte", Account: "Expenses:Coffee"},
		{Payee: "Starbucks Reserve", Narration: "americano", Account: "Expenses:Coffee"},
		{Payee: "Luckin Coffee", Narration: "coffee latte", Account: "Expenses:Coffee"},
		{Payee: "Shanghai Metro", Narration: "subway ride", Account: "Expenses:Transport"},
		{Payee: "Didi", Narration: "taxi ride downtown", Account: "Expenses:Transport"},
	}

	b, err := TrainBayes(samples)
	require.NoError(t, err)
	assert.Len(t, b.Classes(), 2)

	account, confidence, err := b.Score("Starbucks Coffee", "latte")
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Coffee", account)
	assert.Greater(t, confidence, 0.5)

	account, _, err = b.Score("Didi", "taxi ride")
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Transport", account)
}

func TestTrainBayes_TooFewClasses(t *testing.T) {
	_, err := TrainBayes([]TrainingSample{
		{Payee: "Starbucks", Account: "Expenses:Coffee"},
	})
	assert.ErrorIs(t, err, ErrTooFewClasses)
}

func TestBayes_NoTokens(t *testing.T) {
	b, err := TrainBayes([]TrainingSample{
		{Payee: "Starbucks", Account: "Expenses:Coffee"},
		{Payee: "Metro", Account: "Expenses:Transport"},
	})
	require.NoError(t, err)

	_, _, err = b.Score("", "")
	assert.ErrorIs(t, err, ErrNoTokens)
}
