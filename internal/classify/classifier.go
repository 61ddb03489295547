// Package classify composes the classification engine: a deterministic rule
// matcher first, an optional confidence-scored classifier as fallback.
package classify

import (
	"log/slog"

	"github.com/xmou/bento/internal/model"
)

// Classifier is the capability every classification backend implements.
// Implementations must be safe for concurrent use: one classifier is shared
// by all statement-file workers.
type Classifier interface {
	Classify(payee, narration string) model.ClassificationResult
}

// ScoredClassifier predicts an account with a numeric confidence. A
// returned error means the prediction is unusable, never that the pipeline
// should stop.
type ScoredClassifier interface {
	Score(payee, narration string) (account string, confidence float64, err error)
}

// none is the explicit "no classifier configured" variant: it never matches.
type none struct{}

func (none) Classify(_, _ string) model.ClassificationResult {
	return model.ClassificationResult{}
}

// None returns a classifier that matches nothing, for sources that run
// without any classification backend.
func None() Classifier {
	return none{}
}

// chain tries classifiers in priority order and returns the first match.
type chain struct {
	classifiers []Classifier
}

func (c chain) Classify(payee, narration string) model.ClassificationResult {
	for _, cl := range c.classifiers {
		if result := cl.Classify(payee, narration); result.Matched {
			return result
		}
	}
	return model.ClassificationResult{}
}

// Chain composes classifiers by priority: the first one to match wins.
// Scores are never blended across backends.
func Chain(classifiers ...Classifier) Classifier {
	return chain{classifiers: classifiers}
}

// threshold gates a scored classifier: its prediction only counts as a
// match when confidence reaches the configured minimum.
type threshold struct {
	scored ScoredClassifier
	min    float64
	logger *slog.Logger
}

func (t threshold) Classify(payee, narration string) model.ClassificationResult {
	account, confidence, err := t.scored.Score(payee, narration)
	if err != nil {
		t.logger.Warn("scored classifier failed, treating as no match",
			"payee", payee, "error", err)
		return model.ClassificationResult{}
	}
	if confidence < t.min {
		t.logger.Debug("prediction below confidence threshold",
			"payee", payee, "account", account,
			"confidence", confidence, "threshold", t.min)
		return model.ClassificationResult{}
	}
	return model.ClassificationResult{Matched: true, Account: account}
}

// Threshold adapts a scored classifier to the Classifier capability,
// treating low-confidence and failed predictions as no match.
func Threshold(scored ScoredClassifier, min float64, logger *slog.Logger) Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return threshold{scored: scored, min: min, logger: logger}
}
