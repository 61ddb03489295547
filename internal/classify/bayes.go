package classify

import (
	"errors"
	"strings"
	"unicode"

	"github.com/jbrukh/bayesian"
)

// TrainingSample is one confirmed (payee, narration, account) triple from a
// previous run, used to train the scored classifier.
type TrainingSample struct {
	Payee     string
	Narration string
	Account   string
}

// Bayes training errors.
var (
	ErrTooFewClasses = errors.New("need samples for at least 2 accounts to train")
	ErrNoTokens      = errors.New("no usable tokens in input")
)

// BayesClassifier scores account predictions with a naive Bayes TF-IDF
// model over payee/narration tokens. Training happens once at startup;
// scoring is read-only and safe for concurrent use.
type BayesClassifier struct {
	classifier *bayesian.Classifier
	classes    []bayesian.Class
}

// TrainBayes builds a classifier from historical samples. Accounts seen in
// the samples become the prediction classes.
func TrainBayes(samples []TrainingSample) (*BayesClassifier, error) {
	seen := make(map[string]bool)
	var classes []bayesian.Class
	for _, s := range samples {
		if s.Account == "" || seen[s.Account] {
			continue
		}
		seen[s.Account] = true
		classes = append(classes, bayesian.Class(s.Account))
	}
	if len(classes) < 2 {
		return nil, ErrTooFewClasses
	}

	cl := bayesian.NewClassifierTfIdf(classes...)
	for _, s := range samples {
		tokens := tokenize(s.Payee, s.Narration)
		if len(tokens) == 0 {
			continue
		}
		cl.Learn(tokens, bayesian.Class(s.Account))
	}
	cl.ConvertTermsFreqToTfIdf()

	return &BayesClassifier{classifier: cl, classes: classes}, nil
}

// Classes returns the accounts the classifier can predict.
func (b *BayesClassifier) Classes() []string {
	out := make([]string, len(b.classes))
	for i, c := range b.classes {
		out[i] = string(c)
	}
	return out
}

// Score predicts the most likely account for the given text and returns its
// normalized probability as the confidence.
func (b *BayesClassifier) Score(payee, narration string) (string, float64, error) {
	tokens := tokenize(payee, narration)
	if len(tokens) == 0 {
		return "", 0, ErrNoTokens
	}

	scores, best, _ := b.classifier.ProbScores(tokens)
	return string(b.classes[best]), scores[best], nil
}

// tokenize lower-cases and splits text on anything that is not a letter or
// digit, so CJK merchant names and latin card descriptors both produce
// usable terms.
func tokenize(payee, narration string) []string {
	text := strings.ToLower(payee + " " + narration)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
