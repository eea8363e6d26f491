// Package detector runs the prediction pipeline: text, then features, then verdict.
package detector

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/newscheck/newscheck/internal/classifier"
	"github.com/newscheck/newscheck/internal/textvec"
)

// EmptyTextWarning is shown to users who submit blank text.
const EmptyTextWarning = "Please enter some text to analyze."

// ErrEmptyText is returned for empty or whitespace-only input.
var ErrEmptyText = errors.New(EmptyTextWarning)

// Result is the outcome of one prediction.
type Result struct {
	Label         classifier.Label
	Probabilities classifier.Probabilities
	// Confidence is the largest class probability as a percentage.
	Confidence float64
	FeatureDim int
}

// ConfidenceDisplay formats the confidence with two decimals, e.g. "97.12".
func (r Result) ConfidenceDisplay() string {
	return fmt.Sprintf("%.2f", r.Confidence)
}

// RoundedConfidence is the confidence rounded to two decimals.
func (r Result) RoundedConfidence() float64 {
	return math.Round(r.Confidence*100) / 100
}

// Detector holds the loaded vectorizer and classifier. It is safe for concurrent use
// when its classifier is.
type Detector struct {
	vec textvec.Vectorizer
	clf classifier.Classifier
}

// New wires a vectorizer to a classifier trained on its features.
func New(vec textvec.Vectorizer, clf classifier.Classifier) (*Detector, error) {
	if vec == nil || clf == nil {
		return nil, errors.New("detector needs a vectorizer and a classifier")
	}
	if vec.Dim() != clf.Dim() {
		return nil, fmt.Errorf("vectorizer produces %d features, classifier expects %d", vec.Dim(), clf.Dim())
	}
	return &Detector{vec: vec, clf: clf}, nil
}

// Blank reports whether text has nothing to analyze. Whitespace includes the
// U+001C to U+001F separators, which strings.TrimSpace keeps.
func Blank(text string) bool {
	return strings.TrimFunc(text, textvec.IsSpace) == ""
}

// FeatureDim is the width of the feature vectors the detector classifies.
func (d *Detector) FeatureDim() int { return d.vec.Dim() }

// Predict classifies text. Blank text returns ErrEmptyText without touching the vectorizer.
func (d *Detector) Predict(text string) (Result, error) {
	if Blank(text) {
		return Result{}, ErrEmptyText
	}

	vectors, err := d.vec.Transform([]string{text})
	if err != nil {
		return Result{}, fmt.Errorf("vectorize: %w", err)
	}
	if len(vectors) != 1 {
		return Result{}, fmt.Errorf("vectorizer returned %d vectors for one document", len(vectors))
	}
	v := vectors[0]

	label, err := d.clf.Predict(v)
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}
	if !label.Valid() {
		return Result{}, fmt.Errorf("classifier returned unknown label %d", int(label))
	}
	probs, err := d.clf.PredictProba(v)
	if err != nil {
		return Result{}, fmt.Errorf("predict proba: %w", err)
	}
	if err := probs.Validate(); err != nil {
		return Result{}, err
	}

	return Result{
		Label:         label,
		Probabilities: probs,
		Confidence:    probs.Max() * 100,
		FeatureDim:    v.Dim,
	}, nil
}
