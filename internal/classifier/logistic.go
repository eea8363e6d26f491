package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/newscheck/newscheck/internal/textvec"
)

// LogisticParams mirrors lr_model.json.
type LogisticParams struct {
	Type      string    `json:"type"`
	Classes   []int64   `json:"classes"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// LogisticRegression is a fitted binary logistic regression model.
type LogisticRegression struct {
	// classes[i] is the label of probability column i; columns follow the training class order.
	classes   [2]Label
	coef      []float64
	intercept float64
}

// LoadLogistic reads a logistic regression model from a JSON artifact.
func LoadLogistic(path string) (*LogisticRegression, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var p LogisticParams
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return NewLogistic(p)
}

// NewLogistic validates params and builds the model.
func NewLogistic(p LogisticParams) (*LogisticRegression, error) {
	if t := strings.ToLower(strings.TrimSpace(p.Type)); t != "" && t != "logistic_regression" {
		return nil, fmt.Errorf("unsupported model type %q", p.Type)
	}
	if len(p.Coef) == 0 {
		return nil, errors.New("model has no coefficients")
	}
	for i, w := range p.Coef {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("coefficient %d is invalid: %v", i, w)
		}
	}
	if math.IsNaN(p.Intercept) || math.IsInf(p.Intercept, 0) {
		return nil, fmt.Errorf("intercept is invalid: %v", p.Intercept)
	}

	classes := [2]Label{Fake, Real}
	if len(p.Classes) > 0 {
		if len(p.Classes) != 2 {
			return nil, fmt.Errorf("expected 2 classes, got %d", len(p.Classes))
		}
		for i, c := range p.Classes {
			l, err := LabelFromClass(c)
			if err != nil {
				return nil, err
			}
			classes[i] = l
		}
		if classes[0] == classes[1] {
			return nil, errors.New("classes must be distinct")
		}
	}

	return &LogisticRegression{
		classes:   classes,
		coef:      append([]float64(nil), p.Coef...),
		intercept: p.Intercept,
	}, nil
}

// Dim returns the number of coefficients.
func (m *LogisticRegression) Dim() int { return len(m.coef) }

func (m *LogisticRegression) decision(v textvec.Vector) (float64, error) {
	if m == nil || len(m.coef) == 0 {
		return 0, errors.New("model not initialized")
	}
	if err := checkDim(len(m.coef), v); err != nil {
		return 0, err
	}
	dot, err := v.Dot(m.coef)
	if err != nil {
		return 0, err
	}
	return dot + m.intercept, nil
}

// Predict returns the second class when the decision function is positive.
func (m *LogisticRegression) Predict(v textvec.Vector) (Label, error) {
	z, err := m.decision(v)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return m.classes[1], nil
	}
	return m.classes[0], nil
}

// PredictProba returns the class distribution.
func (m *LogisticRegression) PredictProba(v textvec.Vector) (Probabilities, error) {
	z, err := m.decision(v)
	if err != nil {
		return Probabilities{}, err
	}
	p1 := sigmoid(z)
	var out Probabilities
	out[m.classes[1]] = p1
	out[m.classes[0]] = 1 - p1
	return out, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
