package artifacts

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Accuracy holds the training-time scores shipped next to the model.
// When Available is false both scores are unknown and must be shown as N/A.
type Accuracy struct {
	Available bool
	Train     float64
	Test      float64
}

// LoadAccuracy reads accuracy.txt. A missing file is not an error.
func LoadAccuracy(path string) (Accuracy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Accuracy{}, nil
		}
		return Accuracy{}, fmt.Errorf("read accuracy: %w", err)
	}
	return ParseAccuracy(string(data))
}

// ParseAccuracy parses "train,test", e.g. "97.32,95.10".
func ParseAccuracy(s string) (Accuracy, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Accuracy{}, fmt.Errorf("accuracy must be two comma-separated values, got %d", len(parts))
	}
	var vals [2]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Accuracy{}, fmt.Errorf("parse accuracy value %q: %w", p, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Accuracy{}, fmt.Errorf("accuracy value %q is not finite", p)
		}
		vals[i] = v
	}
	return Accuracy{Available: true, Train: vals[0], Test: vals[1]}, nil
}

// Display formats a score with two decimals or "N/A".
func (a Accuracy) Display(v float64) string {
	if !a.Available {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
