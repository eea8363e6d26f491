package classifier

import (
	"fmt"
	"math"

	"github.com/newscheck/newscheck/internal/textvec"
)

// Label is the binary verdict of the classifier.
type Label int

const (
	Fake Label = 0
	Real Label = 1
)

func (l Label) String() string {
	switch l {
	case Fake:
		return "FAKE"
	case Real:
		return "REAL"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Valid reports whether l is one of the two known labels.
func (l Label) Valid() bool { return l == Fake || l == Real }

// LabelFromClass maps a raw model class value onto a Label.
func LabelFromClass(class int64) (Label, error) {
	l := Label(class)
	if !l.Valid() {
		return 0, fmt.Errorf("unknown class %d", class)
	}
	return l, nil
}

// probabilityTolerance absorbs float32 rounding from exported models.
const probabilityTolerance = 1e-6

// Probabilities is the class distribution, indexed by Label.
type Probabilities [2]float64

// Max returns the largest class probability.
func (p Probabilities) Max() float64 {
	return math.Max(p[Fake], p[Real])
}

// Validate checks the values are non-negative and sum to one.
func (p Probabilities) Validate() error {
	for i, v := range p {
		if math.IsNaN(v) || v < 0 || v > 1+probabilityTolerance {
			return fmt.Errorf("probability for %s is out of range: %v", Label(i), v)
		}
	}
	if sum := p[Fake] + p[Real]; math.Abs(sum-1) > probabilityTolerance {
		return fmt.Errorf("probabilities sum to %v, expected 1", sum)
	}
	return nil
}

// Classifier is a fitted binary classifier over feature vectors.
type Classifier interface {
	Predict(v textvec.Vector) (Label, error)
	PredictProba(v textvec.Vector) (Probabilities, error)
	// Dim is the feature dimension the classifier was trained on.
	Dim() int
}

func checkDim(want int, v textvec.Vector) error {
	if v.Dim != want {
		return fmt.Errorf("feature vector has dim %d, classifier expects %d", v.Dim, want)
	}
	return nil
}
