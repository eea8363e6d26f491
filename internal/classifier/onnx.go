package classifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/newscheck/newscheck/internal/textvec"
)

// OnnxOptions configures an ONNX-exported classifier.
type OnnxOptions struct {
	ModelPath       string
	Dim             int
	InputName       string // float tensor [1, Dim]
	LabelName       string // int64 tensor [1]
	ProbabilityName string // float tensor [1, 2]
}

// OnnxClassifier runs an exported classifier with onnxruntime.
type OnnxClassifier struct {
	session *ort.AdvancedSession
	dim     int

	input  *ort.Tensor[float32]
	label  *ort.Tensor[int64]
	probas *ort.Tensor[float32]

	mu sync.Mutex
}

// LoadOnnx initializes the runtime and the session with preallocated tensors.
func LoadOnnx(opts OnnxOptions) (*OnnxClassifier, error) {
	if strings.TrimSpace(opts.ModelPath) == "" {
		return nil, errors.New("onnx model path is empty")
	}
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("invalid feature dim %d", opts.Dim)
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", opts.ModelPath, err)
	}

	libPath := resolveSharedLibraryPath(filepath.Dir(opts.ModelPath))
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.Dim)))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	label, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate label tensor: %w", err)
	}
	probas, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		input.Destroy()
		label.Destroy()
		return nil, fmt.Errorf("allocate probability tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.LabelName, opts.ProbabilityName},
		[]ort.Value{input},
		[]ort.Value{label, probas},
		nil,
	)
	if err != nil {
		input.Destroy()
		label.Destroy()
		probas.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &OnnxClassifier{
		session: session,
		dim:     opts.Dim,
		input:   input,
		label:   label,
		probas:  probas,
	}, nil
}

// Dim returns the input width of the exported model.
func (c *OnnxClassifier) Dim() int { return c.dim }

// Predict returns the label output of the model.
func (c *OnnxClassifier) Predict(v textvec.Vector) (Label, error) {
	class, _, err := c.run(v)
	if err != nil {
		return 0, err
	}
	return LabelFromClass(class)
}

// PredictProba returns the probability output of the model.
func (c *OnnxClassifier) PredictProba(v textvec.Vector) (Probabilities, error) {
	_, probs, err := c.run(v)
	if err != nil {
		return Probabilities{}, err
	}
	if err := probs.Validate(); err != nil {
		return Probabilities{}, fmt.Errorf("onnx output: %w", err)
	}
	return probs, nil
}

func (c *OnnxClassifier) run(v textvec.Vector) (int64, Probabilities, error) {
	if c == nil || c.session == nil {
		return 0, Probabilities{}, errors.New("onnx classifier not initialized")
	}
	if err := checkDim(c.dim, v); err != nil {
		return 0, Probabilities{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := v.DenseFloat32(c.input.GetData()); err != nil {
		return 0, Probabilities{}, err
	}
	if err := c.session.Run(); err != nil {
		return 0, Probabilities{}, fmt.Errorf("onnx run: %w", err)
	}

	raw := c.probas.GetData()
	probs := Probabilities{float64(raw[0]), float64(raw[1])}
	return c.label.GetData()[0], probs, nil
}

// Close releases the session and its tensors.
func (c *OnnxClassifier) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.session != nil {
		errs = append(errs, c.session.Destroy())
		c.session = nil
	}
	for _, t := range []interface{ Destroy() error }{c.input, c.label, c.probas} {
		if t != nil {
			errs = append(errs, t.Destroy())
		}
	}
	return errors.Join(errs...)
}

// resolveSharedLibraryPath attempts to locate a platform-specific onnxruntime shared library.
// If ONNXRUNTIME_SHARED_LIBRARY_PATH is set, it wins; otherwise we probe common names/locations.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
