package classifier

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/newscheck/newscheck/internal/textvec"
)

func TestLabelString(t *testing.T) {
	cases := map[Label]string{
		Fake:     "FAKE",
		Real:     "REAL",
		Label(7): "Label(7)",
	}
	for l, want := range cases {
		if got := l.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestLabelFromClass(t *testing.T) {
	if l, err := LabelFromClass(1); err != nil || l != Real {
		t.Fatalf("expected REAL, got %v (err %v)", l, err)
	}
	if l, err := LabelFromClass(0); err != nil || l != Fake {
		t.Fatalf("expected FAKE, got %v (err %v)", l, err)
	}
	if _, err := LabelFromClass(2); err == nil {
		t.Fatalf("expected error for unknown class")
	}
}

func TestProbabilitiesValidate(t *testing.T) {
	cases := []struct {
		name string
		p    Probabilities
		ok   bool
	}{
		{"balanced", Probabilities{0.5, 0.5}, true},
		{"float32 rounding", Probabilities{0.3, 0.7000001}, true},
		{"negative", Probabilities{-0.1, 1.1}, false},
		{"does not sum", Probabilities{0.2, 0.2}, false},
		{"nan", Probabilities{math.NaN(), 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error for %v", tc.p)
			}
		})
	}
	if got := (Probabilities{0.2, 0.8}).Max(); got != 0.8 {
		t.Fatalf("expected max 0.8, got %v", got)
	}
}

func TestResolveSharedLibraryPathPrefersEnv(t *testing.T) {
	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "/custom/libonnxruntime.so")
	if got := resolveSharedLibraryPath(t.TempDir()); got != "/custom/libonnxruntime.so" {
		t.Fatalf("expected env path, got %q", got)
	}
}

func TestResolveSharedLibraryPathProbesModelDir(t *testing.T) {
	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "")
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib", "libonnxruntime.so")
	if err := os.MkdirAll(filepath.Dir(lib), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(lib, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := resolveSharedLibraryPath(dir); got != lib {
		t.Fatalf("expected %q, got %q", lib, got)
	}
}

func TestLoadOnnxMissingModel(t *testing.T) {
	_, err := LoadOnnx(OnnxOptions{
		ModelPath:       filepath.Join(t.TempDir(), "lr_model.onnx"),
		Dim:             4,
		InputName:       "float_input",
		LabelName:       "label",
		ProbabilityName: "probabilities",
	})
	if err == nil || !strings.Contains(err.Error(), "model file missing") {
		t.Fatalf("expected missing model error, got %v", err)
	}
}

func TestLoadOnnxRejectsBadOptions(t *testing.T) {
	if _, err := LoadOnnx(OnnxOptions{}); err == nil {
		t.Fatalf("expected error for empty model path")
	}
	if _, err := LoadOnnx(OnnxOptions{ModelPath: "x.onnx"}); err == nil {
		t.Fatalf("expected error for zero dim")
	}
}

func TestOnnxClassifierUninitialized(t *testing.T) {
	var c *OnnxClassifier
	if _, err := c.Predict(textvec.Vector{Dim: 1}); err == nil {
		t.Fatalf("expected error from nil classifier")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil: %v", err)
	}
}
