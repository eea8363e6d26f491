package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/newscheck/newscheck/internal/classifier"
	"github.com/newscheck/newscheck/internal/config"
	"github.com/newscheck/newscheck/internal/redact"
	"github.com/newscheck/newscheck/internal/textvec"
)

// Bundle is the loaded, read-only set of artifacts the detector runs on.
type Bundle struct {
	Dir        string
	Vectorizer textvec.Vectorizer
	Classifier classifier.Classifier
	Accuracy   Accuracy
	Card       ModelCard
	Manifest   *Manifest // nil when the directory has no manifest
}

// newFetcher is swapped in tests.
var newFetcher = NewFetcher

// Load fetches (when a remote source is configured), verifies and loads the artifacts.
// A missing or corrupt vectorizer or classifier is an error. Accuracy and the model
// card degrade to unknown values with a warning.
func Load(ctx context.Context, acfg config.ArtifactsConfig, ccfg config.ClassifierConfig) (*Bundle, error) {
	dir := strings.TrimSpace(acfg.Dir)
	if dir == "" {
		return nil, errors.New("artifacts dir is empty")
	}

	modelFile := acfg.ModelFile
	if ccfg.Backend == "onnx" {
		modelFile = acfg.OnnxModelFile
	}

	if src := strings.TrimSpace(acfg.Source); src != "" {
		if err := syncRemote(ctx, src, dir, acfg, modelFile); err != nil {
			return nil, err
		}
	}

	dir, err := ResolveDir(dir)
	if err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(dir)
	switch {
	case errors.Is(err, ErrManifestNotFound):
		if acfg.RequireManifest {
			return nil, fmt.Errorf("artifacts.require_manifest is set: %w", err)
		}
		manifest = nil
	case err != nil:
		return nil, err
	default:
		if err := manifest.Verify(dir); err != nil {
			return nil, fmt.Errorf("verify artifacts: %w", err)
		}
		if acfg.RequireManifest {
			for _, name := range []string{acfg.VectorizerFile, modelFile} {
				if !manifest.Lists(name) {
					return nil, fmt.Errorf("manifest does not cover %s", name)
				}
			}
		}
	}

	vec, err := textvec.Load(filepath.Join(dir, acfg.VectorizerFile))
	if err != nil {
		return nil, fmt.Errorf("load vectorizer: %w", err)
	}

	var clf classifier.Classifier
	switch ccfg.Backend {
	case "", "native":
		clf, err = classifier.LoadLogistic(filepath.Join(dir, modelFile))
	case "onnx":
		clf, err = classifier.LoadOnnx(classifier.OnnxOptions{
			ModelPath:       filepath.Join(dir, modelFile),
			Dim:             vec.Dim(),
			InputName:       ccfg.OnnxInputName,
			LabelName:       ccfg.OnnxLabelName,
			ProbabilityName: ccfg.OnnxProbabilityName,
		})
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", ccfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}

	b := &Bundle{
		Dir:        dir,
		Vectorizer: vec,
		Classifier: clf,
		Manifest:   manifest,
	}
	if clf.Dim() != vec.Dim() {
		b.Close()
		return nil, fmt.Errorf("vectorizer produces %d features, classifier expects %d", vec.Dim(), clf.Dim())
	}

	acc, err := LoadAccuracy(filepath.Join(dir, acfg.AccuracyFile))
	if err != nil {
		redact.Logf("artifacts: accuracy unavailable: %v", err)
		acc = Accuracy{}
	}
	b.Accuracy = acc

	card, err := LoadModelCard(filepath.Join(dir, acfg.ModelCardFile))
	if err != nil {
		redact.Logf("artifacts: ignoring model card: %v", err)
		card = ModelCard{}
	}
	b.Card = card

	return b, nil
}

func syncRemote(ctx context.Context, src, dir string, acfg config.ArtifactsConfig, modelFile string) error {
	source, err := ParseSource(src)
	if err != nil {
		return err
	}
	if acfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, acfg.FetchTimeout)
		defer cancel()
	}

	f, err := newFetcher(ctx, source, acfg)
	if err != nil {
		return fmt.Errorf("artifact fetcher: %w", err)
	}
	defer f.Close()

	redact.Logf("artifacts: syncing %s into %s", source, dir)
	required := []string{acfg.VectorizerFile, modelFile}
	optional := []string{acfg.AccuracyFile, acfg.ModelCardFile, ManifestFileName}
	return Sync(ctx, f, source, dir, required, optional)
}

// Close releases classifier resources held by the bundle.
func (b *Bundle) Close() error {
	if b == nil {
		return nil
	}
	if c, ok := b.Classifier.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
