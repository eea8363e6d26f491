package artifacts

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelCard describes the shipped model. Every field is optional.
type ModelCard struct {
	Name        string `yaml:"name" json:"name,omitempty"`
	Version     string `yaml:"version" json:"version,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
	TrainedAt   string `yaml:"trained_at" json:"trained_at,omitempty"`
	Dataset     string `yaml:"dataset" json:"dataset,omitempty"`
}

// LoadModelCard reads model_card.yaml. A missing file yields a zero card.
func LoadModelCard(path string) (ModelCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ModelCard{}, nil
		}
		return ModelCard{}, fmt.Errorf("read model card: %w", err)
	}
	var card ModelCard
	if err := yaml.Unmarshal(data, &card); err != nil {
		return ModelCard{}, fmt.Errorf("decode model card: %w", err)
	}
	return card, nil
}
