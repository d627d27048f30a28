package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/plastivision/datakit/internal/split"
)

// Manifest is the machine-readable dataset descriptor handed to the
// external training process. Field order matches the dataset.yaml layout
// YOLO trainers expect.
type Manifest struct {
	Path   string         `yaml:"path"`
	Train  string         `yaml:"train"`
	Val    string         `yaml:"val"`
	Test   string         `yaml:"test"`
	NC     int            `yaml:"nc"`
	Names  []string       `yaml:"names"`
	Counts map[string]int `yaml:"counts"`
}

// NewManifest assembles the manifest for a built layout.
func NewManifest(root string, classes []string, counts map[split.Name]int) *Manifest {
	m := &Manifest{
		Path:   root,
		Train:  filepath.Join("images", string(split.Train)),
		Val:    filepath.Join("images", string(split.Val)),
		Test:   filepath.Join("images", string(split.Test)),
		NC:     len(classes),
		Names:  append([]string(nil), classes...),
		Counts: make(map[string]int, len(counts)),
	}
	for name, n := range counts {
		m.Counts[string(name)] = n
	}
	return m
}

// Write serializes the manifest to path, replacing any previous run's file.
func (m *Manifest) Write(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a previously written manifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
