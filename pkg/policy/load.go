package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML or JSON policy document. Empty input is an empty
// document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, wrapConfigErr("", err)
	}
	return doc, nil
}

// LoadFile reads and decodes a policy document from path.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Load reads, decodes and hydrates the policy at path.
func Load(path string, opts ...HydrateOption) (*ChaosConfig, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Hydrate(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
