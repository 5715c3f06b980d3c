package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/execbench/internal/types"
	"github.com/studiowebux/execbench/internal/validation"
)

// file is the on-disk layout; a bare list of cases is accepted too
type file struct {
	Cases []types.TestCase `json:"cases" yaml:"cases"`
}

// Load reads a catalog from a YAML, JSON or JSONC file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cases []types.TestCase

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		cases, err = parseYAML(data)
	case ".json", ".jsonc":
		cases, err = parseJSON(jsonc.ToJSON(data))
	default:
		return nil, fmt.Errorf("unsupported catalog file format: %s (use .yaml, .yml, .json or .jsonc)", ext)
	}
	if err != nil {
		return nil, err
	}

	if len(cases) == 0 {
		return nil, types.NewConfigurationError("catalog", fmt.Sprintf("%s contains no cases", path))
	}

	for i := range cases {
		cases[i].Code = strings.TrimSpace(cases[i].Code)
		cases[i].Language = types.Language(strings.TrimSpace(string(cases[i].Language)))
		if errs := validation.Struct(cases[i]); len(errs) > 0 {
			return nil, fmt.Errorf("case %d (%s): %s", i, cases[i].Identity(), validation.Join(errs))
		}
	}

	return New(cases...), nil
}

// parseJSON accepts either {"cases": [...]} or a bare array; unknown keys are rejected
func parseJSON(data []byte) ([]types.TestCase, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	if trimmed[0] == '[' {
		var cases []types.TestCase
		if err := dec.Decode(&cases); err != nil {
			return nil, fmt.Errorf("failed to parse JSON catalog: %w", err)
		}
		return cases, nil
	}

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse JSON catalog: %w", err)
	}
	return f.Cases, nil
}

// parseYAML accepts either a "cases:" mapping or a bare sequence; unknown keys are rejected
func parseYAML(data []byte) ([]types.TestCase, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if root.Content[0].Kind == yaml.SequenceNode {
		var cases []types.TestCase
		if err := dec.Decode(&cases); err != nil {
			return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
		}
		return cases, nil
	}

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
	}
	return f.Cases, nil
}

// Save writes the catalog in the format implied by the file extension
func Save(c *Catalog, path string) error {
	f := file{Cases: c.Cases()}

	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
	case ".json", ".jsonc":
		data, err = json.MarshalIndent(f, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported catalog file format: %s (use .yaml, .yml, .json or .jsonc)", ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}

	return nil
}
