package stub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/studiowebux/execbench/internal/types"
)

// LoadConfig loads a stub configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a conforming dual-channel stub on 0.0.0.0:3000
func DefaultConfig() *Config {
	return &Config{
		Host:    "0.0.0.0",
		Port:    3000,
		Shape:   types.ResponseDualChannel,
		Logging: true,
	}
}

// Validate validates the stub configuration
func (c *Config) Validate() error {
	if _, err := types.ParseResponseShape(string(c.Shape)); err != nil {
		return types.NewConfigurationError("shape", err.Error())
	}
	if c.Port < 0 || c.Port > 65535 {
		return types.NewConfigurationError("port", fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.Status != 0 && (c.Status < 100 || c.Status > 599) {
		return types.NewConfigurationError("status", fmt.Sprintf("status %d is not a valid HTTP status", c.Status))
	}
	if c.Delay < 0 {
		return types.NewConfigurationError("delay", "delay cannot be negative")
	}
	if c.FailRatio < 0 || c.FailRatio > 1 {
		return types.NewConfigurationError("fail_ratio", "fail ratio must be between 0 and 1")
	}
	return nil
}
