package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/execbench/internal/stresstest"
	"github.com/studiowebux/execbench/internal/types"
	"github.com/studiowebux/execbench/internal/validation"
)

const (
	// DefaultBaseURL is used when neither BASE_URL nor --base-url is set
	DefaultBaseURL = "http://0.0.0.0:3000"

	envPrefix = "EXECBENCH_"
)

// RunConfig is the read-only configuration of one load run
type RunConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	VUs            int           `yaml:"vus" validate:"min=1,max=10000"`
	Duration       time.Duration `yaml:"duration" validate:"gt=0"`
	Pacing         time.Duration `yaml:"pacing" validate:"gte=0"`
	Timeout        time.Duration `yaml:"timeout" validate:"gte=0"`
	Policy         string        `yaml:"policy" validate:"oneof=all-in-order uniform-random-one"`
	ResponseShape  string        `yaml:"response_shape" validate:"oneof=dual-channel single-channel"`
	PayloadShape   string        `yaml:"payload_shape" validate:"oneof=language-code with-expected"`
	ResponseFields []string      `yaml:"response_fields"`
	Catalog        string        `yaml:"catalog"`
	Languages      []string      `yaml:"languages"`
	DB             string        `yaml:"db"`
	NoStore        bool          `yaml:"no_store"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	Seed           int64         `yaml:"seed"`
	LogFormat      string        `yaml:"log_format" validate:"oneof=json console"`
	LogLevel       string        `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
}

// Default returns the baseline configuration
func Default() RunConfig {
	return RunConfig{
		BaseURL:       DefaultBaseURL,
		VUs:           3,
		Duration:      time.Minute,
		Pacing:        time.Second,
		Timeout:       30 * time.Second,
		Policy:        string(types.PolicyAllInOrder),
		ResponseShape: string(types.ResponseDualChannel),
		PayloadShape:  string(types.PayloadLanguageCode),
		LogFormat:     "json",
		LogLevel:      "info",
	}
}

// Presets reproduce the two original load scripts
var Presets = map[string]func(*RunConfig){
	// every case in order, 3 actors for a minute, one second between cases
	"coverage": func(c *RunConfig) {
		c.VUs = 3
		c.Duration = time.Minute
		c.Pacing = time.Second
		c.Policy = string(types.PolicyAllInOrder)
		c.ResponseShape = string(types.ResponseDualChannel)
		c.PayloadShape = string(types.PayloadLanguageCode)
	},
	// one random case per iteration, 30 actors for 30 seconds, no pacing
	"random": func(c *RunConfig) {
		c.VUs = 30
		c.Duration = 30 * time.Second
		c.Pacing = 0
		c.Policy = string(types.PolicyUniformRandomOne)
		c.ResponseShape = string(types.ResponseSingleChannel)
		c.PayloadShape = string(types.PayloadWithExpected)
	},
}

// PresetNames returns the preset names, sorted
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset overlays a named preset
func (c *RunConfig) ApplyPreset(name string) error {
	preset, ok := Presets[name]
	if !ok {
		return types.NewConfigurationError("preset",
			fmt.Sprintf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", ")))
	}
	preset(c)
	return nil
}

// LoadFile overlays the keys present in a YAML file; unknown keys are rejected
func (c *RunConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return &types.ConfigurationError{Field: "config", Reason: path, Err: err}
	}
	return nil
}

// LookupFunc reads an environment variable
type LookupFunc func(key string) (string, bool)

func envOrDefault(lookup LookupFunc, key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// ApplyEnv overlays BASE_URL and the EXECBENCH_* variables
func (c *RunConfig) ApplyEnv(lookup LookupFunc) error {
	c.BaseURL = envOrDefault(lookup, "BASE_URL", c.BaseURL)
	c.Policy = envOrDefault(lookup, envPrefix+"POLICY", c.Policy)
	c.ResponseShape = envOrDefault(lookup, envPrefix+"RESPONSE_SHAPE", c.ResponseShape)
	c.PayloadShape = envOrDefault(lookup, envPrefix+"PAYLOAD_SHAPE", c.PayloadShape)
	c.Catalog = envOrDefault(lookup, envPrefix+"CATALOG", c.Catalog)
	c.DB = envOrDefault(lookup, envPrefix+"DB", c.DB)
	c.MetricsAddr = envOrDefault(lookup, envPrefix+"METRICS_ADDR", c.MetricsAddr)
	c.LogFormat = envOrDefault(lookup, envPrefix+"LOG_FORMAT", c.LogFormat)
	c.LogLevel = envOrDefault(lookup, envPrefix+"LOG_LEVEL", c.LogLevel)

	if raw := envOrDefault(lookup, envPrefix+"LANGUAGES", ""); raw != "" {
		c.Languages = splitList(raw)
	}

	var err error
	if c.VUs, err = envInt(lookup, "VUS", c.VUs); err != nil {
		return err
	}
	if c.Duration, err = envDuration(lookup, "DURATION", c.Duration); err != nil {
		return err
	}
	if c.Pacing, err = envDuration(lookup, "PACING", c.Pacing); err != nil {
		return err
	}
	if c.Timeout, err = envDuration(lookup, "TIMEOUT", c.Timeout); err != nil {
		return err
	}
	if raw := envOrDefault(lookup, envPrefix+"SEED", ""); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.NewConfigurationError(envPrefix+"SEED", fmt.Sprintf("%q is not an integer", raw))
		}
		c.Seed = seed
	}
	return nil
}

func envInt(lookup LookupFunc, name string, fallback int) (int, error) {
	raw := envOrDefault(lookup, envPrefix+name, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewConfigurationError(envPrefix+name, fmt.Sprintf("%q is not an integer", raw))
	}
	return value, nil
}

func envDuration(lookup LookupFunc, name string, fallback time.Duration) (time.Duration, error) {
	raw := envOrDefault(lookup, envPrefix+name, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, types.NewConfigurationError(envPrefix+name, fmt.Sprintf("%q is not a duration (e.g. 30s, 1m)", raw))
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, field := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// RegisterFlags adds the run flags to fs, with defaults shown from Default()
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("preset", "", "Preset to start from ("+strings.Join(PresetNames(), "/")+")")
	fs.StringP("config", "c", "", "YAML config file")
	fs.String("base-url", d.BaseURL, "Base URL of the execute service (env BASE_URL)")
	fs.Int("vus", d.VUs, "Number of virtual actors")
	fs.Duration("duration", d.Duration, "Run duration")
	fs.Duration("pacing", d.Pacing, "Delay after each case")
	fs.Duration("timeout", d.Timeout, "Per-request timeout")
	fs.String("policy", d.Policy, "Selection policy (all-in-order/uniform-random-one)")
	fs.String("response-shape", d.ResponseShape, "Response shape (dual-channel/single-channel)")
	fs.String("payload-shape", d.PayloadShape, "Payload shape (language-code/with-expected)")
	fs.StringSlice("response-field", nil, "JMESPath expression of an output channel, can be repeated")
	fs.String("catalog", "", "Catalog file (.yaml/.json/.jsonc); built-in fib catalog when empty")
	fs.StringSliceP("language", "l", nil, "Only run cases for this language, can be repeated")
	fs.String("db", "", "SQLite database for run history (default ~/.execbench/execbench.db)")
	fs.Bool("no-store", false, "Do not persist the run")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.Int64("seed", 0, "Random seed (0 picks one from the clock)")
	fs.String("log-format", d.LogFormat, "Log format (json/console)")
	fs.String("log-level", d.LogLevel, "Log level (trace/debug/info/warn/error)")
}

// ApplyFlags overlays only the flags that were set on the command line
func (c *RunConfig) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}

	set("base-url", func() (e error) { c.BaseURL, e = fs.GetString("base-url"); return })
	set("vus", func() (e error) { c.VUs, e = fs.GetInt("vus"); return })
	set("duration", func() (e error) { c.Duration, e = fs.GetDuration("duration"); return })
	set("pacing", func() (e error) { c.Pacing, e = fs.GetDuration("pacing"); return })
	set("timeout", func() (e error) { c.Timeout, e = fs.GetDuration("timeout"); return })
	set("policy", func() (e error) { c.Policy, e = fs.GetString("policy"); return })
	set("response-shape", func() (e error) { c.ResponseShape, e = fs.GetString("response-shape"); return })
	set("payload-shape", func() (e error) { c.PayloadShape, e = fs.GetString("payload-shape"); return })
	set("response-field", func() (e error) { c.ResponseFields, e = fs.GetStringSlice("response-field"); return })
	set("catalog", func() (e error) { c.Catalog, e = fs.GetString("catalog"); return })
	set("language", func() (e error) { c.Languages, e = fs.GetStringSlice("language"); return })
	set("db", func() (e error) { c.DB, e = fs.GetString("db"); return })
	set("no-store", func() (e error) { c.NoStore, e = fs.GetBool("no-store"); return })
	set("metrics-addr", func() (e error) { c.MetricsAddr, e = fs.GetString("metrics-addr"); return })
	set("seed", func() (e error) { c.Seed, e = fs.GetInt64("seed"); return })
	set("log-format", func() (e error) { c.LogFormat, e = fs.GetString("log-format"); return })
	set("log-level", func() (e error) { c.LogLevel, e = fs.GetString("log-level"); return })

	return err
}

// Validate checks the configuration with the struct tags
func (c *RunConfig) Validate() error {
	if errs := validation.Struct(c); len(errs) > 0 {
		return types.NewConfigurationError("", validation.Join(errs))
	}
	return nil
}

// Load builds the configuration in layers: defaults, preset, file, environment, flags.
// The preset and file come from --preset/--config or EXECBENCH_PRESET/EXECBENCH_CONFIG.
func Load(fs *pflag.FlagSet, lookup LookupFunc) (*RunConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()

	preset := envOrDefault(lookup, envPrefix+"PRESET", "")
	configFile := envOrDefault(lookup, envPrefix+"CONFIG", "")
	if fs != nil {
		if fs.Changed("preset") {
			preset, _ = fs.GetString("preset")
		}
		if fs.Changed("config") {
			configFile, _ = fs.GetString("config")
		}
	}

	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := cfg.ApplyFlags(fs); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &cfg, nil
}

// Executor converts the configuration into the executor's run configuration
func (c *RunConfig) Executor(userAgent string) *stresstest.Config {
	return &stresstest.Config{
		BaseURL:        c.BaseURL,
		Actors:         c.VUs,
		Duration:       c.Duration,
		Pacing:         c.Pacing,
		RequestTimeout: c.Timeout,
		Policy:         types.SelectionPolicy(c.Policy),
		ResponseShape:  types.ResponseShape(c.ResponseShape),
		PayloadShape:   types.PayloadShape(c.PayloadShape),
		ResponseFields: c.ResponseFields,
		Seed:           c.Seed,
		UserAgent:      userAgent,
	}
}
