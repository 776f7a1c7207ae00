package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/collectspec/packages/core/arguments"
	"github.com/abdul-hamid-achik/collectspec/packages/core/env"
)

//go:embed schema.json
var schemaJSON []byte

// Config mirrors collectspec.yaml. Durations are in milliseconds.
type Config struct {
	RunnerCommand      string            `json:"runnerCommand,omitempty" yaml:"runnerCommand,omitempty"` // shell-quoted, e.g. "dotnet vstest.console.dll"
	TestAssetsPath     string            `json:"testAssetsPath,omitempty" yaml:"testAssetsPath,omitempty"`
	BuildConfiguration string            `json:"buildConfiguration,omitempty" yaml:"buildConfiguration,omitempty"`
	TempDir            string            `json:"tempDir,omitempty" yaml:"tempDir,omitempty"`
	EnvFile            string            `json:"envFile,omitempty" yaml:"envFile,omitempty"`
	Env                map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Timeout            int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds, per invocation
	Retries            int               `json:"retries,omitempty" yaml:"retries,omitempty"`
	RetryDelay         int               `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"` // milliseconds
	Scenarios          []string          `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
	Runners            []string          `json:"runners,omitempty" yaml:"runners,omitempty"` // runner framework filter
	Targets            []string          `json:"targets,omitempty" yaml:"targets,omitempty"` // target framework filter
	Reporters          []string          `json:"reporters,omitempty" yaml:"reporters,omitempty"`
	OutputDir          string            `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	History            string            `json:"history,omitempty" yaml:"history,omitempty"` // SQLite path
	Before             []string          `json:"before,omitempty" yaml:"before,omitempty"`
	After              []string          `json:"after,omitempty" yaml:"after,omitempty"`
	Concurrency        int               `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Rate               float64           `json:"rate,omitempty" yaml:"rate,omitempty"` // case launches per second
	Parallel           *bool             `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Bail               *bool             `json:"bail,omitempty" yaml:"bail,omitempty"`
	KeepResults        *bool             `json:"keepResults,omitempty" yaml:"keepResults,omitempty"`
	Verbose            *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`

	// path of the file the config was loaded from, for resolving relative paths
	path string
}

// BoolPtr is a helper for setting the optional bool fields
func BoolPtr(b bool) *bool {
	return &b
}

// The bool settings are pointers so that Merge can tell "unset" from an
// explicit false. Unset reads as false.
func (c *Config) GetParallel() bool    { return c.Parallel != nil && *c.Parallel }
func (c *Config) GetBail() bool        { return c.Bail != nil && *c.Bail }
func (c *Config) GetKeepResults() bool { return c.KeepResults != nil && *c.KeepResults }
func (c *Config) GetVerbose() bool     { return c.Verbose != nil && *c.Verbose }
func (c *Config) GetNoColor() bool     { return c.NoColor != nil && *c.NoColor }

// TimeoutDuration returns the per-invocation timeout
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// RetryDelayDuration returns the delay between attempts
func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Millisecond
}

// Command splits RunnerCommand into argv elements
func (c *Config) Command() ([]string, error) {
	if strings.TrimSpace(c.RunnerCommand) == "" {
		return nil, fmt.Errorf("runner command is not configured")
	}
	cl, err := arguments.Parse(c.RunnerCommand)
	if err != nil {
		return nil, fmt.Errorf("parsing runner command: %w", err)
	}
	return cl.Args(), nil
}

// Path returns the file the config was loaded from, or ""
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory relative paths in the config resolve against
func (c *Config) Dir() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

// Resolve makes p absolute relative to the config file's directory
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// ConfigFilenames are tried in order by FindAndLoadConfig
var ConfigFilenames = []string{
	"collectspec.yaml",
	"collectspec.yml",
	".collectspec.yaml",
	"collectspec.json",
	".collectspec.json",
}

// LoadConfig loads the file at path, or when path is empty looks for one
// of ConfigFilenames in the working directory.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return FindAndLoadConfig(".")
	}
	return loadConfigFromFile(path)
}

// FindAndLoadConfig loads the first of ConfigFilenames present in dir.
// Without one the defaults are returned and Path is empty.
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, name := range ConfigFilenames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return loadConfigFromFile(candidate)
		}
	}
	return DefaultConfig(), nil
}

// codec pairs the decode and encode functions for one file format
type codec struct {
	unmarshal func([]byte, any) error
	marshal   func(any) ([]byte, error)
}

var (
	yamlCodec = codec{unmarshal: yaml.Unmarshal, marshal: yaml.Marshal}
	jsonCodec = codec{
		unmarshal: json.Unmarshal,
		marshal:   func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") },
	}
)

// codecFor picks YAML for .yaml/.yml files and JSON for anything else
func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec
	}
	return jsonCodec
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateData(path, data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := codecFor(path).unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.path = path
	if abs, err := filepath.Abs(path); err == nil {
		cfg.path = abs
	}
	return cfg, nil
}

// validateData decodes data into generic values and checks it against the
// schema. An empty file is an empty object.
func validateData(path string, data []byte) error {
	var doc any
	if err := codecFor(path).unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return Validate(doc)
}

// Validate checks a decoded document against the embedded schema and
// reports every violation in one error.
func Validate(doc any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ValidateFile checks a config file against the schema without loading it
func ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return validateData(path, data)
}

func override[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func overrideList(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

// Merge returns a copy of c with every field other sets layered on top.
// Unset means the zero value; bools are pointers so false can be set.
// Env maps are combined with other's entries winning.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}
	out := *c

	override(&out.RunnerCommand, other.RunnerCommand)
	override(&out.TestAssetsPath, other.TestAssetsPath)
	override(&out.BuildConfiguration, other.BuildConfiguration)
	override(&out.TempDir, other.TempDir)
	override(&out.EnvFile, other.EnvFile)
	override(&out.OutputDir, other.OutputDir)
	override(&out.History, other.History)
	override(&out.Timeout, other.Timeout)
	override(&out.Retries, other.Retries)
	override(&out.RetryDelay, other.RetryDelay)
	override(&out.Concurrency, other.Concurrency)
	override(&out.Rate, other.Rate)

	override(&out.Parallel, other.Parallel)
	override(&out.Bail, other.Bail)
	override(&out.KeepResults, other.KeepResults)
	override(&out.Verbose, other.Verbose)
	override(&out.NoColor, other.NoColor)

	overrideList(&out.Scenarios, other.Scenarios)
	overrideList(&out.Runners, other.Runners)
	overrideList(&out.Targets, other.Targets)
	overrideList(&out.Reporters, other.Reporters)
	overrideList(&out.Before, other.Before)
	overrideList(&out.After, other.After)

	if len(other.Env) > 0 {
		out.Env = env.MergeVariables(c.Env, other.Env)
	}
	return &out
}

// SaveConfig writes c as YAML or JSON depending on the file extension
func (c *Config) SaveConfig(path string) error {
	data, err := codecFor(path).marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
