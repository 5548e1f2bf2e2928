package runtest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the fixed name of a runbook's sibling test configuration.
const ConfigFile = "runbook_test.yml"

// DefaultTimeout bounds a runbook's whole suite when the config is silent.
const DefaultTimeout = 5 * time.Minute

// TestConfig is the complete test configuration for one runbook, parsed from
// its runbook_test.yml.
type TestConfig struct {
	Version  int          `yaml:"version"`
	Settings TestSettings `yaml:"settings,omitempty"`
	Tests    []TestCase   `yaml:"tests"`
}

// TestSettings are global settings for every test in the config.
type TestSettings struct {
	// UseTempWorkingDir runs the suite in a fresh temp directory, removed
	// when the suite finishes. Takes precedence over WorkingDir.
	UseTempWorkingDir bool `yaml:"use_temp_working_dir,omitempty"`

	// WorkingDir sets the execution directory. "." means the runbook's own
	// directory; relative paths resolve against it; absolute paths are used
	// as-is. Empty falls back to the process working directory.
	WorkingDir string `yaml:"working_dir,omitempty"`

	// Timeout bounds the whole suite (default: 5m).
	Timeout string `yaml:"timeout,omitempty"`

	// Parallelizable allows this runbook's suite to run concurrently with
	// other runbooks' suites (default: true).
	Parallelizable *bool `yaml:"parallelizable,omitempty"`
}

// SuiteTimeout returns the parsed timeout. The value was validated at load
// time, so a parse failure here degrades to the default.
func (s TestSettings) SuiteTimeout() time.Duration {
	if s.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return DefaultTimeout
	}
	return d
}

// IsParallelizable reports whether the suite may run in the parallel group.
func (s TestSettings) IsParallelizable() bool {
	return s.Parallelizable == nil || *s.Parallelizable
}

// TestCase is one named test within a config.
type TestCase struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description,omitempty"`
	Inputs      map[string]InputValue `yaml:"inputs,omitempty"`
	Steps       []TestStep            `yaml:"steps,omitempty"`
	Assertions  []TestAssertion       `yaml:"assertions,omitempty"`
	Cleanup     []CleanupAction       `yaml:"cleanup,omitempty"`
}

// TestStep selects one block and the outcome expected of it.
type TestStep struct {
	Block      string          `yaml:"block"`
	Expect     ExpectedStatus  `yaml:"expect"`
	Assertions []TestAssertion `yaml:"assertions,omitempty"`
}

// ExpectedStatus is what a step's author expects the block execution to do.
type ExpectedStatus string

const (
	ExpectSuccess ExpectedStatus = "success"
	ExpectFailure ExpectedStatus = "failure"
	ExpectSkip    ExpectedStatus = "skip"
)

// TestAssertion is one declared post-condition.
type TestAssertion struct {
	Type AssertionType `yaml:"type"`

	// File assertions.
	Path     string `yaml:"path,omitempty"`
	Contains string `yaml:"contains,omitempty"`
	Pattern  string `yaml:"pattern,omitempty"`
	Value    string `yaml:"value,omitempty"`

	// Output assertions.
	Block  string `yaml:"block,omitempty"`
	Output string `yaml:"output,omitempty"`

	// files_generated.
	MinCount int `yaml:"min_count,omitempty"`
}

// AssertionType enumerates the supported assertion kinds.
type AssertionType string

const (
	AssertionFileExists     AssertionType = "file_exists"
	AssertionFileNotExists  AssertionType = "file_not_exists"
	AssertionFileContains   AssertionType = "file_contains"
	AssertionFileMatches    AssertionType = "file_matches"
	AssertionDirExists      AssertionType = "dir_exists"
	AssertionOutputEquals   AssertionType = "output_equals"
	AssertionOutputExists   AssertionType = "output_exists"
	AssertionFilesGenerated AssertionType = "files_generated"
)

// CleanupAction runs after a test case, on success and failure alike.
type CleanupAction struct {
	Command string `yaml:"command,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// InputValue is either a literal value or a fuzz generation policy:
//
//	inputs:
//	  project.Name: "fixed-value"
//	  project.Email: { fuzz: { type: email } }
type InputValue struct {
	Literal interface{}
	Fuzz    *FuzzSpec
}

func (v *InputValue) UnmarshalYAML(value *yaml.Node) error {
	var wrapper struct {
		Fuzz *FuzzSpec `yaml:"fuzz"`
	}
	if err := value.Decode(&wrapper); err == nil && wrapper.Fuzz != nil {
		v.Fuzz = wrapper.Fuzz
		return nil
	}

	var literal interface{}
	if err := value.Decode(&literal); err != nil {
		return err
	}
	v.Literal = literal
	return nil
}

// IsLiteral reports whether this value is a literal rather than a policy.
func (v InputValue) IsLiteral() bool { return v.Fuzz == nil }

// ConfigPath returns the expected config location for a runbook document.
func ConfigPath(runbookPath string) string {
	return filepath.Join(filepath.Dir(runbookPath), ConfigFile)
}

// LoadConfig reads and validates a runbook's test configuration.
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses, defaults, and validates a test configuration.
func ParseConfig(data []byte) (*TestConfig, error) {
	var config TestConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *TestConfig) {
	if config.Version == 0 {
		config.Version = 1
	}
	if config.Settings.Timeout == "" {
		config.Settings.Timeout = "5m"
	}
	if config.Settings.Parallelizable == nil {
		defaultTrue := true
		config.Settings.Parallelizable = &defaultTrue
	}
	for i := range config.Tests {
		for j := range config.Tests[i].Steps {
			if config.Tests[i].Steps[j].Expect == "" {
				config.Tests[i].Steps[j].Expect = ExpectSuccess
			}
		}
	}
}

func validateConfig(config *TestConfig) error {
	if config.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (only version 1 is supported)", config.Version)
	}
	if len(config.Tests) == 0 {
		return fmt.Errorf("at least one test case is required")
	}
	if _, err := time.ParseDuration(config.Settings.Timeout); err != nil {
		return fmt.Errorf("invalid timeout format %q: %w", config.Settings.Timeout, err)
	}

	names := make(map[string]bool)
	for i, tc := range config.Tests {
		if tc.Name == "" {
			return fmt.Errorf("test case %d: name is required", i+1)
		}
		if names[tc.Name] {
			return fmt.Errorf("duplicate test case name %q", tc.Name)
		}
		names[tc.Name] = true

		for j, step := range tc.Steps {
			if step.Block == "" {
				return fmt.Errorf("test %q step %d: block is required", tc.Name, j+1)
			}
			switch step.Expect {
			case ExpectSuccess, ExpectFailure, ExpectSkip:
			default:
				return fmt.Errorf("test %q step %d: invalid expect value %q", tc.Name, j+1, step.Expect)
			}
			for k, a := range step.Assertions {
				if err := validateAssertion(tc.Name, k, a); err != nil {
					return err
				}
			}
		}
		for j, a := range tc.Assertions {
			if err := validateAssertion(tc.Name, j, a); err != nil {
				return err
			}
		}
		for j, c := range tc.Cleanup {
			if c.Command == "" && c.Path == "" {
				return fmt.Errorf("test %q cleanup %d: command or path is required", tc.Name, j+1)
			}
		}
	}
	return nil
}

func validateAssertion(testName string, index int, a TestAssertion) error {
	missing := func(field string) error {
		return fmt.Errorf("test %q assertion %d: %s is required for %s", testName, index+1, field, a.Type)
	}
	switch a.Type {
	case AssertionFileExists, AssertionFileNotExists, AssertionDirExists:
		if a.Path == "" {
			return missing("path")
		}
	case AssertionFileContains:
		if a.Path == "" {
			return missing("path")
		}
		if a.Contains == "" {
			return missing("contains")
		}
	case AssertionFileMatches:
		if a.Path == "" {
			return missing("path")
		}
		if a.Pattern == "" {
			return missing("pattern")
		}
	case AssertionOutputEquals:
		if a.Block == "" {
			return missing("block")
		}
		if a.Output == "" {
			return missing("output")
		}
	case AssertionOutputExists:
		if a.Block == "" {
			return missing("block")
		}
		if a.Output == "" {
			return missing("output")
		}
	case AssertionFilesGenerated:
		if a.MinCount <= 0 {
			return fmt.Errorf("test %q assertion %d: min_count must be positive for %s", testName, index+1, a.Type)
		}
	default:
		return fmt.Errorf("test %q assertion %d: unknown assertion type %q", testName, index+1, a.Type)
	}
	return nil
}
