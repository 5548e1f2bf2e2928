package runtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	config, err := ParseConfig([]byte(`
tests:
  - name: basic
    steps:
      - block: setup
`))
	require.NoError(t, err)

	assert.Equal(t, 1, config.Version)
	assert.Equal(t, "5m", config.Settings.Timeout)
	assert.Equal(t, 5*time.Minute, config.Settings.SuiteTimeout())
	assert.True(t, config.Settings.IsParallelizable())
	require.Len(t, config.Tests, 1)
	require.Len(t, config.Tests[0].Steps, 1)
	assert.Equal(t, ExpectSuccess, config.Tests[0].Steps[0].Expect)
}

func TestParseConfigFull(t *testing.T) {
	config, err := ParseConfig([]byte(`
version: 1
settings:
  use_temp_working_dir: true
  timeout: 90s
  parallelizable: false
tests:
  - name: full
    description: everything at once
    inputs:
      project.Name: "demo"
      project.Email:
        fuzz:
          type: email
    steps:
      - block: check-tools
        expect: success
      - block: broken-step
        expect: failure
        assertions:
          - type: file_exists
            path: out.txt
    assertions:
      - type: output_equals
        block: check-tools
        output: version
        value: "1.2.3"
    cleanup:
      - command: rm -f out.txt
      - path: scripts/cleanup.sh
`))
	require.NoError(t, err)

	assert.True(t, config.Settings.UseTempWorkingDir)
	assert.Equal(t, 90*time.Second, config.Settings.SuiteTimeout())
	assert.False(t, config.Settings.IsParallelizable())

	tc := config.Tests[0]
	require.Len(t, tc.Inputs, 2)
	name := tc.Inputs["project.Name"]
	assert.True(t, name.IsLiteral())
	assert.Equal(t, "demo", name.Literal)
	email := tc.Inputs["project.Email"]
	assert.False(t, email.IsLiteral())
	require.NotNil(t, email.Fuzz)
	assert.Equal(t, FuzzEmail, email.Fuzz.Type)

	assert.Equal(t, ExpectFailure, tc.Steps[1].Expect)
	require.Len(t, tc.Steps[1].Assertions, 1)
	require.Len(t, tc.Cleanup, 2)
}

func TestParseConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unsupported version",
			yaml:    "version: 2\ntests:\n  - name: a\n",
			wantErr: "unsupported config version",
		},
		{
			name:    "no tests",
			yaml:    "version: 1\ntests: []\n",
			wantErr: "at least one test case",
		},
		{
			name:    "bad timeout",
			yaml:    "settings:\n  timeout: soon\ntests:\n  - name: a\n",
			wantErr: "invalid timeout",
		},
		{
			name:    "missing test name",
			yaml:    "tests:\n  - description: no name\n",
			wantErr: "name is required",
		},
		{
			name:    "duplicate test name",
			yaml:    "tests:\n  - name: a\n  - name: a\n",
			wantErr: "duplicate test case name",
		},
		{
			name:    "step without block",
			yaml:    "tests:\n  - name: a\n    steps:\n      - expect: success\n",
			wantErr: "block is required",
		},
		{
			name:    "invalid expect",
			yaml:    "tests:\n  - name: a\n    steps:\n      - block: b\n        expect: maybe\n",
			wantErr: "invalid expect value",
		},
		{
			name:    "file assertion without path",
			yaml:    "tests:\n  - name: a\n    assertions:\n      - type: file_exists\n",
			wantErr: "path is required",
		},
		{
			name:    "file_contains without contains",
			yaml:    "tests:\n  - name: a\n    assertions:\n      - type: file_contains\n        path: x\n",
			wantErr: "contains is required",
		},
		{
			name:    "output_equals without output",
			yaml:    "tests:\n  - name: a\n    assertions:\n      - type: output_equals\n        block: b\n",
			wantErr: "output is required",
		},
		{
			name:    "files_generated without count",
			yaml:    "tests:\n  - name: a\n    assertions:\n      - type: files_generated\n",
			wantErr: "min_count must be positive",
		},
		{
			name:    "unknown assertion type",
			yaml:    "tests:\n  - name: a\n    assertions:\n      - type: file_present\n        path: x\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "empty cleanup action",
			yaml:    "tests:\n  - name: a\n    cleanup:\n      - {}\n",
			wantErr: "command or path is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestInputValueLiteralForms(t *testing.T) {
	config, err := ParseConfig([]byte(`
tests:
  - name: literals
    inputs:
      a.str: hello
      a.num: 42
      a.flag: true
      a.list: [one, two]
`))
	require.NoError(t, err)

	inputs := config.Tests[0].Inputs
	assert.Equal(t, "hello", inputs["a.str"].Literal)
	assert.Equal(t, 42, inputs["a.num"].Literal)
	assert.Equal(t, true, inputs["a.flag"].Literal)
	assert.True(t, inputs["a.list"].IsLiteral())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("tests:\n  - name: a\n"), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "a", config.Tests[0].Name)

	_, err = LoadConfig(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfigPath(t *testing.T) {
	got := ConfigPath(filepath.Join("docs", "deploy", "runbook.mdx"))
	assert.Equal(t, filepath.Join("docs", "deploy", ConfigFile), got)
}
