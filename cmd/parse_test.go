package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parseTestRunbook = `# Deploy

<Check id="check-cli" command="which kubectl" />

<Command id="deploy" command="kubectl apply -f {{ ._blocks.check-cli.outputs.manifest }}" />

<Command id="check_cli" command="echo duplicate" />
`

func TestParseCommandTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runbook.mdx"), []byte(parseTestRunbook), 0644))

	var buf bytes.Buffer
	parseJSON = false
	parseCmd.SetOut(&buf)
	require.NoError(t, runParse(parseCmd, []string{dir}))

	out := buf.String()
	assert.Contains(t, out, "2 block(s)")
	assert.Contains(t, out, "check-cli")
	assert.Contains(t, out, "deploy")
	assert.Contains(t, out, "check-cli.manifest")
	// The normalized duplicate is reported, not listed.
	assert.Contains(t, out, `duplicate id "check_cli"`)
}

func TestParseCommandJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runbook.mdx"), []byte(parseTestRunbook), 0644))

	var buf bytes.Buffer
	parseJSON = true
	defer func() { parseJSON = false }()
	parseCmd.SetOut(&buf)
	require.NoError(t, runParse(parseCmd, []string{filepath.Join(dir, "runbook.mdx")}))

	var report parseReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	require.Len(t, report.Blocks, 2)
	assert.Equal(t, "check-cli", report.Blocks[0].ID)
	assert.Equal(t, "Check", report.Blocks[0].Kind)
	assert.Equal(t, []string{"check-cli.manifest"}, report.Blocks[1].DependsOn)
	require.Len(t, report.Collisions, 1)
	assert.Equal(t, "check_cli", report.Collisions[0].ID)
}

func TestParseCommandMissingPath(t *testing.T) {
	err := runParse(parseCmd, []string{"/no/such/runbook"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")
}
