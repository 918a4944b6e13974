package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drawing-interpreter/internal/interpreter/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planJSON = `{
  "sheet_name": "A-101",
  "views": [{
    "view_name": "Ground Floor Plan",
    "geometry": [
      {"type": "line", "layer": "A-WALL", "start": {"x": 0, "y": 0}, "end": {"x": 5000, "y": 0}},
      {"type": "line", "layer": "A-WALL", "start": {"x": 0, "y": 200}, "end": {"x": 5000, "y": 200}}
    ]
  }]
}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", "", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["interpret"])
	assert.True(t, names["render"])
	assert.True(t, names["sessions"])
}

func TestInterpretStdin(t *testing.T) {
	out, err := execute(t, planJSON, "interpret", "-")
	require.NoError(t, err)

	var result models.DrawingInterpretationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "A-101", result.SheetName)
	assert.Equal(t, 1, result.ElementCount)
}

func TestInterpretSVGRenderAndSessions(t *testing.T) {
	dir := t.TempDir()
	sheetPath := filepath.Join(dir, "A-102.svg")
	require.NoError(t, os.WriteFile(sheetPath, []byte(`<svg>
  <g data-view="Ground Floor Plan" data-layer="A-WALL">
    <line x1="0" y1="0" x2="5000" y2="0"/>
    <line x1="0" y1="-200" x2="5000" y2="-200"/>
  </g>
</svg>`), 0o644))

	dbPath := filepath.Join(dir, "history.db")
	resultPath := filepath.Join(dir, "result.json")
	planPath := filepath.Join(dir, "plan.svg")

	_, err := execute(t, "", "interpret", "--db", dbPath, "-o", resultPath, "--svg", planPath, sheetPath)
	require.NoError(t, err)

	data, err := os.ReadFile(resultPath)
	require.NoError(t, err)
	var result models.DrawingInterpretationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "A-102", result.SheetName, "sheet named after the file")
	assert.Equal(t, 1, result.ElementCount)

	plan, err := os.ReadFile(planPath)
	require.NoError(t, err)
	assert.Contains(t, string(plan), `data-layer="Wall"`)

	svg, err := execute(t, "", "render", "--margin", "100", resultPath)
	require.NoError(t, err)
	assert.Contains(t, svg, `data-sheet="A-102"`)

	table, err := execute(t, "", "sessions", "--db", dbPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(table), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], result.SessionID)
	assert.Contains(t, lines[1], "A-102")
	assert.Contains(t, lines[1], "ok")

	raw, err := execute(t, "", "sessions", "--db", dbPath, "--json")
	require.NoError(t, err)
	var list []models.InterpretationSession
	require.NoError(t, json.Unmarshal([]byte(raw), &list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Success)
}

func TestInterpretErrors(t *testing.T) {
	_, err := execute(t, "{", "interpret", "-")
	assert.ErrorContains(t, err, "decode sheet")

	_, err = execute(t, "", "interpret", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = execute(t, "", "interpret")
	assert.Error(t, err)

	_, err = execute(t, "", "sessions", "--limit", "-1", "--db", filepath.Join(t.TempDir(), "h.db"))
	assert.ErrorContains(t, err, "limit")
}
