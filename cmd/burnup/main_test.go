package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLog = `{"type":"category","data":{"id":10,"name":"Alpha","board_id":"PHID-PROJ-A"}}
{"type":"item","data":{"id":1,"title":"Dashboards","points_at_ingest":"3"}}
{"type":"transaction","data":{"id":"PHID-XACT-1","item_id":1,"attribute":"status","new_value":"open","timestamp":"2024-01-01T09:00:00Z"}}
{"type":"transaction","data":{"id":"PHID-XACT-2","item_id":1,"attribute":"status","new_value":"resolved","timestamp":"2024-01-03T09:00:00Z"}}
{"type":"edge","data":{"item_id":1,"category_id":10,"observed_at":"2024-01-01T09:00:00Z"}}
`

const testScope = `
title: Team
projects: [10]
start_date: "2024-01-01"
backlog_resolved_cutoff: "2024-01-02"
rules:
  - kind: ByID
    ids: [10]
    title: Alpha work
`

type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	scopes := filepath.Join(dir, "scopes")
	require.NoError(t, os.MkdirAll(scopes, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(scopes, "team.yaml"), []byte(testScope), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log.ndjson"), []byte(testLog), 0o600))

	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"database:\n  path: "+filepath.Join(dir, "burnup.db")+"\n"+
			"scopes:\n  dir: "+scopes+"\n"+
			"engine:\n  workers: 2\n"), 0o600))

	t.Cleanup(viper.Reset)
	return &testEnv{dir: dir, config: cfg}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runWithInput(t, "", args...)
}

func (e *testEnv) runWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "migrate")
	require.NoError(t, err)

	out, err := env.run(t, "import", filepath.Join(env.dir, "log.ndjson"))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 5 records")

	out, err = env.run(t, "scopes", "validate", "--scope", "team")
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha work")

	out, err = env.run(t, "reconstruct", "--scope", "team", "--end", "2024-01-03", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Reconstruction Complete")

	outDir := filepath.Join(env.dir, "feed")
	_, err = env.run(t, "report", "--scope", "team", "--out", outDir)
	require.NoError(t, err)

	aggregates, err := os.ReadFile(filepath.Join(outDir, "aggregates.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(aggregates), "normal,2024-01-01,Alpha work,open,,3,1,true\n")
	assert.Contains(t, string(aggregates), "normal,2024-01-03,Alpha work,resolved,,3,1,true\n")

	closed, err := os.ReadFile(filepath.Join(outDir, "recently_closed.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(closed), "2024-01-03,Alpha work,3,1")

	for _, name := range []string{"status.csv", "open_tasks.csv", "unpointed.csv"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
	// the only item is resolved on the last day
	open, err := os.ReadFile(filepath.Join(outDir, "open_tasks.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date,item_id,title,category,status,project,column,points,priority\n", string(open))

	out, err = env.run(t, "scopes", "status", "--scope", "team")
	require.NoError(t, err)
	assert.Contains(t, out, "through 2024-01-03")
	assert.Contains(t, out, "succeeded")

	out, err = env.run(t, "inspect", "item", "1", "--scope", "team", "--date", "2024-01-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Dashboards")
	assert.Contains(t, out, "Alpha work")
	assert.Contains(t, out, "Stored")

	out, err = env.run(t, "inspect", "category", "10", "--scope", "team", "--date", "2024-01-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Dashboards")

	out, err = env.runWithInput(t, "n\n", "reset", "--scope", "team")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset canceled.")

	out, err = env.run(t, "reset", "--scope", "team", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset scope team")

	out, err = env.run(t, "scopes", "status", "--scope", "team")
	require.NoError(t, err)
	assert.NotContains(t, out, "through")

	out, err = env.run(t, "reset", "--scope", "team", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to reset")
}

func TestInspect_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "inspect", "item", "abc", "--scope", "team")
	assert.ErrorContains(t, err, "invalid id")
}

func TestReport_MissingRulesIsFatal(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "scopes", "norules.yaml"), []byte("projects: [10]\n"), 0o600))

	_, err := env.run(t, "scopes", "validate", "--scope", "norules")
	assert.ErrorContains(t, err, "no rules")
}

func TestReconstruct_IncrementalWithoutData(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "reconstruct", "--scope", "team", "--incremental", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestScopesList(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "scopes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "team")
}

func TestParseDayFlag(t *testing.T) {
	day, err := parseDayFlag("start", "")
	require.NoError(t, err)
	assert.True(t, day.IsZero())

	day, err = parseDayFlag("start", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", day.Format("2006-01-02"))

	_, err = parseDayFlag("end", "29/02/2024")
	assert.ErrorContains(t, err, "invalid --end")
}
