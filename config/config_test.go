package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagraph/graphsupport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sagraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Load.SkipTests)
	assert.Equal(t, 8080, cfg.Server.Port)

	opts := cfg.ExportOptions()
	assert.Equal(t, ';', opts.Separator)
	assert.Equal(t, ',', opts.DecimalMark)

	passes := cfg.SumPasses()
	require.Len(t, passes, 2)
	assert.Equal(t, "Contains", passes[0].EdgeType)
	assert.Equal(t, []string{"LOC", "McCC", "NUMPAR"}, passes[0].Metrics)
	assert.Equal(t, graphsupport.ContextWarningSum, passes[1].InputContext)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  json: true
export:
  separator: ","
  decimal_mark: "."
  node_columns: [Name, LOC@cumulative]
aggregate:
  passes:
    - edge: ComponentTree
      forward: true
      metrics: [LOC]
server:
  port: 9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, []string{"Name", "LOC@cumulative"}, cfg.Export.NodeColumns)
	assert.Equal(t, '.', cfg.ExportOptions().DecimalMark)
	require.Len(t, cfg.SumPasses(), 1)
	assert.True(t, cfg.SumPasses()[0].Forward)
	assert.Equal(t, 9000, cfg.Server.Port)
	// untouched keys keep their defaults
	assert.True(t, cfg.Load.SkipGenerated)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SAGRAPH_LOG_LEVEL", "warn")
	t.Setenv("SAGRAPH_SERVER_PORT", "7070")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "log:\n  level: loud\n"))
	assert.ErrorContains(t, err, "invalid config")

	_, err = Load(writeConfig(t, "export:\n  separator: \";;\"\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "aggregate:\n  passes:\n    - metrics: [LOC]\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}
