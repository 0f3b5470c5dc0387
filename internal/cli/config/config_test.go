package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustZerooo/CounterStrikeSharp/internal/config"
)

func configDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CSSHARP_CONFIG", dir)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	dir := configDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gamedata.json"),
		[]byte(`{"GameEventManager": {"offsets": {"linux": 91}}}`), 0o600))

	rows := Validate(config.NewLoaderAt(dir))
	require.Len(t, rows, 3)

	assert.True(t, rows[0].OK)
	assert.True(t, rows[1].OK)
	assert.Contains(t, rows[1].Detail, "(1 entries)")
	assert.False(t, rows[2].OK)
	assert.Equal(t, "schema", rows[2].Check)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.json"), []byte(`{"CBaseEntity": {}}`), 0o600))
	out, err := run(t, "validate", "-o", "json")
	require.NoError(t, err)

	var decoded []CheckRow
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	for _, r := range decoded {
		assert.True(t, r.OK, r.Check)
	}
}

func TestValidateBadConfig(t *testing.T) {
	dir := configDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: loud\n"), 0o600))

	rows := Validate(config.NewLoaderAt(dir))
	require.Len(t, rows, 1)
	assert.False(t, rows[0].OK)
	assert.Contains(t, rows[0].Detail, "log.level")

	_, err := run(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 configuration checks failed")
}

func TestInitAndView(t *testing.T) {
	dir := configDir(t)

	out, err := run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	_, err = run(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "init", "--force")
	require.NoError(t, err)

	t.Setenv("CSSHARP_LOG_LEVEL", "debug")
	out, err = run(t, "view", "-o", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "gamedata.json"), cfg.GameData.Path)
}

func TestViewRejectsTable(t *testing.T) {
	configDir(t)
	_, err := run(t, "view", "-o", "table")
	assert.Error(t, err)
}

func TestViewSources(t *testing.T) {
	dir := configDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("scan:\n  cache_size: 32\n"), 0o600))
	t.Setenv("CSSHARP_PLATFORM", "windows")

	out, err := run(t, "view", "--sources", "-o", "json")
	require.NoError(t, err)

	var fields []config.FieldSource
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	assert.Contains(t, fields, config.FieldSource{Field: "scan.cache_size", Source: config.LayerFile})
	assert.Contains(t, fields, config.FieldSource{Field: "gamedata.platform", Source: config.LayerEnv, Var: "CSSHARP_PLATFORM"})

	out, err = run(t, "view", "--sources")
	require.NoError(t, err)
	assert.Contains(t, out, "scan.cache_size")
}

func TestPath(t *testing.T) {
	dir := configDir(t)
	out, err := run(t, "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml")+"\n", out)
}
