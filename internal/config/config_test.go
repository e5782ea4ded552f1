package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dida/internal/view"
)

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", DefaultConfigFileName)

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, filepath.Join(dir, "nested", DefaultDBName), cfg.DBPath)
	require.Equal(t, filepath.Join(dir, "nested", DefaultLogName), cfg.LogPath)

	again, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again, "defaults survive a write/read cycle")
	require.Equal(t, 48*time.Hour, again.RetentionPeriod())
	require.Equal(t, 200*time.Millisecond, again.RetryPolicy().Backoff)
}

func TestLoadOrCreate_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	data := `
db_path = "/var/lib/dida/tasks.db"
default_group_by = "date"

[persist]
max_attempts = 5
backoff = "1s"

[retention]
completed_after = "72h"

[calendar]
column_width = 30

[keys]
quit = "ctrl+c"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/dida/tasks.db", cfg.DBPath)
	require.Equal(t, view.GroupByDate, cfg.GroupBy())
	require.Equal(t, 5, cfg.RetryPolicy().MaxAttempts)
	require.Equal(t, time.Second, cfg.RetryPolicy().Backoff)
	require.Equal(t, 72*time.Hour, cfg.RetentionPeriod())
	require.Equal(t, 30, cfg.Feed().ColumnWidth)
	require.Equal(t, 7, cfg.Feed().BatchDays, "unset keys keep defaults")
	require.Equal(t, "ctrl+c", cfg.Keys.Quit)
	require.Equal(t, "a", cfg.Keys.Add)
}

func TestLoadOrCreate_RepairsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	data := `
db_path = ""
default_group_by = "colour"

[persist]
max_attempts = 0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(filepath.Dir(path), DefaultDBName), cfg.DBPath)
	require.Equal(t, view.GroupByPriority, cfg.GroupBy())
	require.Equal(t, 1, cfg.Persist.MaxAttempts)
}

func TestLoadOrCreate_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("[persist]\nbackoff = \"soon\"\n"), 0o644))
	_, err := LoadOrCreate(path)
	require.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	require.Equal(t, "/tmp/x.toml", ResolvePath(env(map[string]string{"DIDA_CONFIG": "/tmp/x.toml"})))
	require.Equal(t,
		filepath.Join("/xdg", "dida", DefaultConfigFileName),
		ResolvePath(env(map[string]string{"XDG_CONFIG_HOME": "/xdg"})))

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		require.Equal(t, filepath.Join(home, ".config", "dida", DefaultConfigFileName), ResolvePath(env(nil)))
	}
}
