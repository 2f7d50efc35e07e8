package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfig(t, `
[log]
debug = true
format = "json"

[serve]
transport = "streamable-http"
http_addr = "127.0.0.1:8181"
account = "work"
read_only = true
metrics_enabled = false
session_timeout = "15m"
`)

	cfg, err := loadFileConfig(path, true)
	require.NoError(t, err)

	require.NotNil(t, cfg.Log.Debug)
	assert.True(t, *cfg.Log.Debug)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "streamable-http", cfg.Serve.Transport)
	assert.Equal(t, "127.0.0.1:8181", cfg.Serve.HTTPAddr)
	assert.Equal(t, "work", cfg.Serve.Account)
	require.NotNil(t, cfg.Serve.ReadOnly)
	assert.True(t, *cfg.Serve.ReadOnly)
	require.NotNil(t, cfg.Serve.MetricsEnabled)
	assert.False(t, *cfg.Serve.MetricsEnabled)
	assert.Nil(t, cfg.Serve.NoBrowser)
	assert.Equal(t, "15m", cfg.Serve.SessionTimeout)
}

func TestLoadFileConfigMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	cfg, err := loadFileConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, &fileConfig{}, cfg)

	_, err = loadFileConfig(path, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}

func TestLoadFileConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[serve]
transprot = "stdio"
`)
	_, err := loadFileConfig(path, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transprot")
}

func TestLoadFileConfigInvalidSyntax(t *testing.T) {
	path := writeConfig(t, `[serve`)
	_, err := loadFileConfig(path, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestResolveCredentialsDir(t *testing.T) {
	newCmd := func(args ...string) (*cobra.Command, *string) {
		var dir string
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().StringVar(&dir, "credentials-dir", "", "")
		require.NoError(t, cmd.ParseFlags(args))
		return cmd, &dir
	}

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv("GAPI_CONFIG_DIR", "/from/env")
		cmd, dir := newCmd("--credentials-dir", "/from/flag")
		got, err := resolveCredentialsDir(cmd, *dir)
		require.NoError(t, err)
		assert.Equal(t, "/from/flag", got)
	})

	t.Run("env without flag", func(t *testing.T) {
		t.Setenv("GAPI_CONFIG_DIR", "/from/env")
		cmd, dir := newCmd()
		got, err := resolveCredentialsDir(cmd, *dir)
		require.NoError(t, err)
		assert.Equal(t, "/from/env", got)
	})

	t.Run("user config dir by default", func(t *testing.T) {
		t.Setenv("GAPI_CONFIG_DIR", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		t.Setenv("HOME", "/home/test")
		cmd, dir := newCmd()
		got, err := resolveCredentialsDir(cmd, *dir)
		require.NoError(t, err)
		assert.Equal(t, "gapi", filepath.Base(got))
	})
}

func TestRootCommandLoadsConfigFile(t *testing.T) {
	t.Setenv("GAPI_DEBUG", "")
	t.Setenv("GAPI_LOG_FORMAT", "")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("[log]\nformat = \"yaml\"\n"), 0o600))

	_, err := executeRoot(t, "--credentials-dir", dir, "auth", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported log format "yaml"`)
}
