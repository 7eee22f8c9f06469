package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1k1o/drmpack"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// chdirTemp keeps the working directory free of config files.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	cmd, _, err := rootCmd.Find([]string{name})
	require.NoError(t, err)
	require.Equal(t, name, cmd.Name())
	return cmd
}

func TestCommandSetups(t *testing.T) {
	create := setups[findCommand(t, "create")]
	assert.False(t, create.watch, "create runs once and must not reload config mid-run")
	assert.True(t, create.quiet)
	require.Len(t, create.configs, 1)
	assert.Same(t, drmpack.Service.CreateConfig, create.configs[0])

	serve := setups[findCommand(t, "serve")]
	assert.True(t, serve.watch)
	assert.False(t, serve.quiet)
	require.Len(t, serve.configs, 1)
	assert.Same(t, drmpack.Service.ServerConfig, serve.configs[0])
}

func TestInitConfigurationExplicitFileMissing(t *testing.T) {
	resetViper(t)

	err := initConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInitConfigurationWithoutFile(t *testing.T) {
	resetViper(t)
	chdirTemp(t)

	require.NoError(t, initConfiguration(""))
	assert.Empty(t, viper.ConfigFileUsed())
}

func TestInitConfigurationReadsFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "drmpack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key-system: widevine\nlog:\n  level: debug\n"), 0644))

	require.NoError(t, initConfiguration(path))
	assert.Equal(t, path, viper.ConfigFileUsed())
	assert.Equal(t, "widevine", viper.GetString("key-system"))
	assert.Equal(t, "debug", viper.GetString("log.level"))
}

func TestInitConfigurationEnv(t *testing.T) {
	resetViper(t)
	chdirTemp(t)
	t.Setenv("DRMPACK_LOG_LEVEL", "error")

	require.NoError(t, initConfiguration(""))
	assert.Equal(t, "error", viper.GetString("log.level"))
}

func TestLogConfigSet(t *testing.T) {
	resetViper(t)

	cmd := &cobra.Command{Use: "test"}
	require.NoError(t, logConfig{}.Init(cmd))
	require.NoError(t, cmd.ParseFlags([]string{"--log.level", "error", "--log.maxbackups", "3"}))

	var c logConfig
	c.Set()
	assert.Equal(t, "error", c.Level)
	assert.True(t, c.Console)
	assert.Equal(t, 100, c.MaxSize)
	assert.Equal(t, 3, c.MaxBackups)
}

func TestInitLoggingLevel(t *testing.T) {
	logger, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = logger
		zerolog.SetGlobalLevel(level)
	})

	tests := []struct {
		name   string
		config logConfig
		quiet  bool
		level  zerolog.Level
	}{
		{"create default", logConfig{}, true, zerolog.WarnLevel},
		{"serve default", logConfig{}, false, zerolog.InfoLevel},
		{"explicit level", logConfig{Level: "debug"}, true, zerolog.DebugLevel},
		{"unknown level", logConfig{Level: "loud"}, true, zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initLogging(tt.config, tt.quiet)
			assert.Equal(t, tt.level, zerolog.GlobalLevel())
		})
	}
}
