package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/bbcoder/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultProject, config.Project)
	assert.Equal(t, DefaultOutputDir, config.OutputDir)
	assert.Equal(t, 1, config.Jobs)
	assert.False(t, config.Render.Strict)
	assert.Equal(t, DefaultMaxDepth, config.Render.MaxDepth)
	assert.Equal(t, DefaultDebounce, config.Watch.Debounce)
	assert.Equal(t, DefaultExtensions, config.Watch.Extensions)
	assert.Equal(t, DefaultHost, config.Server.Host)
	assert.Equal(t, DefaultPort, config.Server.Port)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, config *Config)
	}{
		{
			name: "explicit values",
			setup: func() {
				viper.Set("project", "site/project.yml")
				viper.Set("output_dir", "out")
				viper.Set("jobs", 4)
				viper.Set("render.strict", true)
				viper.Set("render.max_depth", 32)
				viper.Set("watch.debounce", "1s")
				viper.Set("watch.extensions", []string{"bbxml", ".txt"})
				viper.Set("server.port", 0)
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, "site/project.yml", config.Project)
				assert.Equal(t, "out", config.OutputDir)
				assert.Equal(t, 4, config.Jobs)
				assert.True(t, config.Render.Strict)
				assert.Equal(t, 32, config.Render.MaxDepth)
				assert.Equal(t, time.Second, config.Watch.Debounce)
				assert.Equal(t, []string{".bbxml", ".txt"}, config.Watch.Extensions)
				assert.Equal(t, 0, config.Server.Port)
			},
		},
		{
			name:        "zero jobs",
			setup:       func() { viper.Set("jobs", 0) },
			expectError: true,
		},
		{
			name:        "zero max depth",
			setup:       func() { viper.Set("render.max_depth", 0) },
			expectError: true,
		},
		{
			name:        "port out of range",
			setup:       func() { viper.Set("server.port", 70000) },
			expectError: true,
		},
		{
			name:        "empty output dir",
			setup:       func() { viper.Set("output_dir", "") },
			expectError: true,
		},
		{
			name:        "unknown log level",
			setup:       func() { viper.Set("log.level", "loud") },
			expectError: true,
		},
		{
			name:        "unknown log format",
			setup:       func() { viper.Set("log.format", "xml") },
			expectError: true,
		},
		{
			name:        "invalid host",
			setup:       func() { viper.Set("server.host", "localhost; rm -rf /") },
			expectError: true,
		},
		{
			name:        "undecodable value",
			setup:       func() { viper.Set("jobs", "many") },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			tt.setup()

			config, err := Load()

			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, config)
				assert.True(t, errors.IsKind(err, errors.KindConfig))
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, ".bbcoder.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
project: docs/project.xml
render:
  strict: true
server:
  port: 9000
`), 0o644))

	t.Setenv("BBCODER_SERVER_PORT", "9100")

	viper.SetConfigFile(path)
	viper.SetEnvPrefix("BBCODER")
	viper.SetEnvKeyReplacer(EnvKeyReplacer())
	viper.AutomaticEnv()
	require.NoError(t, viper.ReadInConfig())

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "docs/project.xml", config.Project)
	assert.True(t, config.Render.Strict)
	assert.Equal(t, 9100, config.Server.Port)
}
