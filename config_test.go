package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/docopt/docopt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

func mapEnv(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, ber.DefaultMaxDepth, cfg.MaxDepth)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, "log_level: info\nmax_depth: 16\nformat: yaml\np12: file.p12\n")

	cfg, err := loadConfig(path, mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 16, cfg.MaxDepth)
	assert.Equal(t, formatYAML, cfg.Format)
	assert.Equal(t, "file.p12", cfg.P12)

	cfg, err = loadConfig(path, mapEnv(map[string]string{
		envLogLevel: "debug",
		envMaxDepth: "8",
		envP12:      "env.p12",
		envProfile:  "env.mobileprovision",
		envPassword: "env-secret",
	}))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, formatYAML, cfg.Format)
	assert.Equal(t, "env.p12", cfg.P12)
	assert.Equal(t, "env.mobileprovision", cfg.Profile)
	assert.Equal(t, "env-secret", cfg.Password)

	cfg.applyFlags(docopt.Opts{
		"--format":   "cbor",
		"--p12":      "flag.p12",
		"--profile":  nil,
		"--password": "flag-secret",
	})
	assert.Equal(t, formatCBOR, cfg.Format)
	assert.Equal(t, "flag.p12", cfg.P12)
	assert.Equal(t, "env.mobileprovision", cfg.Profile)
	assert.Equal(t, "flag-secret", cfg.Password)
	assert.Equal(t, ber.Decoder{MaxDepth: 8}, cfg.decoder())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), mapEnv(nil))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "max_depth: [1, 2]\n"), mapEnv(nil))
	assert.Error(t, err)

	_, err = loadConfig("", mapEnv(map[string]string{envMaxDepth: "deep"}))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"max depth", func(c *Config) { c.MaxDepth = 0 }},
		{"format", func(c *Config) { c.Format = "json" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
