package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_ConfigSetGet(t *testing.T) {
	c := newCLI(t)
	cfg := filepath.Join(t.TempDir(), "featureindex.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: info\n"), 0o644))

	code, out, stderr := c.run("config", "set", "search.page_size", "7", "--config", cfg)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "Set search.page_size = 7 in "+cfg+"\n", out)

	code, _, stderr = c.run("config", "set", "search.store_timeout", "10s", "--config", cfg)
	require.Equal(t, ExitSuccess, code, stderr)

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "page_size: 7")
	assert.Contains(t, string(data), "level: info")
	assert.NotContains(t, string(data), "db:", "flag values stay out of the file")

	// A fresh process sees the values through the file alone.
	viper.Reset()
	code, out, _ = c.run("config", "get", "search.page_size", "--config", cfg)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "7\n", out)
	assert.Equal(t, 7, searchConfig().PageSize)

	viper.Reset()
	code, out, _ = c.run("config", "get", "search.store_timeout", "--config", cfg)
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "10s\n", out)
}

func TestCLI_ConfigRejectsBadInput(t *testing.T) {
	c := newCLI(t)
	cfg := filepath.Join(t.TempDir(), "featureindex.yaml")
	require.NoError(t, os.WriteFile(cfg, nil, 0o644))

	for _, args := range [][]string{
		{"config", "set", "search.pagesize", "7"},
		{"config", "set", "search.workers", "0"},
		{"config", "set", "search.store_timeout", "soon"},
		{"config", "set", "log.format", "xml"},
		{"config", "get", "annotations.alphamissense"},
	} {
		code, _, _ := c.run(append(args, "--config", cfg)...)
		assert.Equal(t, ExitUsage, code, "%v", args)
	}

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Empty(t, data)
}
