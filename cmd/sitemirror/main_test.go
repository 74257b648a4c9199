package main

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedHost(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/docs", "example.com"},
		{"example.com", "example.com"},
		{"http://example.com:8080/x", "example.com:8080"},
		{"", "site"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, seedHost(tt.input), "input %q", tt.input)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"mirror", "validate", "version"} {
		assert.Contains(t, out, cmd)
	}
}

func TestBuildConfig_FlagOverrides(t *testing.T) {
	fs := flag.NewFlagSet("mirror", flag.ContinueOnError)
	var opts mirrorOptions
	registerMirrorFlags(fs, &opts)
	require.NoError(t, fs.Parse([]string{
		"-url", "https://example.com",
		"-out", "/tmp/out",
		"-max-pages", "10",
		"-scope", "same-host",
		"-assets", "js, css",
		"-max-depth", "0",
		"-rate", "1.5",
		"-no-rewrite",
		"-store-raw",
	}))

	cfg, err := buildConfig(&opts)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", cfg.SeedURL)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.Equal(t, "same-host", cfg.Scope)
	assert.Equal(t, []string{"js", "css"}, cfg.IncludeAssets)
	require.NotNil(t, cfg.MaxDepth)
	assert.Equal(t, 0, *cfg.MaxDepth)
	assert.Equal(t, 1.5, cfg.RateRPS)
	require.NotNil(t, cfg.RewriteLinks)
	assert.False(t, *cfg.RewriteLinks)
	assert.True(t, cfg.StoreRaw)
	assert.False(t, cfg.RespectRobots)
}

func TestBuildConfig_ZeroFlagsLeaveConfigUntouched(t *testing.T) {
	fs := flag.NewFlagSet("mirror", flag.ContinueOnError)
	var opts mirrorOptions
	registerMirrorFlags(fs, &opts)
	require.NoError(t, fs.Parse(nil))

	cfg, err := buildConfig(&opts)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.SeedURL)
	assert.Equal(t, "", cfg.OutputDir)
	assert.Nil(t, cfg.MaxDepth)
	assert.Nil(t, cfg.RewriteLinks)
}
