package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/skillbot/internal/config"
)

func TestParseUserID(t *testing.T) {
	t.Parallel()

	id, err := parseUserID("12345")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), id)

	for _, bad := range []string{"", "0", "-4", "bob"} {
		_, err := parseUserID(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildFilter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "words.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sensitive_words:\n  - forbidden\n"), 0o644))

	f, err := buildFilter(config.DenylistConfig{Words: []string{"secret"}, File: path})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.False(t, f.Allowed("a secret plan"))
	assert.False(t, f.Allowed("forbidden fruit"))
	assert.True(t, f.Allowed("hello"))

	_, err = buildFilter(config.DenylistConfig{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	t.Parallel()

	for _, path := range [][]string{{"serve"}, {"credits", "show"}, {"credits", "grant"}, {"whitelist", "add"}, {"whitelist", "remove"}} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
