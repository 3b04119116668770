package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOptions_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("horizon: 2880\nseed: 24\nevent_log: out.csv\n"), 0o644))

	opts := defaultOptions()
	require.NoError(t, opts.loadFile(path))

	assert.Equal(t, 2880.0, opts.Horizon)
	assert.Equal(t, int64(24), opts.Seed)
	assert.Equal(t, "out.csv", opts.EventLog)
	assert.Equal(t, "", opts.KPIs)
}

func TestRunOptions_Defaults(t *testing.T) {
	opts := defaultOptions()
	assert.Equal(t, 1000.0, opts.Horizon)
	assert.Equal(t, int64(-1), opts.Seed)
}

func TestRunOptions_BadFileFails(t *testing.T) {
	opts := defaultOptions()
	assert.Error(t, opts.loadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
