package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Solver.N, cfg.Solver.K = 48, 5
	cfg.Solver.CPUThreads = 2
	cfg.JournalPath = "/tmp/j.db"
	require.NoError(t, SaveToFile(cfg, path))

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"debug"}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint32(210), cfg.Solver.N)
	assert.Equal(t, 64, cfg.SinkBuffer)
}

func TestBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("EQUIMINER_N", "96")
	t.Setenv("EQUIMINER_K", "5")
	t.Setenv("EQUIMINER_CPU_THREADS", "3")
	t.Setenv("EQUIMINER_API_ADDR", ":9999")
	t.Setenv("EQUIMINER_LOG_LEVEL", "trace")

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, uint32(96), cfg.Solver.N)
	assert.Equal(t, uint32(5), cfg.Solver.K)
	assert.Equal(t, 3, cfg.Solver.CPUThreads)
	assert.Equal(t, ":9999", cfg.APIAddr)
	assert.Equal(t, "trace", cfg.LogLevel)
	require.NoError(t, cfg.Validate())

	t.Setenv("EQUIMINER_SINK_BUFFER", "many")
	assert.Error(t, ApplyEnv(cfg))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Solver.N = 100
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.SinkBuffer = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadReadsExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Solver.N, cfg.Solver.K = 48, 5
	require.NoError(t, SaveToFile(cfg, path))

	t.Setenv("EQUIMINER_CPU_THREADS", "1")
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(48), got.Solver.N)
	assert.Equal(t, 1, got.Solver.CPUThreads)
}
