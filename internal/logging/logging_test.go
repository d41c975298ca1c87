package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportedSubsystems(t *testing.T) {
	assert.Equal(t, []string{"APIS", "BNCH", "EQHS", "EQMN", "JRNL", "MINR", "RPCS", "SOLV"}, SupportedSubsystems())
}

func TestSetLogLevels(t *testing.T) {
	SetLogLevels("debug")
	for _, id := range SupportedSubsystems() {
		assert.Equal(t, btclog.LevelDebug, subsystemLoggers[id].Level(), id)
	}

	SetLogLevel("MINR", "trace")
	assert.Equal(t, btclog.LevelTrace, minrLog.Level())

	// unknown subsystems are ignored
	SetLogLevel("NOPE", "trace")
	SetLogLevels("info")
	assert.Equal(t, btclog.LevelInfo, minrLog.Level())
}

func TestValidLogLevel(t *testing.T) {
	assert.True(t, ValidLogLevel("warn"))
	assert.False(t, ValidLogLevel("loud"))
}

func TestLogRotatorWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "equiminer.log")
	require.NoError(t, InitLogRotator(path))
	MuteConsole(true)
	defer MuteConsole(false)

	Main().SetLevel(btclog.LevelInfo)
	Main().Info("rotator test line")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotator test line")
	assert.Contains(t, string(data), "EQMN")
}

func TestTapReceivesLines(t *testing.T) {
	var buf bytes.Buffer
	SetTap(&buf)
	defer SetTap(nil)
	MuteConsole(true)
	defer MuteConsole(false)

	minrLog.SetLevel(btclog.LevelInfo)
	minrLog.Info("tapped line")
	assert.Contains(t, buf.String(), "[INF] MINR: tapped line")
}
