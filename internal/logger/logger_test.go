package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestErrorRecordsReachErrorLog(t *testing.T) {
	var out, errOut bytes.Buffer
	log := newLogger(&out, "debug", false, &errOut)

	log.Info("post created", "id", 7)
	log.Error("regeneration failed", "board", "3")

	assert.Contains(t, out.String(), "post created")
	assert.Contains(t, out.String(), "regeneration failed")
	assert.NotContains(t, errOut.String(), "post created")
	assert.Contains(t, errOut.String(), "regeneration failed")
	assert.Contains(t, errOut.String(), "time=")
}

func TestInitializeAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous line\n"), 0o644))

	require.NoError(t, Initialize("info", true, path))
	t.Cleanup(func() {
		Close()
		Log = newLogger(os.Stdout, "info", false, nil)
	})

	Log.Error("storage failure", "op", "commit")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "previous line")
	assert.Contains(t, string(data), "storage failure")
}
