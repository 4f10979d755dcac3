package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codelap/internal/config"
)

func debugConfig() config.LoggingConfig {
	lc := config.DefaultConfig().Logging
	lc.DebugMode = true
	lc.Level = "debug"
	return lc
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestDisabledIsNoop(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(CloseAll)

	require.NoError(t, Initialize(ws, config.LoggingConfig{}))
	assert.False(t, IsDebugMode())
	assert.Equal(t, "", Path())

	Session("nothing should be written")
	_, err := os.Stat(filepath.Join(ws, config.DirName, "logs"))
	assert.True(t, os.IsNotExist(err), "logs dir must not be created when debug mode is off")
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	assert.Error(t, Initialize("", debugConfig()))
}

func TestCategoriesWriteToSharedFile(t *testing.T) {
	ws := t.TempDir()
	lc := debugConfig()
	lc.Categories = map[string]bool{"api": false}
	t.Cleanup(CloseAll)

	require.NoError(t, Initialize(ws, lc))
	path := Path()
	assert.Equal(t, filepath.Join(ws, config.DirName, "logs", LogFileName), path)

	Session("user %s logged in", "ada")
	ProgressDebug("step %d complete", 3)
	API("should be filtered")
	assert.False(t, IsCategoryEnabled(CategoryAPI))
	assert.True(t, IsCategoryEnabled(CategoryStorage))
	CloseAll()

	out := readLog(t, path)
	assert.Contains(t, out, "user ada logged in")
	assert.Contains(t, out, "session")
	assert.Contains(t, out, "step 3 complete")
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "codelap logging initialized")
}

func TestLevelFiltering(t *testing.T) {
	ws := t.TempDir()
	lc := debugConfig()
	lc.Level = "warn"
	t.Cleanup(CloseAll)

	require.NoError(t, Initialize(ws, lc))
	path := Path()
	StorageDebug("debug line")
	Storage("info line")
	Get(CategoryStorage).Warn("warn line")
	CloseAll()

	out := readLog(t, path)
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
}

func TestJSONFormatWithRequestID(t *testing.T) {
	ws := t.TempDir()
	lc := debugConfig()
	lc.Format = "json"
	t.Cleanup(CloseAll)

	require.NoError(t, Initialize(ws, lc))
	path := Path()
	WithRequestID(CategoryAPI, "req-42").Info("GET /health -> %d", 200)
	CloseAll()

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(readLog(t, path)), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["msg"] == "GET /health -> 200" {
			found = true
			assert.Equal(t, "req-42", entry["req"])
			assert.Equal(t, "api", entry["cat"])
			assert.Equal(t, "info", entry["lvl"])
		}
	}
	assert.True(t, found)
}

func TestTimer(t *testing.T) {
	ws := t.TempDir()
	t.Cleanup(CloseAll)
	require.NoError(t, Initialize(ws, debugConfig()))
	path := Path()

	timer := StartTimer(CategoryExercise, "submit")
	elapsed := timer.StopWithThreshold(time.Nanosecond)
	assert.Greater(t, elapsed, time.Duration(0))
	CloseAll()

	assert.Contains(t, readLog(t, path), "submit took")
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	l.Info("x")
	l.Error("y")
	assert.NotNil(t, l.With("k", "v"))
}
