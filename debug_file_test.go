//nolint:paralleltest // Tests modify package-level session log state, cannot run in parallel
package wlc

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanupSessionLog ensures session log state is clean after tests.
func cleanupSessionLog(t *testing.T) {
	t.Helper()
	logMu.Lock()
	defer logMu.Unlock()
	if sessionLogFile != nil {
		_ = sessionLogFile.Close()
	}
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { cleanupSessionLog(t) })

	path, err := InitSessionLog(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	_, err = os.Stat(path)
	require.NoError(t, err, "Log file should exist")

	matched, err := regexp.MatchString(`^wlc_\d{8}_\d{6}\.log$`, filepath.Base(path))
	require.NoError(t, err)
	assert.True(t, matched, "Filename should match wlc_YYYYMMDD_HHMMSS.log, got: %s", path)
	assert.Equal(t, path, GetSessionLogPath())
}

func TestInitSessionLog_BadDirectory(t *testing.T) {
	t.Cleanup(func() { cleanupSessionLog(t) })

	_, err := InitSessionLog(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create session log")
	assert.Empty(t, GetSessionLogPath())
}

func TestSessionLog_HeaderLinesFooter(t *testing.T) {
	t.Cleanup(func() { cleanupSessionLog(t) })

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)

	Debugf("WLC: session %s started", "abc")
	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)
	text := string(content)

	assert.True(t, strings.HasPrefix(text, "=== WLC Poller Session Log ==="))
	assert.Contains(t, text, "PID:")
	assert.Contains(t, text, "Go Version:")
	assert.Contains(t, text, "DEBUG: WLC: session abc started")
	assert.Contains(t, text, "=== Session ended ===")

	Debugf("after close")
	content, err = os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)
	assert.NotContains(t, string(content), "after close")
}

func TestCloseSessionLog_NothingOpen(t *testing.T) {
	cleanupSessionLog(t)
	assert.NoError(t, CloseSessionLog())
}

func TestInitSessionLog_ReplacesOpenLog(t *testing.T) {
	t.Cleanup(func() { cleanupSessionLog(t) })

	first, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)
	second, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, second, GetSessionLogPath())
	require.NoError(t, CloseSessionLog())
}
