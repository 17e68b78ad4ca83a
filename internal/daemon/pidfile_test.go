package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pidPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "daemon.pid")
}

func TestPIDFile_WriteReadRoundTrip(t *testing.T) {
	pf := NewPIDFile(pidPath(t))
	require.NoError(t, pf.Write())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_WriteCreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "deep", "daemon.pid")

	pf := NewPIDFile(nested)
	require.NoError(t, pf.Write())

	_, err := os.Stat(nested)
	require.NoError(t, err)
}

func TestPIDFile_Read_NotFound(t *testing.T) {
	pf := NewPIDFile(pidPath(t))

	_, err := pf.Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)
}

func TestPIDFile_Read_TrimsWhitespace(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("12345\n"), 0o644))

	pid, err := NewPIDFile(path).Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not-a-number"), 0o644))

	_, err := NewPIDFile(path).Read()
	assert.Error(t, err)
}

func TestPIDFile_Remove(t *testing.T) {
	path := pidPath(t)
	pf := NewPIDFile(path)
	require.NoError(t, pf.Write())

	require.NoError(t, pf.Remove())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing again is not an error.
	assert.NoError(t, pf.Remove())
}

func TestPIDFile_IsRunning(t *testing.T) {
	path := pidPath(t)
	pf := NewPIDFile(path)

	assert.False(t, pf.IsRunning(), "no PID file means not running")

	require.NoError(t, pf.Write())
	assert.True(t, pf.IsRunning(), "current process is running")

	// PID above the usual kernel maximum; no live process matches.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(4194304)), 0o644))
	assert.False(t, pf.IsRunning(), "stale PID means not running")
}

func TestPIDFile_Signal(t *testing.T) {
	path := pidPath(t)
	pf := NewPIDFile(path)
	require.NoError(t, pf.Write())

	// Signal 0 checks existence without delivering anything.
	assert.NoError(t, pf.Signal(syscall.Signal(0)))

	require.NoError(t, os.WriteFile(path, []byte("4194304"), 0o644))
	assert.Error(t, pf.Signal(syscall.Signal(0)))
}
