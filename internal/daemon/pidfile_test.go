package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile_WriteAndRead(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "run", "evidence-serve.pid"))

	require.NoError(t, pf.WritePID(12345))

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number\n"), 0o644))

	_, err := NewPIDFile(path).Read()
	assert.ErrorContains(t, err, "invalid PID file content")
}

func TestPIDFile_AcquireRelease(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "evidence-serve.pid"))

	require.NoError(t, pf.Acquire())
	pid, running := pf.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	// Re-acquiring from the owning process is allowed.
	require.NoError(t, pf.Acquire())

	require.NoError(t, pf.Release())
	_, err := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(err))

	// Releasing a missing file is a no-op.
	assert.NoError(t, pf.Release())
}

func TestPIDFile_Acquire_StaleFile(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "evidence-serve.pid"))
	// A PID that almost certainly does not exist.
	require.NoError(t, pf.WritePID(999999))

	require.NoError(t, pf.Acquire())
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Release_OtherOwner(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "evidence-serve.pid"))
	require.NoError(t, pf.WritePID(999999))

	require.NoError(t, pf.Release())
	_, err := os.Stat(pf.Path)
	assert.NoError(t, err, "file of another process is kept")
}

func TestPIDFile_IsRunning_NoFile(t *testing.T) {
	pid, running := NewPIDFile(filepath.Join(t.TempDir(), "none.pid")).IsRunning()
	assert.Equal(t, 0, pid)
	assert.False(t, running)
}

func TestPIDFile_Stop_NotRunning(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "evidence-serve.pid"))
	_, err := pf.Stop(time.Second)
	assert.True(t, errors.Is(err, ErrNotRunning))

	require.NoError(t, pf.WritePID(999999))
	_, err = pf.Stop(time.Second)
	assert.True(t, errors.Is(err, ErrNotRunning))
}
