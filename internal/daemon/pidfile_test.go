package daemon

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPIDFile(t *testing.T) *PIDFile {
	t.Helper()
	return NewPIDFile(filepath.Join(t.TempDir(), "serve.pid"))
}

func TestPIDFile_StateRoundTrip(t *testing.T) {
	pf := newPIDFile(t)
	require.NoError(t, pf.WriteState(State{PID: 12345, Addr: "127.0.0.1:8080"}))

	st, err := pf.ReadState()
	require.NoError(t, err)
	assert.Equal(t, State{PID: 12345, Addr: "127.0.0.1:8080"}, st)

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestPIDFile_Write_CurrentProcess(t *testing.T) {
	pf := newPIDFile(t)
	require.NoError(t, pf.Write(":9000"))

	st, err := pf.ReadState()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, ":9000", st.Addr)
}

func TestPIDFile_ReadState_PIDOnly(t *testing.T) {
	pf := newPIDFile(t)
	require.NoError(t, os.WriteFile(pf.Path, []byte("42\n"), 0o644))

	st, err := pf.ReadState()
	require.NoError(t, err)
	assert.Equal(t, 42, st.PID)
	assert.Empty(t, st.Addr)
}

func TestPIDFile_Read_Errors(t *testing.T) {
	pf := newPIDFile(t)
	_, err := pf.Read()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(pf.Path, []byte("not-a-number\n:8080\n"), 0o644))
	_, err = pf.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID file content")
}

func TestPIDFile_Remove(t *testing.T) {
	pf := newPIDFile(t)
	assert.Error(t, pf.Remove())

	require.NoError(t, pf.WriteState(State{PID: 1}))
	require.NoError(t, pf.Remove())
	_, err := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFile_IsRunning(t *testing.T) {
	pf := newPIDFile(t)

	st, running := pf.IsRunning()
	assert.False(t, running)
	assert.Zero(t, st.PID)

	require.NoError(t, pf.Write(":8080"))
	st, running = pf.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, ":8080", st.Addr)

	// A PID this high is almost certainly unused.
	require.NoError(t, pf.WriteState(State{PID: 999999, Addr: ":8080"}))
	st, running = pf.IsRunning()
	assert.False(t, running)
	assert.Equal(t, 999999, st.PID)
}

func TestPIDFile_Signal(t *testing.T) {
	pf := newPIDFile(t)

	err := pf.Signal(syscall.Signal(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read PID file")

	require.NoError(t, pf.Write(""))
	assert.NoError(t, pf.Signal(syscall.Signal(0)))
}
