//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// IsRunning reports the recorded state and whether its process is alive.
// FindProcess always succeeds on Windows, so a zero signal does the probing.
func (p *PIDFile) IsRunning() (State, bool) {
	st, err := p.ReadState()
	if err != nil {
		return State{}, false
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return st, false
	}
	return st, proc.Signal(syscall.Signal(0)) == nil
}

// Signal sends sig to the recorded process. Only os.Kill is reliable here.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}
