//go:build !windows

package daemon

import (
	"fmt"
	"syscall"
)

// IsRunning reports the recorded state and whether its process is alive.
func (p *PIDFile) IsRunning() (State, bool) {
	st, err := p.ReadState()
	if err != nil {
		return State{}, false
	}
	// Signal 0 probes for the process without delivering anything.
	return st, syscall.Kill(st.PID, 0) == nil
}

// Signal sends sig to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return syscall.Kill(pid, sig)
}
