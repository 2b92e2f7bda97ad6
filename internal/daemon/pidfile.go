// Package daemon tracks a detached "projectops serve" process through a
// state file holding its PID and listen address.
package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// State is what a running server records about itself.
type State struct {
	PID  int
	Addr string
}

// PIDFile manages the state file of a background server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process's PID and the address it serves on.
func (p *PIDFile) Write(addr string) error {
	return p.WriteState(State{PID: os.Getpid(), Addr: addr})
}

// WriteState writes the PID on the first line and the address, if any,
// on the second.
func (p *PIDFile) WriteState(st State) error {
	content := strconv.Itoa(st.PID) + "\n"
	if st.Addr != "" {
		content += st.Addr + "\n"
	}
	return os.WriteFile(p.Path, []byte(content), 0o644)
}

// ReadState parses the state file.
func (p *PIDFile) ReadState() (State, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return State{}, err
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return State{}, fmt.Errorf("invalid PID file content: %w", err)
	}
	st := State{PID: pid}
	if len(lines) > 1 {
		st.Addr = strings.TrimSpace(lines[1])
	}
	return st, nil
}

// Read returns only the PID.
func (p *PIDFile) Read() (int, error) {
	st, err := p.ReadState()
	if err != nil {
		return 0, err
	}
	return st.PID, nil
}

// Remove deletes the state file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}
