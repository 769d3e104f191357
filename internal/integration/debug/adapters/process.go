package adapters

import (
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Process is a started adapter process whose exit is tracked.
type Process struct {
	// Name is the tool the process was started for.
	Name string

	Cmd     *exec.Cmd
	Started time.Time

	done     chan struct{}
	exitCode atomic.Int32
	killed   atomic.Bool

	mu      sync.RWMutex
	exitErr error
}

// StartProcess starts cmd and begins waiting for it in the background.
func StartProcess(name string, cmd *exec.Cmd) (*Process, error) {
	p := &Process{Name: name, Cmd: cmd, done: make(chan struct{})}
	p.exitCode.Store(-1)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	p.Started = time.Now()
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.Cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	code := 0
	if err != nil {
		code = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				p.killed.Store(true)
			}
		}
	}
	p.exitCode.Store(int32(code))
	close(p.done)
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns -1 until the process exits, and for a process killed by
// a signal.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// Killed reports whether the process was ended by a signal.
func (p *Process) Killed() bool {
	return p.killed.Load()
}

// ExitError returns the error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.Cmd.Process.Pid
}

// Stop asks the process to terminate and kills it if it is still running
// after grace. It returns once the process has exited.
func (p *Process) Stop(grace time.Duration) {
	if p.Exited() {
		return
	}
	if err := p.Cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = p.Cmd.Process.Kill()
		<-p.done
		return
	}
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.Cmd.Process.Kill()
		<-p.done
	}
}
