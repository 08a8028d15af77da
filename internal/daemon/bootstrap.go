package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// StartDetached spawns `<self> watch <args...>` in a new session so it
// outlives the invoking shell. It returns the child PID.
func StartDetached(args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDetachedWithPath(executable, args...)
}

// StartDetachedWithPath spawns executable in watch mode, detached.
func StartDetachedWithPath(executable string, args ...string) (int, error) {
	cmd := exec.Command(executable, append([]string{"watch"}, args...)...)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The child is not waited on; release its resources here.
	_ = cmd.Process.Release()
	return pid, nil
}
