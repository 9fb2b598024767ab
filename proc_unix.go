//go:build !windows

package stallone

import (
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// setSignalsForChannel configures the channel to receive SIGINT and SIGTERM.
func setSignalsForChannel(c chan os.Signal) {
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
}

func stopSignals(c chan os.Signal) {
	signal.Stop(c)
}

func terminateProcess(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

// waitForExit waits for a command to exit and returns an appropriate error.
func waitForExit(cmd *exec.Cmd) error {
	err := cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
			return errors.New("child process was killed")
		}
		return err
	}
	return nil
}
