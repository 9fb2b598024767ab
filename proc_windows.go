//go:build windows

package stallone

import (
	"errors"
	"os"
	"os/exec"
	"os/signal"
)

func setSignalsForChannel(c chan os.Signal) {
	signal.Notify(c, os.Interrupt)
}

func stopSignals(c chan os.Signal) {
	signal.Stop(c)
}

// terminateProcess kills outright; Windows has no SIGTERM.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}

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
