package stallone

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// terminateGrace is how long Terminate waits after the polite signal before
// killing the JVM.
const terminateGrace = 5 * time.Second

// JavaProcess is a JVM child running the bridge agent. The agent reads
// requests from Stdin and writes responses to Stdout; Stderr carries the JVM's
// own output, which is forwarded to the logger. Lines on stderr that hold a
// JSON exception report are decoded and delivered on ExceptionChan.
type JavaProcess struct {
	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Stdin is the write end of the JVM's standard input.
	Stdin io.WriteCloser

	// Stdout is the read end of the JVM's standard output.
	Stdout io.ReadCloser

	// ExceptionChan receives exceptions the agent reports outside of a request.
	ExceptionChan chan *ForeignException

	waitOnce sync.Once
	waitErr  error
	exited   chan struct{}

	stopSignals func()

	// cleanup runs once the process has exited
	cleanup func()
}

// StartJavaProcess runs javaPath with jvmArgs, then mainClass, then
// programArgs. environmentVars are added to the current environment.
func StartJavaProcess(javaPath string, jvmArgs []string, mainClass string, environmentVars map[string]string, programArgs ...string) (*JavaProcess, error) {
	args := make([]string, 0, len(jvmArgs)+1+len(programArgs))
	args = append(args, jvmArgs...)
	args = append(args, mainClass)
	args = append(args, programArgs...)

	cmd := exec.Command(javaPath, args...)
	cmd.Env = os.Environ()
	for key, value := range environmentVars {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	jp := &JavaProcess{
		Cmd:           cmd,
		Stdin:         stdinPipe,
		Stdout:        stdoutPipe,
		ExceptionChan: make(chan *ForeignException, 1),
		exited:        make(chan struct{}),
	}
	Logger().Info("started JVM", zap.String("java", javaPath), zap.String("main", mainClass), zap.Int("pid", cmd.Process.Pid))

	go jp.forwardStderr(stderrPipe)
	jp.stopSignals = setupSignalHandler(jp)
	return jp, nil
}

// forwardStderr logs the JVM's stderr line by line.
func (jp *JavaProcess) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 && trimmed[0] == '{' {
			if ex, err := NewForeignExceptionFromJSON(trimmed); err == nil && ex.Exception != "" {
				Logger().Error("JVM exception", zap.String("exception", ex.Exception), zap.String("message", ex.Message))
				select {
				case jp.ExceptionChan <- ex:
				default:
					Logger().Warn("exception channel full, dropping", zap.String("exception", ex.Exception))
				}
				continue
			}
		}
		Logger().Info("jvm", zap.ByteString("stderr", line))
	}
}

// Wait blocks until the JVM exits. It may be called more than once.
func (jp *JavaProcess) Wait() error {
	jp.waitOnce.Do(func() {
		jp.waitErr = waitForExit(jp.Cmd)
		if jp.cleanup != nil {
			jp.cleanup()
		}
		close(jp.exited)
		if jp.stopSignals != nil {
			jp.stopSignals()
		}
	})
	<-jp.exited
	return jp.waitErr
}

// Terminate asks the JVM to stop and kills it if it has not exited within
// five seconds. It returns nil if the process has already finished.
func (jp *JavaProcess) Terminate() error {
	if jp.Cmd.Process == nil {
		return nil
	}
	select {
	case <-jp.exited:
		return nil
	default:
	}

	if err := terminateProcess(jp.Cmd.Process); err != nil {
		// most likely already gone
		Logger().Debug("terminate signal failed", zap.Error(err))
	}

	done := make(chan error, 1)
	go func() {
		done <- jp.Wait()
	}()

	select {
	case <-time.After(terminateGrace):
		if err := jp.Cmd.Process.Kill(); err != nil {
			return err
		}
		<-done
		return nil
	case err := <-done:
		if err != nil {
			Logger().Debug("JVM exited", zap.Error(err))
		}
		return nil
	}
}

// setupSignalHandler terminates the JVM when the host is interrupted. The
// returned function detaches the handler.
func setupSignalHandler(jp *JavaProcess) func() {
	signalChan := make(chan os.Signal, 1)
	setSignalsForChannel(signalChan)
	stop := make(chan struct{})

	go func() {
		select {
		case <-signalChan:
			jp.Terminate()
		case <-stop:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopSignals(signalChan)
			close(stop)
		})
	}
}
