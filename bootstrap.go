package stallone

import (
	"context"
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// agentSource is the bridge agent. The java launcher runs it from source, so
// the Stallone archive and a JDK are all it needs.
//
//go:embed agent/StalloneAgent.java
var agentSource []byte

const agentFileName = "StalloneAgent.java"

// MinAgentJava is the oldest runtime whose launcher runs a single source
// file. Older runtimes need AgentClass.
var MinAgentJava = Version{Major: 11, Minor: -1, Patch: -1}

// Options configures Initialize.
type Options struct {
	// JavaPath is the java executable. Empty means DefaultJVMPath.
	JavaPath string

	// Args are the JVM startup arguments. The archive is spliced into the
	// class path they declare; the slice itself is not modified.
	Args []string

	// ArchiveDir is where the archive is looked up. Empty means InstallDir.
	ArchiveDir string

	// ArchiveName overrides DefaultArchiveName.
	ArchiveName string

	// AgentClass names a bridge agent main class already on the class path.
	// Empty runs the agent embedded in this package.
	AgentClass string

	// IntWidth selects the element type of decoded integer arrays.
	// Zero means DefaultIntWidth.
	IntWidth IntWidth

	// CallTimeout bounds bridge calls whose context has no deadline.
	CallTimeout time.Duration

	// Launcher starts the runtime. Nil means JVMLauncher.
	Launcher Launcher
}

// Initialize locates the archive, adds it to the class path, starts the
// runtime and returns a session bound to the library's namespace and API
// roots.
//
// A missing archive fails with KindMissingArchive before anything is
// started. A launch failure is KindRuntimeStart, and so is a runtime that
// exits before answering the first call. If the API root does not
// have the expected identity the runtime is shut down again and the error is
// KindIdentityMismatch.
func Initialize(ctx context.Context, opts Options) (*Session, error) {
	archive, err := FindArchive(opts.ArchiveDir, opts.ArchiveName)
	if err != nil {
		return nil, err
	}
	width, err := opts.IntWidth.normalize()
	if err != nil {
		return nil, err
	}

	args := ExtendClassPath(opts.Args, archive, PathListSeparator)

	launch := opts.Launcher
	if launch == nil {
		launch = JVMLauncher(opts.AgentClass, opts.CallTimeout)
	}

	Logger().Debug("starting runtime", zap.String("archive", archive), zap.Strings("args", args))
	space, err := launch(ctx, opts.JavaPath, args)
	if err != nil {
		if errors.Is(err, ErrRuntimeStart) {
			return nil, err
		}
		return nil, wrapError(PhaseBootstrap, KindRuntimeStart, err, "start runtime")
	}
	if space == nil {
		return nil, newError(PhaseBootstrap, KindRuntimeStart, "launcher returned no object space")
	}

	sess, err := NewSession(ctx, space, width)
	if err != nil {
		Logger().Error("initialization went wrong", zap.Error(err))
		if cerr := space.Close(); cerr != nil {
			Logger().Warn("closing object space", zap.Error(cerr))
		}
		return nil, err
	}
	sess.archive = archive
	sess.args = args

	Logger().Info("stallone initialized", zap.String("archive", archive), zap.Int("int_width", int(width)))
	return sess, nil
}

// jvmStarted records that the default launcher has started a JVM. A JVM can
// be started once per process.
var jvmStarted atomic.Bool

// JVMLauncher returns the default Launcher: it starts java running the bridge
// agent and talks to it over stdin/stdout. With an empty agentClass the
// embedded agent source is written to a temporary directory and run by the
// source launcher, which requires MinAgentJava. A second launch in the same
// process fails with KindRuntimeStart, even after the first runtime was
// closed.
func JVMLauncher(agentClass string, callTimeout time.Duration) Launcher {
	return func(ctx context.Context, javaPath string, args []string) (ObjectSpace, error) {
		if err := ctx.Err(); err != nil {
			return nil, wrapError(PhaseBootstrap, KindRuntimeStart, err, "start runtime")
		}
		if !jvmStarted.CompareAndSwap(false, true) {
			return nil, newError(PhaseBootstrap, KindRuntimeStart, "runtime already started")
		}

		space, err := launchJVM(ctx, javaPath, args, agentClass, callTimeout)
		if err != nil {
			jvmStarted.Store(false)
			if errors.Is(err, ErrRuntimeStart) {
				return nil, err
			}
			return nil, wrapError(PhaseBootstrap, KindRuntimeStart, err, "start runtime")
		}
		return space, nil
	}
}

func launchJVM(ctx context.Context, javaPath string, args []string, agentClass string, callTimeout time.Duration) (*RemoteSpace, error) {
	env, err := NewJavaEnvironment(ctx, javaPath)
	if err != nil {
		return nil, err
	}
	Logger().Info("java runtime",
		zap.String("implementation", env.Implementation),
		zap.String("version", env.JavaVersion.String()),
		zap.String("path", env.JavaPath))

	main := agentClass
	var agentDir string
	if main == "" {
		if env.JavaVersion.Compare(MinAgentJava) < 0 {
			return nil, newError(PhaseBootstrap, KindRuntimeStart,
				"java %s cannot run the bridge agent from source, need %d or newer",
				env.JavaVersion.String(), MinAgentJava.Major)
		}
		if agentDir, err = writeAgent(); err != nil {
			return nil, err
		}
		main = filepath.Join(agentDir, agentFileName)
	}

	proc, err := StartJavaProcess(env.JavaPath, args, main, nil)
	if err != nil {
		if agentDir != "" {
			os.RemoveAll(agentDir)
		}
		return nil, wrapError(PhaseBootstrap, KindRuntimeStart, err, "start %s", env.JavaPath)
	}
	if agentDir != "" {
		proc.cleanup = func() { os.RemoveAll(agentDir) }
	}

	space := NewRemoteSpace(NewMsgpackTransport(proc.Stdout, proc.Stdin), callTimeout)
	space.proc = proc
	return space, nil
}

// writeAgent puts the embedded agent source into a fresh temporary directory.
func writeAgent() (string, error) {
	dir, err := os.MkdirTemp("", "gostallone-agent-")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, agentFileName), agentSource, 0o644); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}
