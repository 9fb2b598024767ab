package stallone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Runtime defines common operations for a language runtime installation.
type Runtime interface {
	// Name returns the runtime identifier.
	Name() string

	// Path returns the installation root.
	Path() string

	// BinPath returns the directory holding the executables.
	BinPath() string

	// Freeze serializes the environment to a file for reproducibility.
	Freeze(filePath string) error
}

// JavaEnvironment describes a Java installation found on the host.
type JavaEnvironment struct {
	// Implementation is the first word of "java -version", e.g. "openjdk".
	Implementation string `json:"implementation"`

	// JavaVersion is the detected runtime version.
	JavaVersion Version `json:"version"`

	// JavaPath is the full path to the java executable.
	JavaPath string `json:"java_path"`

	// JavaHome is the installation root, JAVA_HOME when the executable lives
	// under it.
	JavaHome string `json:"java_home"`

	// VersionOutput is the raw output of "java -version".
	VersionOutput string `json:"version_output"`
}

func (env *JavaEnvironment) Name() string {
	return env.Implementation + "-" + env.JavaVersion.String()
}

func (env *JavaEnvironment) Path() string {
	return env.JavaHome
}

func (env *JavaEnvironment) BinPath() string {
	return filepath.Dir(env.JavaPath)
}

// Freeze writes the environment as JSON to filePath.
func (env *JavaEnvironment) Freeze(filePath string) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, append(data, '\n'), 0o644)
}

func javaExecutable() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

// DefaultJVMPath locates the java executable: $JAVA_HOME/bin/java when it
// exists, otherwise java on PATH.
func DefaultJVMPath() (string, error) {
	if home := os.Getenv("JAVA_HOME"); home != "" {
		candidate := filepath.Join(home, "bin", javaExecutable())
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(javaExecutable())
	if err != nil {
		return "", wrapError(PhaseBootstrap, KindRuntimeStart, err, "no JVM found, set JAVA_HOME or put java on PATH")
	}
	return path, nil
}

// javaHomeOf derives the installation root from the executable.
func javaHomeOf(javaPath string) string {
	if home := os.Getenv("JAVA_HOME"); home != "" {
		if rel, err := filepath.Rel(home, javaPath); err == nil && !strings.HasPrefix(rel, "..") {
			return home
		}
	}
	resolved, err := filepath.EvalSymlinks(javaPath)
	if err != nil {
		resolved = javaPath
	}
	return filepath.Dir(filepath.Dir(resolved))
}

// NewJavaEnvironment inspects the java executable at javaPath, or the default
// JVM when javaPath is empty, by running "java -version".
func NewJavaEnvironment(ctx context.Context, javaPath string) (*JavaEnvironment, error) {
	if javaPath == "" {
		var err error
		if javaPath, err = DefaultJVMPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(javaPath); errors.Is(err, fs.ErrNotExist) {
		return nil, newError(PhaseBootstrap, KindRuntimeStart, "java executable %s does not exist", javaPath)
	}

	// java -version writes to stderr
	out, err := exec.CommandContext(ctx, javaPath, "-version").CombinedOutput()
	if err != nil {
		return nil, wrapError(PhaseBootstrap, KindRuntimeStart, err, "error getting Java version from %s", javaPath)
	}

	output := strings.TrimSpace(string(out))
	version, err := ParseJavaVersion(output)
	if err != nil {
		return nil, wrapError(PhaseBootstrap, KindRuntimeStart, err, "error parsing Java version")
	}

	impl := "java"
	if fields := strings.Fields(output); len(fields) > 0 {
		impl = fields[0]
	}

	return &JavaEnvironment{
		Implementation: impl,
		JavaVersion:    version,
		JavaPath:       javaPath,
		JavaHome:       javaHomeOf(javaPath),
		VersionOutput:  output,
	}, nil
}

func (env *JavaEnvironment) String() string {
	return fmt.Sprintf("%s %s (%s)", env.Implementation, env.JavaVersion.String(), env.JavaPath)
}
