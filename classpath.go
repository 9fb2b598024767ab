package stallone

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultArchiveName is the file name of the library archive.
const DefaultArchiveName = "stallone-1.0-SNAPSHOT-jar-with-dependencies.jar"

const classPathProperty = "-Djava.class.path="

// PathListSeparator separates class path entries: ':' on POSIX hosts and ';'
// elsewhere.
var PathListSeparator = pathListSeparator(runtime.GOOS)

func pathListSeparator(goos string) string {
	if goos == "windows" {
		return ";"
	}
	return ":"
}

// ExtendClassPath returns args with archive added to the class path.
//
// The first argument containing -Djava.class.path= has sep and archive
// appended to its path list; anything before the property and anything from
// the first space after the path list on is kept as is. Failing that, a -cp
// or -classpath flag followed by its value has the value extended. Failing
// both, -Djava.class.path=<archive> is appended. args is not modified.
func ExtendClassPath(args []string, archive, sep string) []string {
	out := make([]string, len(args), len(args)+1)
	copy(out, args)

	for i, arg := range out {
		idx := strings.Index(arg, classPathProperty)
		if idx < 0 {
			continue
		}
		end := len(arg)
		if p := strings.IndexByte(arg[idx:], ' '); p > 0 {
			end = idx + p
		}
		out[i] = arg[:end] + sep + archive + arg[end:]
		return out
	}

	for i := 0; i+1 < len(out); i++ {
		if out[i] == "-cp" || out[i] == "-classpath" {
			if out[i+1] == "" {
				out[i+1] = archive
			} else {
				out[i+1] = out[i+1] + sep + archive
			}
			return out
		}
	}

	return append(out, classPathProperty+archive)
}

// InstallDir is the directory holding the running executable, where the
// archive is looked up when no directory is configured.
func InstallDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// FindArchive returns the absolute path of name inside dir. An empty dir means
// InstallDir and an empty name means DefaultArchiveName. A missing archive
// fails with KindMissingArchive, naming the expected location.
func FindArchive(dir, name string) (string, error) {
	if dir == "" {
		dir = InstallDir()
	}
	if name == "" {
		name = DefaultArchiveName
	}
	path := filepath.Join(dir, name)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(PhaseBootstrap, KindMissingArchive, "stallone archive not found, expected it here: %s", path)
		}
		return "", wrapError(PhaseBootstrap, KindMissingArchive, err, "stat %s", path)
	}
	if fi.IsDir() {
		return "", newError(PhaseBootstrap, KindMissingArchive, "stallone archive %s is a directory", path)
	}
	return path, nil
}
