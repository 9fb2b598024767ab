package stallone

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the configuration file.
const (
	EnvJavaPath    = "STALLONE_JAVA_PATH"
	EnvJavaHome    = "STALLONE_JAVA_HOME"
	EnvArchiveDir  = "STALLONE_ARCHIVE_DIR"
	EnvArchiveName = "STALLONE_ARCHIVE_NAME"
	EnvAgentClass  = "STALLONE_AGENT_CLASS"
	EnvJVMArgs     = "STALLONE_JVM_ARGS"
	EnvIntWidth    = "STALLONE_INT_WIDTH"
	EnvCallTimeout = "STALLONE_CALL_TIMEOUT"
	EnvLogLevel    = "STALLONE_LOG_LEVEL"
)

// DefaultCallTimeout bounds bridge calls unless configured otherwise.
const DefaultCallTimeout = 30 * time.Second

// Config is the file and environment form of Options.
type Config struct {
	JavaPath    string
	JavaHome    string
	ArchiveDir  string
	ArchiveName string
	AgentClass  string
	JVMArgs     []string
	IntWidth    IntWidth
	CallTimeout time.Duration
	LogLevel    string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ArchiveName: DefaultArchiveName,
		JVMArgs:     []string{},
		IntWidth:    DefaultIntWidth,
		CallTimeout: DefaultCallTimeout,
		LogLevel:    "info",
	}
}

type fileConfig struct {
	JavaPath    string   `toml:"java_path"`
	JavaHome    string   `toml:"java_home"`
	ArchiveDir  string   `toml:"archive_dir"`
	ArchiveName string   `toml:"archive_name"`
	AgentClass  string   `toml:"agent_class"`
	JVMArgs     []string `toml:"jvm_args"`
	IntWidth    int      `toml:"int_width"`
	CallTimeout string   `toml:"call_timeout"`
	LogLevel    string   `toml:"log_level"`
}

// LoadConfig reads the TOML file at path over DefaultConfig, then applies the
// STALLONE_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, wrapError(PhaseConfig, KindConfig, err, "load config %s", path)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			Logger().Sugar().Warnf("unknown config keys in %s: %v", path, undecoded)
		}

		if meta.IsDefined("java_path") {
			cfg.JavaPath = strings.TrimSpace(raw.JavaPath)
		}
		if meta.IsDefined("java_home") {
			cfg.JavaHome = strings.TrimSpace(raw.JavaHome)
		}
		if meta.IsDefined("archive_dir") {
			cfg.ArchiveDir = strings.TrimSpace(raw.ArchiveDir)
		}
		if meta.IsDefined("archive_name") {
			if name := strings.TrimSpace(raw.ArchiveName); name != "" {
				cfg.ArchiveName = name
			}
		}
		if meta.IsDefined("agent_class") {
			if class := strings.TrimSpace(raw.AgentClass); class != "" {
				cfg.AgentClass = class
			}
		}
		if meta.IsDefined("jvm_args") {
			cfg.JVMArgs = normalizeArgs(raw.JVMArgs)
		}
		if meta.IsDefined("int_width") {
			cfg.IntWidth = IntWidth(raw.IntWidth)
		}
		if meta.IsDefined("call_timeout") {
			d, err := time.ParseDuration(strings.TrimSpace(raw.CallTimeout))
			if err != nil {
				return Config{}, wrapError(PhaseConfig, KindConfig, err, "parse call_timeout")
			}
			cfg.CallTimeout = d
		}
		if meta.IsDefined("log_level") {
			cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v, ok := lookupEnv(EnvJavaPath); ok {
		cfg.JavaPath = v
	}
	if v, ok := lookupEnv(EnvJavaHome); ok {
		cfg.JavaHome = v
	}
	if v, ok := lookupEnv(EnvArchiveDir); ok {
		cfg.ArchiveDir = v
	}
	if v, ok := lookupEnv(EnvArchiveName); ok {
		cfg.ArchiveName = v
	}
	if v, ok := lookupEnv(EnvAgentClass); ok {
		cfg.AgentClass = v
	}
	if v, ok := lookupEnv(EnvJVMArgs); ok {
		cfg.JVMArgs = strings.Fields(v)
	}
	if v, ok := lookupEnv(EnvIntWidth); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return wrapError(PhaseConfig, KindConfig, err, "parse %s", EnvIntWidth)
		}
		cfg.IntWidth = IntWidth(n)
	}
	if v, ok := lookupEnv(EnvCallTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return wrapError(PhaseConfig, KindConfig, err, "parse %s", EnvCallTimeout)
		}
		cfg.CallTimeout = d
	}
	if v, ok := lookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	return nil
}

// lookupEnv treats blank values as unset.
func lookupEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func normalizeArgs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, arg := range in {
		if v := strings.TrimSpace(arg); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks the values LoadConfig cannot check while decoding.
func (c Config) Validate() error {
	if _, err := c.IntWidth.normalize(); err != nil {
		return wrapError(PhaseConfig, KindConfig, err, "int_width")
	}
	if c.CallTimeout < 0 {
		return newError(PhaseConfig, KindConfig, "call_timeout must not be negative, got %s", c.CallTimeout)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return wrapError(PhaseConfig, KindConfig, err, "log_level")
	}
	return nil
}

// Options converts the configuration to bootstrap options. JavaHome is used
// only when JavaPath is empty.
func (c Config) Options() Options {
	javaPath := c.JavaPath
	if javaPath == "" && c.JavaHome != "" {
		javaPath = filepath.Join(c.JavaHome, "bin", javaExecutable())
	}
	args := make([]string, len(c.JVMArgs))
	copy(args, c.JVMArgs)
	return Options{
		JavaPath:    javaPath,
		Args:        args,
		ArchiveDir:  c.ArchiveDir,
		ArchiveName: c.ArchiveName,
		AgentClass:  c.AgentClass,
		IntWidth:    c.IntWidth,
		CallTimeout: c.CallTimeout,
	}
}
