package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cmb-fu/gostallone"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "stallonectl: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	logLevel   string

	// launcher replaces the JVM launcher when set
	launcher stallone.Launcher

	cfg stallone.Config
}

func newRootCmd(launcher stallone.Launcher) *cobra.Command {
	a := &app{launcher: launcher}

	root := &cobra.Command{
		Use:               "stallonectl",
		Short:             "Inspect and smoke-test the Stallone Java runtime",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides the configuration")

	root.AddCommand(a.classpathCmd(), a.envCmd(), a.smokeCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := stallone.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	logger, err := stallone.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	stallone.SetLogger(logger)
	a.cfg = cfg
	return nil
}

func (a *app) classpathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classpath [-- jvm-args...]",
		Short: "Print the JVM arguments with the archive on the class path",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.Options()
			archive, err := stallone.FindArchive(opts.ArchiveDir, opts.ArchiveName)
			if err != nil {
				return err
			}
			jvmArgs := append(opts.Args, args...)
			for _, arg := range stallone.ExtendClassPath(jvmArgs, archive, stallone.PathListSeparator) {
				fmt.Fprintln(cmd.OutOrStdout(), arg)
			}
			return nil
		},
	}
}

func (a *app) envCmd() *cobra.Command {
	var freeze string
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the detected Java runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := stallone.NewJavaEnvironment(cmd.Context(), a.cfg.Options().JavaPath)
			if err != nil {
				return err
			}
			var rt stallone.Runtime = env
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:    %s\n", rt.Name())
			fmt.Fprintf(out, "version: %s\n", env.JavaVersion.String())
			fmt.Fprintf(out, "java:    %s\n", env.JavaPath)
			fmt.Fprintf(out, "home:    %s\n", rt.Path())
			if freeze != "" {
				if err := rt.Freeze(freeze); err != nil {
					return err
				}
				fmt.Fprintf(out, "written: %s\n", freeze)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&freeze, "freeze", "", "also write the environment as JSON to this file")
	return cmd
}

func (a *app) smokeCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Start the runtime and build a Stallone array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := a.cfg.Options()
			opts.Launcher = a.launcher

			sess, err := stallone.Initialize(ctx, opts)
			if err != nil {
				return err
			}
			defer sess.Close()

			doubles, err := sess.API().Object(ctx, "doublesNew")
			if err != nil {
				return err
			}
			arr, err := doubles.Object(ctx, "array", size)
			if err != nil {
				return err
			}
			defer arr.Release(ctx)

			got, err := arr.Int(ctx, "size")
			if err != nil {
				return err
			}
			class, err := arr.Class(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archive: %s\n", sess.Archive())
			fmt.Fprintf(out, "args:    %s\n", strings.Join(sess.Args(), " "))
			fmt.Fprintf(out, "array:   %s size %d\n", class, got)
			if got != size {
				return fmt.Errorf("array has size %d, want %d", got, size)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "size of the test array")
	return cmd
}
