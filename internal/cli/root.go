package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/andrewcai8/agentswarm/internal/config"
)

// Version is the release version (set via -ldflags).
var Version = "dev"

// Execute runs the CLI and returns the error that decides the exit code (see ExitCode).
func Execute() error {
	return fang.Execute(
		context.Background(),
		newRootCmd(os.Stdout, os.Stderr),
		fang.WithVersion(cliVersion()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(errorHandler),
	)
}

// cliVersion is Version, or the main module version recorded by the toolchain for `go install` builds.
func cliVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}

func errorHandler(w io.Writer, styles fang.Styles, err error) {
	if silent(err) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

type rootFlags struct {
	dashboard  bool
	reset      bool
	debug      bool
	configFile string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags rootFlags
	root := silenceUsageAndErrors(&cobra.Command{
		Use:   "longshot <request>",
		Short: "Run the longshot orchestrator on a request.",
		Long: `Run the longshot orchestrator on a free-text request.

The runtime bundle matching this CLI version is downloaded on first use and
cached; its Node dependencies are installed when missing. The orchestrator's
structured log stream is rendered live until it exits or the run is interrupted.`,
		Args: cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFile("")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), session{
				request:    args[0],
				dashboard:  flags.dashboard,
				reset:      flags.reset,
				debug:      flags.debug,
				configFile: flags.configFile,
				stdout:     stdout,
				stderr:     stderr,
			})
		},
	})
	root.Flags().BoolVar(&flags.dashboard, "dashboard", false, "stream the run to the dashboard")
	root.Flags().BoolVar(&flags.reset, "reset", false, "reset the target repo to its initial commit before running")
	root.Flags().BoolVar(&flags.debug, "debug", false, "verbose output and LOG_LEVEL=debug for the orchestrator")
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/longshot/config.yml)")

	root.AddCommand(newConfigCmd(stdout, &flags))
	return root
}

func newConfigCmd(stdout io.Writer, flags *rootFlags) *cobra.Command {
	return silenceUsageAndErrors(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.Load(config.LoadOptions{ConfigFilePath: flags.configFile})
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			source := path
			if source == "" {
				source = "(defaults and environment)"
			}
			if _, err := fmt.Fprintf(stdout, "# source: %s\n", source); err != nil {
				return err
			}
			_, err = stdout.Write(data)
			return err
		},
	})
}

func silenceUsageAndErrors(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}
