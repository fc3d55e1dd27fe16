package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-shellwords"

	"github.com/andrewcai8/agentswarm/internal/ansi"
	"github.com/andrewcai8/agentswarm/internal/bundle"
	"github.com/andrewcai8/agentswarm/internal/config"
	"github.com/andrewcai8/agentswarm/internal/deps"
	"github.com/andrewcai8/agentswarm/internal/layout"
	"github.com/andrewcai8/agentswarm/internal/logging"
	"github.com/andrewcai8/agentswarm/internal/output"
	"github.com/andrewcai8/agentswarm/internal/render"
	"github.com/andrewcai8/agentswarm/internal/supervise"
)

// These function variables allow tests to stub external dependencies.
var (
	installRoot  = bundle.InstallRoot
	colorProfile = ansi.GetColorProfile
	getwd        = os.Getwd
	newEnsurer   = func(cfg *config.Config, version string, logger *log.Logger) bundle.Ensurer {
		return bundle.NewInstaller(bundle.Options{
			CacheRoot: cfg.CacheDir,
			BaseURL:   cfg.ReleaseBaseURL,
			Repo:      cfg.ReleaseRepo,
			URL:       cfg.RuntimeURL,
			Timeout:   cfg.DownloadTimeout,
			UserAgent: "longshot/" + version,
			Logger:    logger,
		})
	}
	superviseRun = func(ctx context.Context, opts supervise.Options) (supervise.ShutdownState, error) {
		return supervise.New(opts).Run(ctx)
	}
)

// session holds everything one invocation of the root command needs.
type session struct {
	request    string
	dashboard  bool
	reset      bool
	debug      bool
	configFile string
	stdout     io.Writer
	stderr     io.Writer
}

// runSession resolves and bootstraps the runtime, optionally resets the target repo, then supervises the orchestrator
// until it exits or ctx is canceled. A cancellation before the orchestrator starts is a clean exit.
func runSession(ctx context.Context, s session) error {
	cfg, cfgPath, err := config.Load(config.LoadOptions{ConfigFilePath: s.configFile})
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Out: s.stderr, Debug: s.debug})
	if cfgPath != "" {
		logger.Debug("loaded config file", "path", cfgPath)
	}
	profile := colorProfile()
	renderer := render.New(s.stdout, render.Options{Debug: s.debug, Profile: profile})
	printer := output.NewPrinter(s.stdout, profile)

	root, err := installRoot()
	if err != nil {
		logger.Debug("install root unavailable; skipping development checkout detection", "err", err)
		root = ""
	}
	version := cliVersion()
	desc, err := bundle.Resolve(ctx, root, version, newEnsurer(cfg, version, logger))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	logger.Debug("runtime resolved", "version", desc.Version, "root", desc.Root, "dev", desc.Dev)

	if !desc.Dev {
		if err := deps.NewBootstrapper(cfg.PackageManager, printer, logger).EnsureDependencies(ctx, desc.Root); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}

	workDir, err := getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	renderer.Header(render.Header{Request: s.request, WorkDir: workDir, Runtime: desc.Root, Debug: s.debug})

	if s.reset {
		renderer.ResetStarted()
		code, err := resetTarget(ctx, printer, workDir, desc.Root)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if code != 0 {
			renderer.ResetFailed(code)
			return &ExitError{Code: code}
		}
		renderer.ResetSucceeded()
	}

	var secondary []string
	if s.dashboard {
		secondary, err = dashboardCommand(cfg.DashboardCommand, root)
		if err != nil {
			logger.Warn("dashboard disabled", "err", err)
		}
	}

	state, err := superviseRun(ctx, supervise.Options{
		Command:   []string{cfg.Node, desc.EntryPoint, s.request},
		Dir:       workDir,
		Env:       supervise.ChildEnv(os.Environ(), desc.Root, s.debug),
		Secondary: secondary,
		Grace:     cfg.ShutdownGrace,
		Renderer:  renderer,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("start orchestrator (%s %s): %w", cfg.Node, desc.EntryPoint, err)
	}
	logger.Debug("run finished", "reason", state.Reason, "exit", state.ExitCode(), "forced", state.ForcedKill)
	if code := state.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// resetTarget runs the runtime's reset script in workDir. It returns the script's exit code; err is set only when the
// script could not be run at all.
func resetTarget(ctx context.Context, printer *output.Printer, workDir, runtimeRoot string) (int, error) {
	_, err := printer.RunCommandStreaming(ctx, workDir, "bash", layout.ResetScriptPath(runtimeRoot))
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("run reset script: %w", err)
}

// dashboardCommand returns the dashboard argv: the configured command line if any, else the bundled script next to
// the executable.
func dashboardCommand(configured, installRoot string) ([]string, error) {
	if configured == "" {
		if installRoot == "" {
			return nil, errors.New("no dashboard command configured and install root is unknown")
		}
		return []string{"python3", layout.DashboardScriptPath(installRoot), "--stdin"}, nil
	}
	argv, err := shellwords.Parse(configured)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard command %q: %w", configured, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("dashboard command %q is empty", configured)
	}
	return argv, nil
}
