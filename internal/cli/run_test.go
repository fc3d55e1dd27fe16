package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewcai8/agentswarm/internal/ansi"
	"github.com/andrewcai8/agentswarm/internal/bundle"
	"github.com/andrewcai8/agentswarm/internal/config"
	"github.com/andrewcai8/agentswarm/internal/deps"
	"github.com/andrewcai8/agentswarm/internal/layout"
	"github.com/andrewcai8/agentswarm/internal/supervise"
)

type fakeEnsurer struct {
	desc  bundle.Descriptor
	err   error
	calls int
}

func (f *fakeEnsurer) EnsureInstalled(ctx context.Context, tag string) (bundle.Descriptor, error) {
	f.calls++
	return f.desc, f.err
}

type harness struct {
	installRoot string
	workDir     string
	stdout      *bytes.Buffer
	stderr      *bytes.Buffer
	ensurer     *fakeEnsurer
	runs        []supervise.Options
	state       supervise.ShutdownState
	runErr      error
}

// newHarness stubs every external seam of runSession. The install root starts out empty, i.e. not a development
// checkout.
func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{"cache_dir", "runtime_url", "node", "package_manager", "dashboard_command", "shutdown_grace"} {
		t.Setenv(config.EnvVar(key), "")
		require.NoError(t, os.Unsetenv(config.EnvVar(key)))
	}

	h := &harness{
		installRoot: t.TempDir(),
		workDir:     t.TempDir(),
		stdout:      &bytes.Buffer{},
		stderr:      &bytes.Buffer{},
		ensurer:     &fakeEnsurer{},
	}

	origInstallRoot, origProfile, origGetwd := installRoot, colorProfile, getwd
	origEnsurer, origRun := newEnsurer, superviseRun
	t.Cleanup(func() {
		installRoot, colorProfile, getwd = origInstallRoot, origProfile, origGetwd
		newEnsurer, superviseRun = origEnsurer, origRun
	})

	installRoot = func() (string, error) { return h.installRoot, nil }
	colorProfile = func() ansi.ColorProfile { return ansi.ColorProfileUncolored }
	getwd = func() (string, error) { return h.workDir, nil }
	newEnsurer = func(cfg *config.Config, version string, logger *log.Logger) bundle.Ensurer { return h.ensurer }
	superviseRun = func(ctx context.Context, opts supervise.Options) (supervise.ShutdownState, error) {
		h.runs = append(h.runs, opts)
		return h.state, h.runErr
	}
	return h
}

func (h *harness) session(request string) session {
	return session{request: request, stdout: h.stdout, stderr: h.stderr}
}

func makeRuntime(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(layout.EntryPointPath(root)), 0o755))
	require.NoError(t, os.WriteFile(layout.EntryPointPath(root), []byte("// entry\n"), 0o644))
	require.NoError(t, os.MkdirAll(layout.AssetsPath(root), 0o755))
}

func makeInstalledDeps(t *testing.T, root string) {
	t.Helper()
	for i, rel := range deps.RequiredArtifacts {
		p := filepath.Join(root, rel)
		if i == 0 {
			require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
			require.NoError(t, os.WriteFile(p, []byte("export {}\n"), 0o644))
			continue
		}
		require.NoError(t, os.MkdirAll(p, 0o755))
	}
}

func writeResetScript(t *testing.T, root, body string) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	p := layout.ResetScriptPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o755))
}

func TestRunSessionDevCheckoutLaunchesOrchestrator(t *testing.T) {
	h := newHarness(t)
	makeRuntime(t, h.installRoot)

	err := runSession(context.Background(), h.session("build a thing"))
	require.NoError(t, err)

	assert.Equal(t, 0, h.ensurer.calls, "development checkout must not install a bundle")
	require.Len(t, h.runs, 1)
	opts := h.runs[0]
	assert.Equal(t, []string{"node", layout.EntryPointPath(h.installRoot), "build a thing"}, opts.Command)
	assert.Equal(t, h.workDir, opts.Dir)
	assert.Contains(t, opts.Env, supervise.PromptsRootEnv+"="+h.installRoot)
	assert.NotContains(t, opts.Env, supervise.LogLevelEnv+"=debug")
	assert.Nil(t, opts.Secondary)
	assert.Equal(t, 10*time.Second, opts.Grace)
	assert.NotNil(t, opts.Renderer)

	out := h.stdout.String()
	assert.Contains(t, out, "▶ Longshot")
	assert.Contains(t, out, "build a thing")
	assert.Contains(t, out, h.installRoot)
}

func TestRunSessionDebugSetsChildLogLevel(t *testing.T) {
	h := newHarness(t)
	makeRuntime(t, h.installRoot)
	s := h.session("x")
	s.debug = true

	require.NoError(t, runSession(context.Background(), s))
	require.Len(t, h.runs, 1)
	assert.Contains(t, h.runs[0].Env, supervise.LogLevelEnv+"=debug")
	assert.Contains(t, h.stdout.String(), "Debug:")
}

func TestRunSessionPropagatesChildExitCode(t *testing.T) {
	h := newHarness(t)
	makeRuntime(t, h.installRoot)
	h.state = supervise.ShutdownState{Reason: supervise.ReasonChildExit, ChildExitCode: 3}

	err := runSession(context.Background(), h.session("x"))
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
	assert.True(t, silent(err))
}

func TestRunSessionSignalShutdownExitsZero(t *testing.T) {
	h := newHarness(t)
	makeRuntime(t, h.installRoot)
	h.state = supervise.ShutdownState{Reason: supervise.ReasonSignal, ChildExitCode: 143}

	require.NoError(t, runSession(context.Background(), h.session("x")))
}

func TestRunSessionStartFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	makeRuntime(t, h.installRoot)
	h.runErr = exec.ErrNotFound

	err := runSession(context.Background(), h.session("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.ErrorContains(t, err, "start orchestrator")
	assert.Equal(t, 1, ExitCode(err))
}

func TestRunSessionInstalledBundleWithDependencies(t *testing.T) {
	h := newHarness(t)
	runtimeRoot := t.TempDir()
	makeRuntime(t, runtimeRoot)
	makeInstalledDeps(t, runtimeRoot)
	h.ensurer.desc = bundle.NewDescriptor("1.2.3", runtimeRoot, false)

	require.NoError(t, runSession(context.Background(), h.session("x")))
	assert.Equal(t, 1, h.ensurer.calls)
	require.Len(t, h.runs, 1)
	assert.Equal(t, layout.EntryPointPath(runtimeRoot), h.runs[0].Command[1])
	assert.Contains(t, h.runs[0].Env, supervise.PromptsRootEnv+"="+runtimeRoot)
}

func TestRunSessionMissingPackageManager(t *testing.T) {
	h := newHarness(t)
	t.Setenv(config.EnvVar("package_manager"), "longshot-no-such-npm")
	runtimeRoot := t.TempDir()
	makeRuntime(t, runtimeRoot)
	h.ensurer.desc = bundle.NewDescriptor("1.2.3", runtimeRoot, false)

	err := runSession(context.Background(), h.session("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, deps.ErrToolMissing)
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, h.runs)
}

func TestRunSessionInstallFailure(t *testing.T) {
	h := newHarness(t)
	h.ensurer.err = errors.Join(bundle.ErrDownload, errors.New("connection refused"))

	err := runSession(context.Background(), h.session("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, bundle.ErrDownload)
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, h.runs)
	assert.NotContains(t, h.stdout.String(), "▶ Longshot")
}

func TestRunSessionSignalDuringBootstrapExitsZero(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.ensurer.err = context.Canceled

	require.NoError(t, runSession(ctx, h.session("x")))
	assert.Empty(t, h.runs)
}

func TestRunSessionResetFailureStopsBeforeLaunch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("reset script requires a POSIX shell")
	}
	h := newHarness(t)
	makeRuntime(t, h.installRoot)
	writeResetScript(t, h.installRoot, "#!/usr/bin/env bash\necho resetting\nexit 4\n")
	s := h.session("x")
	s.reset = true

	err := runSession(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))
	assert.Empty(t, h.runs)
	out := h.stdout.String()
	assert.Contains(t, out, "Resetting target repo")
	assert.Contains(t, out, "resetting")
	assert.Contains(t, out, "✗ Reset failed (exit code 4)")
}

func TestRunSessionResetRunsInWorkDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("reset script requires a POSIX shell")
	}
	h := newHarness(t)
	makeRuntime(t, h.installRoot)
	writeResetScript(t, h.installRoot, "#!/usr/bin/env bash\npwd > reset-ran\n")
	s := h.session("x")
	s.reset = true

	require.NoError(t, runSession(context.Background(), s))
	assert.FileExists(t, filepath.Join(h.workDir, "reset-ran"))
	assert.Contains(t, h.stdout.String(), "✓ Target repo reset to initial commit")
	assert.Len(t, h.runs, 1)
}

func TestRunSessionDashboardCommand(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		h := newHarness(t)
		makeRuntime(t, h.installRoot)
		s := h.session("x")
		s.dashboard = true

		require.NoError(t, runSession(context.Background(), s))
		require.Len(t, h.runs, 1)
		assert.Equal(t, []string{"python3", layout.DashboardScriptPath(h.installRoot), "--stdin"}, h.runs[0].Secondary)
	})

	t.Run("configured", func(t *testing.T) {
		h := newHarness(t)
		makeRuntime(t, h.installRoot)
		t.Setenv(config.EnvVar("dashboard_command"), `uv run "my dash.py" --stdin`)
		s := h.session("x")
		s.dashboard = true

		require.NoError(t, runSession(context.Background(), s))
		require.Len(t, h.runs, 1)
		assert.Equal(t, []string{"uv", "run", "my dash.py", "--stdin"}, h.runs[0].Secondary)
	})

	t.Run("unparseable command runs without dashboard", func(t *testing.T) {
		h := newHarness(t)
		makeRuntime(t, h.installRoot)
		t.Setenv(config.EnvVar("dashboard_command"), `python3 "unterminated`)
		s := h.session("x")
		s.dashboard = true

		require.NoError(t, runSession(context.Background(), s))
		require.Len(t, h.runs, 1)
		assert.Nil(t, h.runs[0].Secondary)
		assert.Contains(t, h.stderr.String(), "dashboard disabled")
	})
}

func TestDashboardCommandWithoutInstallRoot(t *testing.T) {
	_, err := dashboardCommand("", "")
	require.Error(t, err)

	argv, err := dashboardCommand("node dash.js", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"node", "dash.js"}, argv)
}
