// Package deps materializes the third-party dependencies of an installed runtime bundle.
package deps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/andrewcai8/agentswarm/internal/layout"
	"github.com/andrewcai8/agentswarm/internal/logging"
)

var (
	// ErrToolMissing reports that the package manager executable could not be found.
	ErrToolMissing = errors.New("package manager not found")
	// ErrInstallFailed reports a package manager run that exited non-zero.
	ErrInstallFailed = errors.New("failed to install longshot runtime dependencies")
)

// RequiredArtifacts are the paths, relative to a runtime root, whose presence means dependencies are installed.
var RequiredArtifacts = []string{
	filepath.Join("node_modules", "@longshot", "core", "dist", "index.js"),
	filepath.Join("node_modules", "@mariozechner", "pi-coding-agent"),
	filepath.Join("node_modules", "dotenv"),
}

// InstallArgs are passed to the package manager: production dependencies only, no audit or funding side effects.
var InstallArgs = []string{"install", "--omit=dev", "--no-audit", "--no-fund"}

// Manifest is the dependency manifest written into a runtime root that has none.
type Manifest struct {
	Name         string            `json:"name"`
	Private      bool              `json:"private"`
	Type         string            `json:"type"`
	Dependencies map[string]string `json:"dependencies"`
}

// DefaultManifest returns the manifest for the runtime's own dependencies.
func DefaultManifest() Manifest {
	return Manifest{
		Name:    "longshot-runtime",
		Private: true,
		Type:    "module",
		Dependencies: map[string]string{
			"@longshot/core":                "file:./packages/core",
			"@mariozechner/pi-coding-agent": "^0.52.0",
			"dotenv":                        "^17.3.1",
		},
	}
}

// CommandRunner runs a helper command in dir with its output shown to the operator, and announces what it is doing.
type CommandRunner interface {
	Appf(format string, args ...any) error
	RunCommandStreaming(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

var lookPath = exec.LookPath

// Bootstrapper installs runtime dependencies with a package manager.
type Bootstrapper struct {
	packageManager string
	runner         CommandRunner
	logger         *log.Logger
}

// NewBootstrapper creates a Bootstrapper that invokes packageManager (e.g. "npm") through runner.
func NewBootstrapper(packageManager string, runner CommandRunner, logger *log.Logger) *Bootstrapper {
	if packageManager == "" {
		packageManager = "npm"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bootstrapper{packageManager: packageManager, runner: runner, logger: logger}
}

// EnsureDependencies is a no-op when every required artifact exists under root. Otherwise it writes the manifest if
// root has none and runs the package manager's install step in root.
func (b *Bootstrapper) EnsureDependencies(ctx context.Context, root string) error {
	missing := Missing(root)
	if len(missing) == 0 {
		b.logger.Debug("runtime dependencies present", "root", root)
		return nil
	}
	b.logger.Debug("runtime dependencies missing", "root", root, "missing", missing)

	written, err := WriteManifest(root)
	if err != nil {
		return err
	}
	if !written {
		b.logger.Debug("keeping existing dependency manifest", "path", layout.ManifestPath(root))
	}

	tool, err := lookPath(b.packageManager)
	if err != nil {
		return fmt.Errorf("%w: %s is required for longshot runtime bootstrap", ErrToolMissing, b.packageManager)
	}
	if err := b.runner.Appf("Installing longshot runtime dependencies in %s", root); err != nil {
		b.logger.Debug("announce dependency install", "err", err)
	}
	if _, err := b.runner.RunCommandStreaming(ctx, root, tool, InstallArgs...); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w (exit %d)", ErrInstallFailed, exitErr.ExitCode())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s is required for longshot runtime bootstrap", ErrToolMissing, b.packageManager)
		}
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	if err := b.runner.Appf("Runtime dependencies installed."); err != nil {
		b.logger.Debug("announce dependency install", "err", err)
	}
	return nil
}

// Missing returns the required artifacts absent under root.
func Missing(root string) []string {
	var missing []string
	for _, rel := range RequiredArtifacts {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			missing = append(missing, rel)
		}
	}
	return missing
}

// WriteManifest writes DefaultManifest to root unless a manifest already exists there. An existing manifest is never
// overwritten, even if its dependencies differ from the defaults.
func WriteManifest(root string) (written bool, err error) {
	path := layout.ManifestPath(root)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("check dependency manifest: %w", err)
	}

	data, err := json.MarshalIndent(DefaultManifest(), "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return false, fmt.Errorf("write dependency manifest: %w", err)
	}
	return true, nil
}
