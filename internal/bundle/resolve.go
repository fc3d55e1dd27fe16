package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"

	"github.com/andrewcai8/agentswarm/internal/layout"
)

// DevTag is the version tag used when the CLI carries no release version.
const DevTag = "dev"

// Ensurer installs a runtime for a version tag.
type Ensurer interface {
	EnsureInstalled(ctx context.Context, tag string) (Descriptor, error)
}

var (
	osExecutable = os.Executable
	evalSymlinks = filepath.EvalSymlinks
)

// Resolve returns the runtime to launch. A development checkout at installRoot wins without touching the network;
// otherwise the runtime for cliVersion is installed through ensurer.
func Resolve(ctx context.Context, installRoot, cliVersion string, ensurer Ensurer) (Descriptor, error) {
	tag := NormalizeTag(cliVersion)
	if installRoot != "" && layout.IsRuntimeRoot(installRoot) {
		return NewDescriptor(tag, installRoot, true), nil
	}
	return ensurer.EnsureInstalled(ctx, tag)
}

// NormalizeTag maps a CLI version to a release tag: "v1.2.3" and "1.2.3" become "1.2.3". Anything that is not a
// release semver (empty, "(devel)", pseudo-versions) becomes DevTag.
func NormalizeTag(version string) string {
	v := strings.TrimSpace(version)
	if v == "" {
		return DevTag
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || module.IsPseudoVersion(v) {
		return DevTag
	}
	return strings.TrimPrefix(semver.Canonical(v), "v")
}

// InstallRoot returns the directory holding the running executable, with symlinks resolved.
func InstallRoot() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("determine executable path: %w", err)
	}
	resolved, err := evalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks for %s: %w", p, err)
	}
	return filepath.Dir(resolved), nil
}
