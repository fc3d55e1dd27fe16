// Package layout holds the on-disk conventions of a runtime bundle and of the runtime cache.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths inside a runtime root.
var (
	EntryPoint      = filepath.Join("packages", "orchestrator", "dist", "main.js")
	AssetsDir       = "prompts"
	Manifest        = "package.json"
	ResetScript     = filepath.Join("scripts", "reset-target.sh")
	DashboardScript = "dashboard.py"
)

// Names used while installing a bundle.
const (
	StagingSuffix   = ".tmp"
	ArchiveName     = "runtime.tar.gz"
	ExtractedDir    = "extracted"
	ConventionalDir = "runtime"
	PreviousDir     = "previous"
)

// DefaultCacheDir is the cache root relative to the user's home directory.
var DefaultCacheDir = filepath.Join(".longshot", "runtime")

func EntryPointPath(root string) string {
	return filepath.Join(root, EntryPoint)
}

func AssetsPath(root string) string {
	return filepath.Join(root, AssetsDir)
}

func ManifestPath(root string) string {
	return filepath.Join(root, Manifest)
}

func ResetScriptPath(root string) string {
	return filepath.Join(root, ResetScript)
}

func DashboardScriptPath(root string) string {
	return filepath.Join(root, DashboardScript)
}

// VersionDir is the final install location for tag.
func VersionDir(cacheRoot, tag string) string {
	return filepath.Join(cacheRoot, tag)
}

// StagingDir is the install transaction directory for tag.
func StagingDir(cacheRoot, tag string) string {
	return filepath.Join(cacheRoot, tag+StagingSuffix)
}

// IsRuntimeRoot reports whether dir holds both the entry point and the assets directory.
func IsRuntimeRoot(dir string) bool {
	entry, err := os.Stat(EntryPointPath(dir))
	if err != nil || entry.IsDir() {
		return false
	}
	assets, err := os.Stat(AssetsPath(dir))
	return err == nil && assets.IsDir()
}

// HasEntryPoint reports whether dir holds the entry point file.
func HasEntryPoint(dir string) bool {
	info, err := os.Stat(EntryPointPath(dir))
	return err == nil && !info.IsDir()
}

// CleanTag ensures a version tag is usable as a single cache directory name.
func CleanTag(tag string) (string, error) {
	if tag == "" {
		return "", errors.New("version tag is required")
	}
	if tag == "." || tag == ".." || strings.ContainsAny(tag, `/\`) {
		return "", fmt.Errorf("version tag %q is not a valid directory name", tag)
	}
	if strings.HasSuffix(tag, StagingSuffix) {
		return "", fmt.Errorf("version tag %q collides with the staging directory suffix", tag)
	}
	return tag, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// DefaultCacheRoot returns ~/.longshot/runtime.
func DefaultCacheRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultCacheDir), nil
}

// EnsureDir makes sure dir exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
