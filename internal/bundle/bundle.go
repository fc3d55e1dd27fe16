// Package bundle resolves and installs the orchestrator runtime bundle.
//
// A runtime comes either from a development checkout next to the CLI executable or from a versioned cache directory
// populated by downloading a release archive. Installation is transactional: the archive is downloaded and extracted
// into a staging directory and only renamed into the cache once it is known to be complete.
package bundle

import (
	"errors"

	"github.com/andrewcai8/agentswarm/internal/fsutil"
	"github.com/andrewcai8/agentswarm/internal/layout"
)

// RuntimeURLEnv names the environment variable that overrides the full bundle URL. It appears in download errors as
// the remediation hint.
const RuntimeURLEnv = "LONGSHOT_RUNTIME_URL"

var (
	// ErrUnsafePath reports an archive member that would be written outside the staging directory.
	ErrUnsafePath = fsutil.ErrUnsafePath
	// ErrMissingEntrypoint reports an extracted bundle without the orchestrator entry point.
	ErrMissingEntrypoint = errors.New("bundle missing entrypoint")
	// ErrDownload reports a failed bundle download.
	ErrDownload = errors.New("unable to download longshot runtime bundle")
)

// Descriptor identifies a ready-to-launch runtime. It is immutable once resolved.
type Descriptor struct {
	Version    string
	Root       string
	EntryPoint string
	AssetsDir  string
	Dev        bool // development checkout; dependencies are managed by the developer
}

// NewDescriptor describes the runtime rooted at root.
func NewDescriptor(version, root string, dev bool) Descriptor {
	return Descriptor{
		Version:    version,
		Root:       root,
		EntryPoint: layout.EntryPointPath(root),
		AssetsDir:  layout.AssetsPath(root),
		Dev:        dev,
	}
}
