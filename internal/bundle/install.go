package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/andrewcai8/agentswarm/internal/fsutil"
	"github.com/andrewcai8/agentswarm/internal/layout"
	"github.com/andrewcai8/agentswarm/internal/logging"
)

const (
	DefaultBaseURL  = "https://github.com"
	DefaultRepo     = "andrewcai8/longshot"
	DefaultTimeout  = 120 * time.Second
	DefaultMaxBytes = 2 << 30 // 2 GiB
	bundleName      = "longshot-runtime"
)

// Options configure an Installer.
type Options struct {
	CacheRoot string
	BaseURL   string // release host; DefaultBaseURL when empty
	Repo      string // owner/name; DefaultRepo when empty
	URL       string // full bundle URL; overrides BaseURL and Repo
	Timeout   time.Duration
	MaxBytes  int64 // cap on download and extracted size
	UserAgent string

	HTTPClient *http.Client
	Logger     *log.Logger
}

// Installer installs runtime bundles into a cache root.
type Installer struct {
	opts   Options
	client *http.Client
	logger *log.Logger
}

// NewInstaller creates an Installer, filling unset options with defaults.
func NewInstaller(opts Options) *Installer {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Repo == "" {
		opts.Repo = DefaultRepo
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Installer{opts: opts, client: client, logger: logger}
}

// ReleaseURL returns the URL the bundle for tag is fetched from.
func (i *Installer) ReleaseURL(tag string) string {
	if i.opts.URL != "" {
		return i.opts.URL
	}
	return fmt.Sprintf("%s/%s/releases/download/v%s/%s-v%s.tar.gz",
		strings.TrimRight(i.opts.BaseURL, "/"), strings.Trim(i.opts.Repo, "/"), tag, bundleName, tag)
}

// EnsureInstalled returns the cached runtime for tag, downloading and installing it first if the cache has no valid
// copy. A cache directory missing its entry point or assets is rebuilt from scratch.
func (i *Installer) EnsureInstalled(ctx context.Context, tag string) (Descriptor, error) {
	tag, err := layout.CleanTag(tag)
	if err != nil {
		return Descriptor{}, err
	}
	final := layout.VersionDir(i.opts.CacheRoot, tag)
	if layout.IsRuntimeRoot(final) {
		i.logger.Debug("runtime cache hit", "version", tag, "root", final)
		return NewDescriptor(tag, final, false), nil
	}

	if err := layout.EnsureDir(i.opts.CacheRoot); err != nil {
		return Descriptor{}, fmt.Errorf("create runtime cache: %w", err)
	}
	staging := layout.StagingDir(i.opts.CacheRoot, tag)
	if err := os.RemoveAll(staging); err != nil {
		return Descriptor{}, fmt.Errorf("clear staging directory: %w", err)
	}
	if err := layout.EnsureDir(staging); err != nil {
		return Descriptor{}, fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			i.logger.Warn("could not remove staging directory", "path", staging, "err", err)
		}
	}()

	url := i.ReleaseURL(tag)
	archive := filepath.Join(staging, layout.ArchiveName)
	i.logger.Info("downloading runtime bundle", "version", tag, "url", url)
	if err := i.download(ctx, url, archive); err != nil {
		return Descriptor{}, fmt.Errorf("%w from %s; set %s to a reachable bundle URL or install from source (%w)",
			ErrDownload, url, RuntimeURLEnv, err)
	}

	extracted := filepath.Join(staging, layout.ExtractedDir)
	if err := fsutil.ExtractTarGz(archive, extracted, i.opts.MaxBytes); err != nil {
		return Descriptor{}, fmt.Errorf("extract runtime bundle: %w", err)
	}
	root, err := FindRoot(extracted)
	if err != nil {
		return Descriptor{}, err
	}
	if err := i.replace(root, final, staging); err != nil {
		return Descriptor{}, err
	}
	i.logger.Info("installed runtime bundle", "version", tag, "root", final)
	return NewDescriptor(tag, final, false), nil
}

func (i *Installer) download(ctx context.Context, url, dst string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, i.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if i.opts.UserAgent != "" {
		req.Header.Set("User-Agent", i.opts.UserAgent)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	n, err := io.Copy(f, io.LimitReader(resp.Body, i.opts.MaxBytes+1))
	if err != nil {
		return err
	}
	if n > i.opts.MaxBytes {
		return fmt.Errorf("bundle exceeds %d bytes", i.opts.MaxBytes)
	}
	return nil
}

// replace moves root to final. An existing final directory is moved aside into staging first and restored if the
// rename fails, so final is always either the old tree or the complete new one.
func (i *Installer) replace(root, final, staging string) error {
	previous := ""
	if _, err := os.Lstat(final); err == nil {
		previous = filepath.Join(staging, layout.PreviousDir)
		if err := os.Rename(final, previous); err != nil {
			return fmt.Errorf("move aside existing runtime: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.Rename(root, final); err != nil {
		// Another installer may have won the race.
		if layout.IsRuntimeRoot(final) {
			i.logger.Debug("runtime installed concurrently", "root", final)
			return nil
		}
		if previous != "" {
			if restoreErr := os.Rename(previous, final); restoreErr != nil {
				i.logger.Warn("could not restore previous runtime", "path", final, "err", restoreErr)
			}
		}
		return fmt.Errorf("install runtime: %w", err)
	}
	return nil
}

// FindRoot locates the runtime root inside an extracted bundle: the conventional "runtime" directory first, then the
// first directory in lexical walk order (including extracted itself) that holds the entry point.
func FindRoot(extracted string) (string, error) {
	direct := filepath.Join(extracted, layout.ConventionalDir)
	if layout.HasEntryPoint(direct) {
		return direct, nil
	}

	found := ""
	err := filepath.WalkDir(extracted, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if layout.HasEntryPoint(path) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search extracted bundle: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: no %s in downloaded bundle", ErrMissingEntrypoint, filepath.ToSlash(layout.EntryPoint))
	}
	return found, nil
}
