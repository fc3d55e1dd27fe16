package fsutil

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrArchiveTooLarge reports an archive whose extracted contents exceed the size limit.
var ErrArchiveTooLarge = errors.New("archive contents exceed size limit")

// maxLinkHops bounds symlink resolution during validation; longer chains are treated as unsafe.
const maxLinkHops = 255

// ExtractTarGz extracts the gzip-compressed tar archive at archivePath into dest.
//
// Every member is validated before anything is written: names and link targets must resolve inside dest, following
// the symlinks declared earlier in the archive, or the whole extraction fails with ErrUnsafePath and dest is left
// untouched. Files are then written through an os.Root on dest, so nothing can land outside it even through a link.
// Directories, regular files, symlinks and hard links are extracted; other member types are skipped. maxBytes caps
// the total size of regular file contents (<= 0 means no cap).
func ExtractTarGz(archivePath, dest string, maxBytes int64) error {
	links := newLinkTable(dest)
	if err := walkTarGz(archivePath, func(hdr *tar.Header, _ io.Reader) error {
		return links.check(hdr)
	}); err != nil {
		return err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return err
	}
	defer root.Close()

	remaining := maxBytes
	return walkTarGz(archivePath, func(hdr *tar.Header, r io.Reader) error {
		name, err := links.memberName(hdr.Name)
		if err != nil {
			return fmt.Errorf("archive member %q: %w", hdr.Name, err)
		}
		target := filepath.FromSlash(name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			return root.MkdirAll(target, dirMode(hdr))
		case tar.TypeReg:
			if maxBytes > 0 {
				if hdr.Size > remaining {
					return fmt.Errorf("%w: %s", ErrArchiveTooLarge, hdr.Name)
				}
				remaining -= hdr.Size
			}
			return writeFile(root, target, r, hdr)
		case tar.TypeSymlink:
			if err := replaceable(root, target); err != nil {
				return err
			}
			return root.Symlink(hdr.Linkname, target)
		case tar.TypeLink:
			oldname, err := links.memberName(hdr.Linkname)
			if err != nil {
				return fmt.Errorf("archive member %q: link target: %w", hdr.Name, err)
			}
			if err := replaceable(root, target); err != nil {
				return err
			}
			return root.Link(filepath.FromSlash(oldname), target)
		default:
			return nil
		}
	})
}

// linkTable tracks the symlinks an archive has declared so far, keyed by their resolved slash-separated location
// relative to dest, so that later members are checked against what the filesystem will look like when they are
// written.
type linkTable struct {
	dest  string
	links map[string]string
}

func newLinkTable(dest string) *linkTable {
	return &linkTable{dest: dest, links: map[string]string{}}
}

// memberName returns the cleaned, slash-separated form of an archive path, or ErrUnsafePath if it is absolute or
// climbs out of dest lexically.
func (lt *linkTable) memberName(raw string) (string, error) {
	name := strings.ReplaceAll(raw, `\`, "/")
	if _, err := SafeJoin(lt.dest, filepath.FromSlash(name)); err != nil {
		return "", err
	}
	return path.Clean(name), nil
}

// check validates hdr against the links declared before it and records it if it is a link.
func (lt *linkTable) check(hdr *tar.Header) error {
	reject := func(format string, args ...any) error {
		return fmt.Errorf("archive member %q: %w: %s", hdr.Name, ErrUnsafePath, fmt.Sprintf(format, args...))
	}
	name, err := lt.memberName(hdr.Name)
	if err != nil {
		return fmt.Errorf("archive member %q: %w", hdr.Name, err)
	}

	switch hdr.Typeflag {
	case tar.TypeDir, tar.TypeReg:
		if _, err := lt.resolve(name, true); err != nil {
			return reject("%v", err)
		}
	case tar.TypeSymlink:
		if name == "." {
			return reject("symlink replaces the base directory")
		}
		key, err := lt.resolveParent(name)
		if err != nil {
			return reject("%v", err)
		}
		if err := lt.checkLink(key, hdr.Linkname); err != nil {
			return reject("link target %q: %v", hdr.Linkname, err)
		}
		lt.links[key] = hdr.Linkname
	case tar.TypeLink:
		if name == "." {
			return reject("hard link replaces the base directory")
		}
		key, err := lt.resolveParent(name)
		if err != nil {
			return reject("%v", err)
		}
		oldname, err := lt.memberName(hdr.Linkname)
		if err != nil {
			return fmt.Errorf("archive member %q: link target: %w", hdr.Name, err)
		}
		old, err := lt.resolveParent(oldname)
		if err != nil {
			return reject("link target %q: %v", hdr.Linkname, err)
		}
		// A hard link to a symlink is a second symlink with the same text in a new place.
		if text, ok := lt.links[old]; ok {
			if err := lt.checkLink(key, text); err != nil {
				return reject("link target %q: %v", hdr.Linkname, err)
			}
			lt.links[key] = text
		} else {
			delete(lt.links, key)
		}
	}
	return nil
}

// checkLink reports whether a symlink at key with the given text resolves inside dest.
func (lt *linkTable) checkLink(key, text string) error {
	text = strings.ReplaceAll(text, `\`, "/")
	if path.IsAbs(text) || filepath.IsAbs(filepath.FromSlash(text)) {
		return errors.New("absolute link target")
	}
	p := text
	if dir := path.Dir(key); dir != "." {
		p = dir + "/" + text
	}
	_, err := lt.resolve(p, true)
	return err
}

// resolveParent resolves every component of name but the last.
func (lt *linkTable) resolveParent(name string) (string, error) {
	dir, base := path.Split(name)
	parent, err := lt.resolve(dir, true)
	if err != nil {
		return "", err
	}
	return path.Join(parent, base), nil
}

// resolve walks p one component at a time, substituting recorded symlinks (the last component only when followLast),
// and fails if any step climbs above dest. The result is relative to dest.
func (lt *linkTable) resolve(p string, followLast bool) (string, error) {
	parts := strings.Split(p, "/")
	var resolved []string
	hops := 0
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "", ".":
			continue
		case "..":
			if len(resolved) == 0 {
				return "", errors.New("escapes base directory")
			}
			resolved = resolved[:len(resolved)-1]
			continue
		}
		cur := path.Join(append(append([]string(nil), resolved...), parts[i])...)
		text, isLink := lt.links[cur]
		if isLink && (i < len(parts)-1 || followLast) {
			hops++
			if hops > maxLinkHops {
				return "", errors.New("too many levels of symbolic links")
			}
			if path.IsAbs(text) {
				return "", errors.New("absolute link target")
			}
			parts = append(strings.Split(text, "/"), parts[i+1:]...)
			i = -1
			continue
		}
		resolved = append(resolved, parts[i])
	}
	if len(resolved) == 0 {
		return ".", nil
	}
	return path.Join(resolved...), nil
}

func walkTarGz(archivePath string, fn func(hdr *tar.Header, r io.Reader) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// replaceable creates the parent of name and removes whatever is at name itself.
func replaceable(root *os.Root, name string) error {
	if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	if err := root.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func writeFile(root *os.Root, name string, r io.Reader, hdr *tar.Header) (err error) {
	if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	f, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode(hdr))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if _, err := io.Copy(f, io.LimitReader(r, hdr.Size)); err != nil {
		return fmt.Errorf("extract %s: %w", hdr.Name, err)
	}
	return nil
}

func fileMode(hdr *tar.Header) os.FileMode {
	mode := hdr.FileInfo().Mode().Perm()
	if mode == 0 {
		return 0o644
	}
	return mode | 0o200
}

func dirMode(hdr *tar.Header) os.FileMode {
	return hdr.FileInfo().Mode().Perm() | 0o700
}
