package fsutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath reports a path that would resolve outside its base directory.
var ErrUnsafePath = errors.New("unsafe path")

// SafeJoin ensures the resulting path stays within base. Absolute rel values are rejected.
func SafeJoin(base, rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", fmt.Errorf("%w: %q is absolute", ErrUnsafePath, rel)
	}
	target := filepath.Join(base, filepath.Clean(rel))
	if !Within(base, target) {
		return "", fmt.Errorf("%w: %q escapes base directory", ErrUnsafePath, rel)
	}
	return target, nil
}

// Within reports whether target is base or lies beneath it. Both paths are compared lexically after making them
// absolute.
func Within(base, target string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
