// Package security confines every file the server touches to the single
// PDF directory it was started with. Escapes through "..", absolute
// paths or symlinks are refused before any file is opened.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator checks paths against the configured PDF root. The root
// may not exist when the validator is created; checks are skipped until
// it does, so a placeholder directory can be configured first and
// created later.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. The root is fixed
// to its absolute form once, at construction.
func NewPathValidator(dir string) (*PathValidator, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("pdf directory is required")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving pdf directory %q: %w", dir, err)
	}
	return &PathValidator{root: filepath.Clean(root)}, nil
}

// Root returns the absolute configured PDF root
func (v *PathValidator) Root() string {
	return v.root
}

// ValidatePath refuses paths that land outside the root
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	inside, err := v.IsWithinRoot(path)
	if err != nil {
		return err
	}
	if !inside {
		return fmt.Errorf("%s is outside the configured pdf directory %s", path, v.root)
	}
	return nil
}

// IsWithinRoot reports whether path stays inside the root. Both the
// literal path and its fully resolved form must land inside the root or
// the root's own resolved form, so a symlink anywhere in the chain
// cannot reach out. While the root does not exist every path passes.
func (v *PathValidator) IsWithinRoot(path string) (bool, error) {
	if !v.rootExists() {
		return true, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", path, err)
	}
	abs = filepath.Clean(abs)

	roots := []string{v.root}
	if resolved, err := filepath.EvalSymlinks(v.root); err == nil && resolved != v.root {
		roots = append(roots, resolved)
	}

	if !underAny(abs, roots) {
		return false, nil
	}

	// EvalSymlinks fails for paths that do not exist yet; the literal
	// check above already covered those.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
		return underAny(resolved, roots), nil
	}
	return true, nil
}

// ValidateDirectory refuses directories outside the root. A directory
// that does not exist yet passes; an existing path must actually be a
// directory.
func (v *PathValidator) ValidateDirectory(dir string) error {
	if err := v.ValidatePath(dir); err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	return nil
}

func (v *PathValidator) rootExists() bool {
	_, err := os.Stat(v.root)
	return !os.IsNotExist(err)
}

// underAny reports whether path equals one of the directories or sits
// below it
func underAny(path string, dirs []string) bool {
	for _, dir := range dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		if rel == "." {
			return true
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
