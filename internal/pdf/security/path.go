// Package security confines file access to the configured workspace
// directory and interprets document permission flags.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
)

// PathValidator confines every source, layout and output path to one directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a validator rooted at configuredDirectory. The
// directory need not exist yet; until it does every path is accepted.
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	return &PathValidator{configuredDirectory: configuredDirectory}, nil
}

// GetConfiguredDirectory returns the root directory
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// Resolve cleans path, anchors relative paths at the configured directory,
// strips NUL bytes and checks that the result stays inside the directory.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if err := v.ValidatePath(absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

// ValidatePath checks that path lies within the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	within, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeSecurityRestriction,
			"path is outside configured directory", path).WithFile(path)
	}
	return nil
}

// IsPathWithinDirectory reports whether path, after resolving symlinks in
// every existing component, is inside the configured directory. Components
// that do not exist yet (an output file about to be written) are resolved
// through their deepest existing ancestor.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	if _, err := os.Stat(v.configuredDirectory); os.IsNotExist(err) {
		return true, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(v.configuredDirectory)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(absDir)

	realDir, err := filepath.EvalSymlinks(cleanDir)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	realPath, err := resolveExisting(cleanPath)
	if err != nil {
		return false, err
	}

	if !isUnder(cleanPath, cleanDir) && !isUnder(cleanPath, realDir) {
		return false, nil
	}
	return isUnder(realPath, realDir), nil
}

// maxSymlinkHops bounds how many dangling links resolveExisting follows
const maxSymlinkHops = 40

// resolveExisting evaluates symlinks in the longest existing prefix of path
// and appends the remaining, not yet existing, components unchanged. A
// dangling link is followed to where a write through it would land.
func resolveExisting(path string) (string, error) {
	return resolveFrom(path, 0)
}

func resolveFrom(path string, hops int) (string, error) {
	existing := path
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}

		if info, lerr := os.Lstat(existing); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			if hops >= maxSymlinkHops {
				return "", fmt.Errorf("too many symlinks resolving %s", path)
			}
			target, err := os.Readlink(existing)
			if err != nil {
				return "", fmt.Errorf("failed to read symlink: %w", err)
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(existing), target)
			}
			return resolveFrom(filepath.Join(append([]string{target}, rest...)...), hops+1)
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return path, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

// OutputPath returns the path an export of src writes to when the caller
// names none: "<base>-interactive.pdf" beside the source.
func OutputPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + "-interactive.pdf"
}

func isUnder(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
