// Package security guards the file paths the command-line tools write to.
package security

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/incident.report/internal/errors"
)

// canonical resolves path to an absolute path with symlinks evaluated. For a
// path that does not exist yet, the nearest existing ancestor is resolved and
// the remainder appended, so a symlinked parent cannot be used to escape.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", errors.Wrapf(err, errors.KindValidation, "resolve %q", path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// WithinDir returns a Validation error unless path resolves to a location
// inside dir.
func WithinDir(path, dir string) error {
	target, err := canonical(path)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "resolve %q", dir)
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return errors.Wrapf(err, errors.KindValidation, "resolve %q", dir)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return errors.Errorf(errors.KindValidation, "path %s escapes %s", path, dir)
	}
	return nil
}

// WithinAnyDir accepts path if it lies inside at least one of dirs.
func WithinAnyDir(path string, dirs ...string) error {
	if len(dirs) == 0 {
		return errors.New(errors.KindValidation, "no allowed directories")
	}
	for _, dir := range dirs {
		if WithinDir(path, dir) == nil {
			return nil
		}
	}
	return errors.Errorf(errors.KindValidation, "%s must be inside one of %v", path, dirs)
}

// ValidateOutputPath accepts result files under the working directory or the
// system temp directory.
func ValidateOutputPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "get working directory")
	}
	return WithinAnyDir(path, cwd, os.TempDir())
}
