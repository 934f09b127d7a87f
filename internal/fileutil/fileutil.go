// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrPrefixInvalid = errors.New("work directory prefix contains path separator or null byte")
	ErrEmptyFile     = errors.New("file is empty")
)

// MakeWorkDir creates a private directory for the intermediate files of one
// export. parent "" means the system temp directory. Returns the directory and
// a cleanup function removing it with everything inside.
func MakeWorkDir(parent, prefix string) (dir string, cleanup func(), err error) {
	if strings.ContainsAny(prefix, "/\\\x00") {
		return "", nil, ErrPrefixInvalid
	}
	dir, err = os.MkdirTemp(parent, prefix+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating work directory: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// MoveFile moves src to dst, copying across file systems when a rename is not
// possible. The parent directory of dst is created if missing.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src) // #nosec G304 -- src is a file this process wrote
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".partial"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) // #nosec G302 G304 -- user output
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming to %s: %w", dst, err)
	}
	_ = os.Remove(src)
	return nil
}

// CheckNonEmpty returns an error unless path is a regular file with content.
func CheckNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "weekly" -> false (config name)
//   - "./weekly.yaml" -> true (relative path)
//   - "/etc/taskexport/weekly.yaml" -> true (absolute)
//   - "C:\exports\weekly.yaml" -> true (Windows)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}
