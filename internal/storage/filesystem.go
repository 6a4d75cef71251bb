package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("invalid artifact file name")

type Options struct {
	// Directory is created on first use if missing.
	Directory string
	// FileMode and DirMode default to 0644 and 0755.
	FileMode os.FileMode
	DirMode  os.FileMode
}

// Filesystem stores artifacts as files directly inside one directory.
type Filesystem struct {
	dir      string
	fileMode os.FileMode
	dirMode  os.FileMode
}

func NewFilesystem(opts Options) (Filesystem, error) {
	if strings.TrimSpace(opts.Directory) == "" {
		return Filesystem{}, fmt.Errorf("output directory must be set")
	}
	fs := Filesystem{
		dir:      filepath.Clean(opts.Directory),
		fileMode: opts.FileMode,
		dirMode:  opts.DirMode,
	}
	if fs.fileMode == 0 {
		fs.fileMode = 0o644
	}
	if fs.dirMode == 0 {
		fs.dirMode = 0o755
	}
	return fs, nil
}

func (fs Filesystem) Directory() string {
	return fs.dir
}

// resolve only accepts bare file names, nothing may escape the directory.
func (fs Filesystem) resolve(name string) (string, error) {
	if name == "" ||
		name == "." ||
		name == ".." ||
		filepath.Base(name) != name ||
		strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, tempPrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(fs.dir, name), nil
}

func (fs Filesystem) Exists(name string) (bool, error) {
	path, err := fs.resolve(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

const tempPrefix = ".partial-"

// Save writes body to a temporary file next to the destination and renames it into place, so a
// reader never observes a half written artifact.
func (fs Filesystem) Save(ctx context.Context, name string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := fs.resolve(name)
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(fs.dir, fs.dirMode)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(fs.dir, tempPrefix+"*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}

	_, err = tmp.Write(body)
	if err != nil {
		return fail(err)
	}
	err = tmp.Sync()
	if err != nil {
		return fail(err)
	}
	err = tmp.Chmod(fs.fileMode)
	if err != nil {
		return fail(err)
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	err = os.Rename(tmpPath, dest)
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return dest, nil
}

// CleanPartial removes temporary files left behind by an interrupted run.
func (fs Filesystem) CleanPartial() (int, error) {
	matches, err := filepath.Glob(filepath.Join(fs.dir, tempPrefix+"*"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range matches {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
