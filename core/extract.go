package snapshot

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// CopyOption configures CopyDir. CopyTo takes no options.
type CopyOption func(*copyConfig)

type copyConfig struct {
	overwrite    bool
	preserveMode bool
}

// CopyWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func CopyWithOverwrite(overwrite bool) CopyOption {
	return func(c *copyConfig) {
		c.overwrite = overwrite
	}
}

// CopyWithPreserveMode writes extracted files with the archive member's
// permission bits plus owner write. By default, files are written 0644.
func CopyWithPreserveMode(preserve bool) CopyOption {
	return func(c *copyConfig) {
		c.preserveMode = preserve
	}
}

// CopyTo extracts specific archive files into destDir on the given real
// filesystem, preserving their root-relative layout. Parent directories
// are created as needed. Existing files are skipped, and new files are
// written 0644.
//
// Native addons are the motivating case: a .node module cannot be loaded
// from inside the executable, so it is extracted to real disk first.
func (a *Archive) CopyTo(fsys afero.Fs, destDir string, paths ...string) error {
	cfg := copyConfig{}
	for _, p := range paths {
		key, ok := canon(p)
		if !ok {
			return pathErr("copy", p, fs.ErrNotExist)
		}
		if err := a.copyEntry(fsys, destDir, key, &cfg); err != nil {
			return err
		}
	}
	return nil
}

// CopyDir extracts all archive files under prefix into destDir. A prefix of
// "" or "." extracts the whole archive.
func (a *Archive) CopyDir(fsys afero.Fs, destDir, prefix string, opts ...CopyOption) error {
	cfg := copyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dirPrefix := ""
	if prefix != "" && prefix != "." {
		key, ok := canon(prefix)
		if !ok {
			return pathErr("copy", prefix, fs.ErrNotExist)
		}
		dirPrefix = key + "/"
	}

	for entry := range a.EntriesWithPrefix(dirPrefix) {
		if entry.Kind != KindFile {
			continue
		}
		if err := a.copyEntry(fsys, destDir, entry.Path, &cfg); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) copyEntry(fsys afero.Fs, destDir, key string, cfg *copyConfig) error {
	e, ok := a.entries[key]
	if !ok {
		return pathErr("copy", key, fs.ErrNotExist)
	}
	if e.kind == KindDir {
		return pathErr("copy", key, ErrIsDir)
	}

	dest := filepath.Join(destDir, filepath.FromSlash(key))
	if !cfg.overwrite {
		if _, err := fsys.Stat(dest); err == nil {
			return nil
		}
	}
	if err := fsys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}

	content, err := a.content(key, e)
	if err != nil {
		return pathErr("copy", key, err)
	}

	mode := fs.FileMode(0o644)
	if cfg.preserveMode {
		mode = e.mode.Perm() | 0o200
	}
	if err := afero.WriteFile(fsys, dest, content, mode); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
