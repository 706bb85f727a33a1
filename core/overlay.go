package snapshot

import (
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"

	"github.com/oxmc/nexe/core/internal/vpath"
)

// Handle is the read surface common to archive members and real files.
type Handle interface {
	fs.File
	io.ReaderAt
	io.Seeker
}

// Overlay unions the archive (for paths under the virtual root) with the
// real host filesystem (for every other path). There is no merging across
// the boundary: an archive entry never shadows a real file outside
// /snapshot, and vice versa.
//
// Incoming paths are normalized first, so real-world forms of bundled
// project paths land on the archive side.
type Overlay struct {
	archive *Archive
	real    afero.Fs
	norm    vpath.Normalizer
}

// NewOverlay composes an archive with a real filesystem. The normalizer
// rewrites project-root and drive forms into virtual paths before dispatch.
func NewOverlay(archive *Archive, real afero.Fs, norm vpath.Normalizer) *Overlay {
	return &Overlay{archive: archive, real: real, norm: norm}
}

// Normalize translates a host path to its virtual form.
func (o *Overlay) Normalize(name string) string {
	return o.norm.ToVirtual(name)
}

// dispatch normalizes name and selects the backing side.
func (o *Overlay) dispatch(name string) (string, bool) {
	p := o.norm.ToVirtual(name)
	return p, vpath.IsVirtual(p)
}

// Stat returns file info from the selected side.
func (o *Overlay) Stat(name string) (fs.FileInfo, error) {
	p, virtual := o.dispatch(name)
	if virtual {
		return o.archive.Stat(p)
	}
	return o.real.Stat(p)
}

// Open returns a read handle from the selected side.
func (o *Overlay) Open(name string) (Handle, error) {
	p, virtual := o.dispatch(name)
	if virtual {
		return o.archive.Open(p)
	}
	return o.real.Open(p)
}

// ReadFile returns the full content of the named file. Archive content may
// alias the shared buffer and must be treated as immutable.
func (o *Overlay) ReadFile(name string) ([]byte, error) {
	p, virtual := o.dispatch(name)
	if virtual {
		return o.archive.ReadFile(p)
	}
	return afero.ReadFile(o.real, p)
}

// ReadDir returns the sorted child names of the named directory.
func (o *Overlay) ReadDir(name string) ([]string, error) {
	p, virtual := o.dispatch(name)
	if virtual {
		return o.archive.ReadDir(p)
	}
	infos, err := afero.ReadDir(o.real, p)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

// IsFile reports whether name resolves to a regular file on its side.
func (o *Overlay) IsFile(name string) bool {
	p, virtual := o.dispatch(name)
	if virtual {
		return o.archive.IsFile(p)
	}
	info, err := o.real.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether name resolves to a directory on its side.
func (o *Overlay) IsDir(name string) bool {
	p, virtual := o.dispatch(name)
	if virtual {
		return o.archive.IsDir(p)
	}
	info, err := o.real.Stat(p)
	return err == nil && info.IsDir()
}

// OpenFile opens name with POSIX-style flags. Any write-shaped flag on a
// virtual path fails with ErrReadOnly.
func (o *Overlay) OpenFile(name string, flag int, perm fs.FileMode) (Handle, error) {
	p, virtual := o.dispatch(name)
	if virtual {
		if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
			return nil, pathErr("open", name, ErrReadOnly)
		}
		return o.archive.Open(p)
	}
	return o.real.OpenFile(p, flag, perm)
}

// Create creates a real file; under the virtual root it fails ErrReadOnly.
func (o *Overlay) Create(name string) (Handle, error) {
	p, virtual := o.dispatch(name)
	if virtual {
		return nil, pathErr("create", name, ErrReadOnly)
	}
	return o.real.Create(p)
}

// Remove removes a real file; under the virtual root it fails ErrReadOnly.
func (o *Overlay) Remove(name string) error {
	p, virtual := o.dispatch(name)
	if virtual {
		return pathErr("remove", name, ErrReadOnly)
	}
	return o.real.Remove(p)
}

// RemoveAll removes a real tree; under the virtual root it fails ErrReadOnly.
func (o *Overlay) RemoveAll(name string) error {
	p, virtual := o.dispatch(name)
	if virtual {
		return pathErr("removeall", name, ErrReadOnly)
	}
	return o.real.RemoveAll(p)
}

// Mkdir creates a real directory; under the virtual root it fails ErrReadOnly.
func (o *Overlay) Mkdir(name string, perm fs.FileMode) error {
	p, virtual := o.dispatch(name)
	if virtual {
		return pathErr("mkdir", name, ErrReadOnly)
	}
	return o.real.Mkdir(p, perm)
}

// MkdirAll creates a real directory chain; under the virtual root it fails
// ErrReadOnly.
func (o *Overlay) MkdirAll(name string, perm fs.FileMode) error {
	p, virtual := o.dispatch(name)
	if virtual {
		return pathErr("mkdir", name, ErrReadOnly)
	}
	return o.real.MkdirAll(p, perm)
}

// Rename moves a real file. Either endpoint under the virtual root fails
// ErrReadOnly.
func (o *Overlay) Rename(oldname, newname string) error {
	op, oldVirtual := o.dispatch(oldname)
	np, newVirtual := o.dispatch(newname)
	if oldVirtual || newVirtual {
		return pathErr("rename", oldname, ErrReadOnly)
	}
	return o.real.Rename(op, np)
}
