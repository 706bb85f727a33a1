package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/singleflight"

	"github.com/oxmc/nexe/core/internal/vpath"
)

// EntryKind distinguishes archive files from directories.
type EntryKind uint8

const (
	KindFile EntryKind = iota
	KindDir
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	default:
		return "unknown"
	}
}

// Entry describes one archive member. Path is root-relative ("." for the
// virtual root itself).
type Entry struct {
	Path string
	Kind EntryKind
	Size int64
}

// archiveEntry is the immutable per-path record built at open time.
type archiveEntry struct {
	kind    EntryKind
	size    int64
	mode    fs.FileMode
	modTime time.Time
	zf      *zip.File

	// stored aliases the archive buffer for uncompressed members.
	stored []byte

	// inflated caches deflated content after the first read.
	inflated atomic.Pointer[[]byte]

	children []string
}

// Archive presents the embedded ZIP as a read-only filesystem rooted at the
// virtual root. Entries are created once at open time and never mutated;
// the backing buffer is shared, not copied.
//
// Paths are canonicalized before lookup: both /snapshot/a/b and a/b name
// the same entry, dot segments collapse, and traversal above the root is
// not-found.
type Archive struct {
	buf     []byte
	entries map[string]*archiveEntry
	names   []string

	// group deduplicates concurrent first-time inflation of deflated
	// members.
	group singleflight.Group
}

// OpenArchive parses the resource buffer as a ZIP archive and builds the
// entry table. The buffer is retained; callers must not modify it.
//
// Members stored uncompressed are served as zero-copy views of buf.
// Directory entries are synthesized for every path prefix, the root
// included, whether or not the archive lists them explicitly.
func OpenArchive(buf []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: open archive: %w", err)
	}

	a := &Archive{
		buf:     buf,
		entries: map[string]*archiveEntry{".": {kind: KindDir, mode: fs.ModeDir | 0o555}},
	}

	for _, zf := range zr.File {
		name, ok := canonZipName(zf.Name)
		if !ok || name == "." {
			continue
		}
		if zf.FileInfo().IsDir() {
			a.ensureDir(name)
			continue
		}
		e := &archiveEntry{
			kind:    KindFile,
			size:    int64(zf.UncompressedSize64),
			mode:    zf.Mode() &^ 0o222,
			modTime: zf.Modified,
			zf:      zf,
		}
		if zf.Method == zip.Store {
			if off, err := zf.DataOffset(); err == nil && off >= 0 && off+e.size <= int64(len(buf)) {
				e.stored = buf[off : off+e.size]
			}
		}
		a.addEntry(name, e)
	}

	a.names = make([]string, 0, len(a.entries))
	for name := range a.entries {
		a.names = append(a.names, name)
	}
	sort.Strings(a.names)
	for _, e := range a.entries {
		sort.Strings(e.children)
	}
	return a, nil
}

// canonZipName canonicalizes a member name from the central directory.
// Entries that escape the root are dropped.
func canonZipName(name string) (string, bool) {
	p := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ".", true
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

func (a *Archive) addEntry(name string, e *archiveEntry) {
	if prev, ok := a.entries[name]; ok && prev.kind == KindDir && e.kind == KindFile {
		// A directory chain already claimed this path; keep the directory.
		return
	}
	a.entries[name] = e
	a.link(name)
}

func (a *Archive) ensureDir(name string) *archiveEntry {
	if e, ok := a.entries[name]; ok {
		return e
	}
	e := &archiveEntry{kind: KindDir, mode: fs.ModeDir | 0o555}
	a.entries[name] = e
	a.link(name)
	return e
}

// link registers name as a child of its parent, creating parents up to the
// root as needed.
func (a *Archive) link(name string) {
	parent, base := path.Dir(name), path.Base(name)
	pe := a.ensureDir(parent)
	for _, c := range pe.children {
		if c == base {
			return
		}
	}
	pe.children = append(pe.children, base)
}

// canon resolves a caller-supplied path to an entry key. Accepts the
// virtual-root form (/snapshot/a/b), the root-relative form (a/b), and "."
// for the root. Absolute paths outside the virtual root do not resolve.
func canon(name string) (string, bool) {
	if rel, ok := vpath.Rel(name); ok {
		return rel, true
	}
	p := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if p == "" || p == "." || p == "/" {
		return ".", true
	}
	if strings.HasPrefix(p, "/") {
		return "", false
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

func (a *Archive) lookup(name string) (*archiveEntry, bool) {
	key, ok := canon(name)
	if !ok {
		return nil, false
	}
	e, ok := a.entries[key]
	return e, ok
}

func pathErr(op, name string, err error) *fs.PathError {
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// Stat returns file info for the named entry. Directories report a
// synthetic zero size.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	e, ok := a.lookup(name)
	if !ok {
		return nil, pathErr("stat", name, fs.ErrNotExist)
	}
	return e.info(name), nil
}

// Open returns a read handle for the named file.
func (a *Archive) Open(name string) (*File, error) {
	e, ok := a.lookup(name)
	if !ok {
		return nil, pathErr("open", name, fs.ErrNotExist)
	}
	if e.kind == KindDir {
		return nil, pathErr("open", name, ErrIsDir)
	}
	content, err := a.content(name, e)
	if err != nil {
		return nil, pathErr("open", name, err)
	}
	return &File{info: e.info(name), content: content}, nil
}

// ReadFile returns the full content of the named file.
//
// The returned slice may alias the archive buffer and must be treated as
// immutable.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	e, ok := a.lookup(name)
	if !ok {
		return nil, pathErr("readfile", name, fs.ErrNotExist)
	}
	if e.kind == KindDir {
		return nil, pathErr("readfile", name, ErrIsDir)
	}
	content, err := a.content(name, e)
	if err != nil {
		return nil, pathErr("readfile", name, err)
	}
	return content, nil
}

// ReadDir returns the sorted child names of the named directory.
func (a *Archive) ReadDir(name string) ([]string, error) {
	e, ok := a.lookup(name)
	if !ok {
		return nil, pathErr("readdir", name, fs.ErrNotExist)
	}
	if e.kind != KindDir {
		return nil, pathErr("readdir", name, ErrNotDir)
	}
	out := make([]string, len(e.children))
	copy(out, e.children)
	return out, nil
}

// IsFile reports whether name resolves to an archive file.
func (a *Archive) IsFile(name string) bool {
	e, ok := a.lookup(name)
	return ok && e.kind == KindFile
}

// IsDir reports whether name resolves to an archive directory.
func (a *Archive) IsDir(name string) bool {
	e, ok := a.lookup(name)
	return ok && e.kind == KindDir
}

// Len returns the number of entries, the synthesized root included.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns an iterator over all entries in path-sorted order.
func (a *Archive) Entries() iter.Seq[Entry] {
	return a.EntriesWithPrefix("")
}

// EntriesWithPrefix returns an iterator over entries whose root-relative
// paths begin with prefix, in path-sorted order.
func (a *Archive) EntriesWithPrefix(prefix string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		start := sort.SearchStrings(a.names, prefix)
		for _, name := range a.names[start:] {
			if !strings.HasPrefix(name, prefix) {
				return
			}
			e := a.entries[name]
			if !yield(Entry{Path: name, Kind: e.kind, Size: e.size}) {
				return
			}
		}
	}
}

// content returns the member's bytes, inflating deflated members once.
func (a *Archive) content(name string, e *archiveEntry) ([]byte, error) {
	if e.stored != nil {
		return e.stored, nil
	}
	if e.size == 0 {
		return nil, nil
	}
	if b := e.inflated.Load(); b != nil {
		return *b, nil
	}
	v, err, _ := a.group.Do(name, func() (any, error) {
		if b := e.inflated.Load(); b != nil {
			return *b, nil
		}
		rc, err := e.zf.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		if int64(len(b)) != e.size {
			return nil, fmt.Errorf("snapshot: member %s: read %d bytes, want %d", name, len(b), e.size)
		}
		e.inflated.Store(&b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (e *archiveEntry) info(name string) fs.FileInfo {
	key, _ := canon(name)
	base := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		base = key[i+1:]
	}
	if key == "." {
		base = "snapshot"
	}
	return fileInfo{name: base, size: e.size, mode: e.mode, modTime: e.modTime, dir: e.kind == KindDir}
}

// fileInfo is the fs.FileInfo for archive entries.
type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	dir     bool
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi fileInfo) ModTime() time.Time { return fi.modTime }
func (fi fileInfo) IsDir() bool        { return fi.dir }
func (fi fileInfo) Sys() any           { return nil }

var _ fs.FileInfo = fileInfo{}
