package snapshot

import (
	"io"
	"io/fs"
)

// File is a read handle over one archive member. The content is a view of
// the shared archive buffer (or its one-time inflation); reads never
// allocate per call.
type File struct {
	info    fs.FileInfo
	content []byte
	off     int64
	closed  bool
}

// Stat returns the member's file info.
func (f *File) Stat() (fs.FileInfo, error) {
	return f.info, nil
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, pathErr("read", f.info.Name(), fs.ErrClosed)
	}
	if f.off >= int64(len(f.content)) {
		return 0, io.EOF
	}
	n := copy(p, f.content[f.off:])
	f.off += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt. Short reads happen only at end of file.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, pathErr("read", f.info.Name(), fs.ErrClosed)
	}
	if off < 0 {
		return 0, pathErr("read", f.info.Name(), fs.ErrInvalid)
	}
	if off >= int64(len(f.content)) {
		return 0, io.EOF
	}
	n := copy(p, f.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, pathErr("seek", f.info.Name(), fs.ErrClosed)
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.off + offset
	case io.SeekEnd:
		abs = int64(len(f.content)) + offset
	default:
		return 0, pathErr("seek", f.info.Name(), fs.ErrInvalid)
	}
	if abs < 0 {
		return 0, pathErr("seek", f.info.Name(), fs.ErrInvalid)
	}
	f.off = abs
	return abs, nil
}

// Close releases the handle. The shared content is unaffected.
func (f *File) Close() error {
	if f.closed {
		return pathErr("close", f.info.Name(), fs.ErrClosed)
	}
	f.closed = true
	f.content = nil
	return nil
}

var (
	_ fs.File     = (*File)(nil)
	_ io.ReaderAt = (*File)(nil)
	_ io.Seeker   = (*File)(nil)
)
