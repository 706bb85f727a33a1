package snapshot

import "errors"

// Sentinel errors.
var (
	// ErrHeaderInvalid is returned when layout header fields are out of
	// range or the resource blob cannot be read in full.
	ErrHeaderInvalid = errors.New("snapshot: invalid layout header")

	// ErrNoHeader is returned by Install when no boot header is attached
	// to the runtime table.
	ErrNoHeader = errors.New("snapshot: no boot header attached")

	// ErrReadOnly is returned for write-shaped operations under the
	// virtual root.
	ErrReadOnly = errors.New("snapshot: read-only file system")

	// ErrIsDir is returned when a directory is opened for reading as a file.
	ErrIsDir = errors.New("snapshot: is a directory")

	// ErrNotDir is returned when a file is listed as a directory.
	ErrNotDir = errors.New("snapshot: not a directory")
)
