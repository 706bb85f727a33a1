package nexe

import (
	snapshot "github.com/oxmc/nexe/core"
)

// Errors re-exported from core.
var (
	// ErrHeaderInvalid is returned when layout header fields are out of
	// range or the resource blob cannot be read in full.
	ErrHeaderInvalid = snapshot.ErrHeaderInvalid

	// ErrNoHeader is returned by Install when no boot header is attached
	// to the runtime table.
	ErrNoHeader = snapshot.ErrNoHeader

	// ErrReadOnly is returned for write-shaped operations under /snapshot.
	ErrReadOnly = snapshot.ErrReadOnly

	// ErrIsDir is returned when a directory is opened for reading as a file.
	ErrIsDir = snapshot.ErrIsDir

	// ErrNotDir is returned when a file is listed as a directory.
	ErrNotDir = snapshot.ErrNotDir
)
