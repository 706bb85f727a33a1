package nexe

import (
	snapshot "github.com/oxmc/nexe/core"
)

// Re-export types from core for the public API.
type (
	// Header is the layout record embedded in the packed executable.
	Header = snapshot.Header

	// VTable is the host runtime's swappable primitive table.
	VTable = snapshot.VTable

	// Snapshot is the installed bootstrap state; Close uninstalls.
	Snapshot = snapshot.Snapshot

	// Archive presents the embedded archive as a read-only filesystem.
	Archive = snapshot.Archive

	// Entry describes one archive member.
	Entry = snapshot.Entry

	// Option configures Install.
	Option = snapshot.Option
)

// Options re-exported from core.
var (
	// WithLogger sets the diagnostic logger.
	WithLogger = snapshot.WithLogger

	// WithRealFs sets the real-filesystem side of the overlay.
	WithRealFs = snapshot.WithRealFs

	// WithProjectRoot overrides the project root used for path translation.
	WithProjectRoot = snapshot.WithProjectRoot

	// WithDrive sets the executable's drive designator for Windows path
	// rewriting.
	WithDrive = snapshot.WithDrive
)

// Install mounts the embedded archive described by rt.BootHeader and
// installs the interception points. Idempotent: when already installed it
// returns the active Snapshot untouched.
func Install(rt *VTable, opts ...Option) (*Snapshot, error) {
	return snapshot.Install(rt, opts...)
}

// Uninstall restores the saved primitive slots. Safe to call when nothing
// is installed.
func Uninstall() error {
	return snapshot.Uninstall()
}
