package snapshot

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/afero"

	"github.com/oxmc/nexe/core/internal/vpath"
)

// DebugEnv is the environment variable consulted for diagnostic output.
// When its value contains DebugToken, each hook invocation logs one line
// to standard error with the input and translated paths.
const (
	DebugEnv   = "NEXE_DEBUG"
	DebugToken = "snapshot"
)

// VTable is the host runtime's swappable filesystem and module-resolver
// slots, modeled as an explicit table owned by the embedding harness.
// Install snapshots the slots it replaces and Uninstall restores them.
type VTable struct {
	// BootHeader is the layout header the bundler attaches to the runtime's
	// process table. Install reads and removes it exactly once.
	BootHeader *Header

	// ReadFile returns the raw text of a single file, or "" when absent.
	ReadFile func(path string) string

	// ReadJSON returns manifest text plus a presence marker; absent is
	// distinct from empty.
	ReadJSON func(path string) (text string, ok bool)

	// Stat is the low-level stat primitive. The calling convention varies
	// across runtime versions: the path may be the first argument or follow
	// a context argument, and descriptors arrive as integers. Returns 1 for
	// a directory, 0 for a file, and negated ENOENT when absent.
	Stat func(args ...any) int

	// Fstat is the real stat-by-descriptor primitive. It is captured but
	// never replaced; the stat hook delegates descriptors to the captured
	// original.
	Fstat func(fd int) error

	// FindPath is the runtime's internal module path resolution.
	FindPath func(request string, paths []string) string
}

// enoent is the stat hook's absent result.
var enoent = -int(syscall.ENOENT)

// Snapshot is the installed bootstrap state: the mounted archive, the
// overlay, and the saved-originals table. Close uninstalls.
type Snapshot struct {
	header  Header
	rt      *VTable
	saved   VTable
	archive *Archive
	overlay *Overlay
	res     resolver
	logger  *slog.Logger
}

// Process-wide install state. Interception is installable at most once
// concurrently; only Install and Uninstall take the lock, never a hook.
var (
	installMu sync.Mutex
	active    *Snapshot
)

type config struct {
	logger      *slog.Logger
	real        afero.Fs
	projectRoot string
	drive       string
	hasRoot     bool
	hasDrive    bool
}

// Option configures Install.
type Option func(*config)

// WithLogger sets the diagnostic logger. By default hooks log to stderr at
// debug level when the NEXE_DEBUG variable contains the "snapshot" token,
// and are silent otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithRealFs sets the real-filesystem side of the overlay. The same
// filesystem is used to read the resource blob. Defaults to the host OS
// filesystem.
func WithRealFs(fsys afero.Fs) Option {
	return func(c *config) {
		c.real = fsys
	}
}

// WithProjectRoot overrides the project root used for path translation.
// Defaults to the executable's directory.
func WithProjectRoot(root string) Option {
	return func(c *config) {
		c.projectRoot = root
		c.hasRoot = true
	}
}

// WithDrive sets the executable's drive designator ("C:") and enables the
// Windows drive\snapshot rewrite with case-insensitive drive comparison.
// Defaults to the project root's drive on Windows hosts, empty elsewhere.
func WithDrive(drive string) Option {
	return func(c *config) {
		c.drive = drive
		c.hasDrive = true
	}
}

// Install mounts the embedded archive and installs the interception points.
//
// The layout header is consumed from rt.BootHeader. Install is idempotent:
// when interception is already installed it returns the active Snapshot
// without touching rt. The resource blob is read through the real
// filesystem before any slot is replaced.
func Install(rt *VTable, opts ...Option) (*Snapshot, error) {
	installMu.Lock()
	defer installMu.Unlock()

	if active != nil {
		return active, nil
	}
	if rt == nil {
		return nil, errors.New("snapshot: nil runtime table")
	}
	if rt.BootHeader == nil {
		return nil, ErrNoHeader
	}
	header := *rt.BootHeader
	rt.BootHeader = nil

	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	if cfg.real == nil {
		cfg.real = afero.NewOsFs()
	}
	if !cfg.hasRoot {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		cfg.projectRoot = filepath.Dir(exe)
	}
	caseFold := runtime.GOOS == "windows"
	if !cfg.hasDrive && caseFold && len(cfg.projectRoot) >= 2 && cfg.projectRoot[1] == ':' {
		cfg.drive = cfg.projectRoot[:2]
	}
	if cfg.hasDrive {
		caseFold = true
	}

	buf, err := ReadResource(cfg.real, header)
	if err != nil {
		return nil, err
	}
	archive, err := OpenArchive(buf)
	if err != nil {
		return nil, err
	}

	norm := vpath.Normalizer{
		ProjectRoot:   cfg.projectRoot,
		Drive:         cfg.drive,
		CaseFoldDrive: caseFold,
	}
	overlay := NewOverlay(archive, cfg.real, norm)

	s := &Snapshot{
		header:  header,
		rt:      rt,
		archive: archive,
		overlay: overlay,
		logger:  cfg.logger,
	}
	s.res = resolver{overlay: overlay, logger: cfg.logger}

	s.saved = VTable{
		ReadFile: rt.ReadFile,
		ReadJSON: rt.ReadJSON,
		Stat:     rt.Stat,
		Fstat:    rt.Fstat,
		FindPath: rt.FindPath,
	}
	rt.ReadFile = s.hookReadFile
	rt.ReadJSON = s.hookReadJSON
	rt.Stat = s.hookStat
	rt.FindPath = s.hookFindPath

	active = s
	s.logger.Debug("snapshot installed",
		"blob", header.BlobPath,
		"resource_start", header.ResourceStart,
		"resource_size", header.ResourceSize,
		"entries", archive.Len(),
	)
	return s, nil
}

// Uninstall restores the saved slots and clears the saved-originals table.
// Safe to call when nothing is installed, any number of times.
func Uninstall() error {
	installMu.Lock()
	defer installMu.Unlock()
	uninstallLocked()
	return nil
}

// Close uninstalls the snapshot if it is still the active one, making the
// guard safe to release in any order with Uninstall.
func (s *Snapshot) Close() error {
	installMu.Lock()
	defer installMu.Unlock()
	if active == s {
		uninstallLocked()
	}
	return nil
}

func uninstallLocked() {
	if active == nil {
		return
	}
	s := active
	rt := s.rt
	rt.ReadFile = s.saved.ReadFile
	rt.ReadJSON = s.saved.ReadJSON
	rt.Stat = s.saved.Stat
	rt.Fstat = s.saved.Fstat
	rt.FindPath = s.saved.FindPath
	s.saved = VTable{}
	active = nil
	s.logger.Debug("snapshot uninstalled")
}

// Header returns the layout header the snapshot was installed from.
func (s *Snapshot) Header() Header {
	return s.header
}

// Archive returns the mounted archive.
func (s *Snapshot) Archive() *Archive {
	return s.archive
}

// Overlay returns the composed filesystem.
func (s *Snapshot) Overlay() *Overlay {
	return s.overlay
}

// hookReadFile serves raw file text. Virtual paths read from the archive;
// absence is the empty sentinel. Everything else goes to the original
// primitive, byte-identical to the pre-install behavior.
func (s *Snapshot) hookReadFile(p string) string {
	v := s.overlay.Normalize(p)
	s.logger.Debug("hook readfile", "path", p, "virtual", v)
	if vpath.IsVirtual(v) {
		b, err := s.archive.ReadFile(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	if s.saved.ReadFile != nil {
		return s.saved.ReadFile(p)
	}
	return ""
}

// hookReadJSON serves manifest text with a presence marker. An empty
// manifest in the archive is reported absent: the host treats empty and
// absent manifests differently, and the bundler never packs an empty one.
func (s *Snapshot) hookReadJSON(p string) (string, bool) {
	v := s.overlay.Normalize(p)
	s.logger.Debug("hook readjson", "path", p, "virtual", v)
	if vpath.IsVirtual(v) {
		b, err := s.archive.ReadFile(v)
		if err != nil || len(b) == 0 {
			return "", false
		}
		return string(b), true
	}
	if s.saved.ReadJSON != nil {
		return s.saved.ReadJSON(p)
	}
	return "", false
}

// statTarget is the classified argument of the stat hook.
type statTarget struct {
	fd   int
	path string
	isFd bool
	ok   bool
}

// classifyStatTarget inspects up to the first two arguments: an integer is
// a descriptor, otherwise the first string is the path. This tolerates both
// (path, ...) and (context, path, ...) shapes.
func classifyStatTarget(args []any) statTarget {
	if len(args) == 0 {
		return statTarget{}
	}
	if fd, ok := toInt(args[0]); ok {
		return statTarget{fd: fd, isFd: true, ok: true}
	}
	limit := min(len(args), 2)
	for _, a := range args[:limit] {
		if p, ok := a.(string); ok {
			return statTarget{path: p, ok: true}
		}
	}
	return statTarget{}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint32:
		return int(n), true
	}
	return 0, false
}

// hookStat answers 1 for directories, 0 for files, negated ENOENT when the
// target is absent. Descriptors pass through to the captured real fstat.
func (s *Snapshot) hookStat(args ...any) int {
	target := classifyStatTarget(args)
	if !target.ok {
		return enoent
	}
	if target.isFd {
		s.logger.Debug("hook stat", "fd", target.fd)
		if s.saved.Fstat == nil || s.saved.Fstat(target.fd) != nil {
			return enoent
		}
		return 0
	}
	v := s.overlay.Normalize(target.path)
	s.logger.Debug("hook stat", "path", target.path, "virtual", v)
	switch {
	case s.overlay.IsDir(v):
		return 1
	case s.overlay.IsFile(v):
		return 0
	default:
		return enoent
	}
}

// hookFindPath wraps the runtime's module resolution: the original result
// wins; bare specifiers that miss are retried against the archive's
// node_modules store. Never fails loud.
func (s *Snapshot) hookFindPath(request string, paths []string) string {
	result := ""
	if s.saved.FindPath != nil {
		result = s.saved.FindPath(request, paths)
	}
	if result != "" {
		return result
	}
	if !isBareSpecifier(request) {
		return result
	}
	if hit := s.res.resolve(request); hit != "" {
		s.logger.Debug("hook findpath", "request", request, "resolved", hit)
		return hit
	}
	return result
}

// defaultLogger gates diagnostics on the debug environment variable.
func defaultLogger() *slog.Logger {
	if strings.Contains(os.Getenv(DebugEnv), DebugToken) {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.DiscardHandler)
}
