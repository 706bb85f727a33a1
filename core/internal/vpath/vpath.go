// Package vpath translates host-native paths into the canonical POSIX form
// rooted at the snapshot virtual root.
package vpath

import (
	"path"
	"strings"
)

// Root is the virtual mount point for archive-backed files.
const Root = "/snapshot"

// extendedPrefix is the Windows extended-length path prefix.
const extendedPrefix = `\\?\`

// Clean normalizes separators and collapses dot segments, POSIX semantics.
// The result is always absolute.
func Clean(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// Rel returns the root-relative form of a virtual path: Root maps to ".",
// Root+"/a/b" maps to "a/b". ok is false when p is not under the virtual root.
//
// Dot segments are collapsed before the prefix check. Traversal that would
// escape the virtual root is reported as not under it.
func Rel(p string) (string, bool) {
	p = Clean(p)
	if p == Root {
		return ".", true
	}
	if !strings.HasPrefix(p, Root+"/") {
		return "", false
	}
	return p[len(Root)+1:], true
}

// IsVirtual reports whether p names the virtual root or anything beneath it.
func IsVirtual(p string) bool {
	_, ok := Rel(p)
	return ok
}

// Normalizer rewrites real-world paths that correspond to the bundled
// project into virtual-root paths. The zero value performs only the
// extended-length prefix strip and the virtual-root passthrough.
//
// Normalizer is pure and idempotent: ToVirtual(ToVirtual(p)) == ToVirtual(p).
type Normalizer struct {
	// ProjectRoot is the absolute host path of the directory that contained
	// the application at bundle time. Empty disables project-root rewriting.
	ProjectRoot string

	// Drive is the executable's drive designator ("C:") on Windows hosts.
	// Empty disables the drive\snapshot rewrite.
	Drive string

	// CaseFoldDrive makes the drive-letter comparison case-insensitive.
	// Set on Windows hosts. All other comparisons stay case-sensitive.
	CaseFoldDrive bool
}

// ToVirtual translates a host-native path into its virtual form.
//
// Paths already under the virtual root pass through unchanged. Paths of the
// form <drive>\snapshot\... or <project root><sep>... are rewritten to
// /snapshot/... with separators converted. Anything else is returned as is.
func (n Normalizer) ToVirtual(p string) string {
	p = strings.TrimPrefix(p, extendedPrefix)

	if p == Root || strings.HasPrefix(p, Root+"/") {
		return p
	}

	if rest, ok := n.trimDriveSnapshot(p); ok {
		return Root + "/" + strings.ReplaceAll(rest, "\\", "/")
	}

	if rest, ok := n.trimProjectRoot(p); ok {
		if rest == "" {
			return Root
		}
		return Root + strings.ReplaceAll(rest, "\\", "/")
	}

	return p
}

// trimDriveSnapshot matches <drive>\snapshot\<rest>.
func (n Normalizer) trimDriveSnapshot(p string) (string, bool) {
	if n.Drive == "" || len(p) < len(n.Drive) {
		return "", false
	}
	if !n.driveEqual(p[:len(n.Drive)]) {
		return "", false
	}
	rest := p[len(n.Drive):]
	const marker = `\snapshot\`
	if !strings.HasPrefix(rest, marker) {
		return "", false
	}
	return rest[len(marker):], true
}

// trimProjectRoot matches <project root> exactly or followed by a separator,
// returning the remainder including its leading separator.
func (n Normalizer) trimProjectRoot(p string) (string, bool) {
	root := n.ProjectRoot
	if root == "" || len(p) < len(root) {
		return "", false
	}
	head, tail := p[:len(root)], p[len(root):]
	if !n.prefixEqual(head, root) {
		return "", false
	}
	if tail != "" && tail[0] != '/' && tail[0] != '\\' {
		return "", false
	}
	return tail, true
}

// prefixEqual compares a candidate against the project root. Only the
// leading drive designator folds case; the rest compares byte for byte.
func (n Normalizer) prefixEqual(head, root string) bool {
	if !n.CaseFoldDrive || len(root) < 2 || root[1] != ':' {
		return head == root
	}
	if len(head) < 2 || head[1] != ':' {
		return false
	}
	return foldDriveLetter(head[0]) == foldDriveLetter(root[0]) && head[2:] == root[2:]
}

// driveEqual compares a two-character drive designator against n.Drive.
func (n Normalizer) driveEqual(d string) bool {
	if !n.CaseFoldDrive {
		return d == n.Drive
	}
	if len(d) != 2 || len(n.Drive) != 2 || d[1] != n.Drive[1] {
		return false
	}
	return foldDriveLetter(d[0]) == foldDriveLetter(n.Drive[0])
}

func foldDriveLetter(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
