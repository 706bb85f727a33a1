// Package nexe is the runtime bootstrap of the single-file packager: it
// mounts the archive embedded in the packed executable as a read-only
// overlay at /snapshot and reroutes the host runtime's filesystem and
// module-resolution primitives through it.
//
// The public surface is two operations. Install consumes the layout header
// the bundler attached to the runtime table, mounts the archive, and swaps
// the hook slots; Uninstall restores the originals. Code written against
// ordinary filesystem APIs then observes the embedded files as if they
// lived on disk under /snapshot.
//
//	s, err := nexe.Install(rt)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
// Low-level archive and overlay access lives in the [core] subpackage.
package nexe
