// Package snapshot implements the runtime bootstrap core of the packager:
// an embedded ZIP archive mounted read-only at the /snapshot virtual root,
// overlaid on the host filesystem, with hook points that reroute the Node
// runtime's filesystem primitives and module resolution through the overlay.
//
// The archive bytes live inside the packed executable and are located by a
// layout [Header] recorded at bundle time. [Install] reads the blob, mounts
// it, and swaps the runtime's [VTable] slots; the returned [Snapshot] guard
// restores the originals on Close.
package snapshot
