package snapshot

import (
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// Header is the layout record captured at bundle time and embedded in the
// packed executable. Offsets are absolute byte positions in the blob file;
// sizes are byte counts.
type Header struct {
	// BlobPath names the file containing the archive bytes, typically the
	// executable itself.
	BlobPath string

	// ResourceStart and ResourceSize delimit the embedded archive.
	ResourceStart int64
	ResourceSize  int64

	// ContentStart and ContentSize delimit the bundled entrypoint text.
	ContentStart int64
	ContentSize  int64

	// Digest optionally records the content digest of the resource bytes.
	// When set, ReadResource verifies the blob against it.
	Digest digest.Digest
}

// Validate checks the header fields against the blob file's size.
func (h Header) Validate(blobSize int64) error {
	if h.BlobPath == "" {
		return fmt.Errorf("%w: empty blob path", ErrHeaderInvalid)
	}
	for _, v := range []int64{h.ResourceStart, h.ResourceSize, h.ContentStart, h.ContentSize} {
		if v < 0 {
			return fmt.Errorf("%w: negative offset or size", ErrHeaderInvalid)
		}
	}
	if h.ResourceStart > blobSize || h.ResourceSize > blobSize-h.ResourceStart {
		return fmt.Errorf("%w: resource [%d,+%d) exceeds blob size %d",
			ErrHeaderInvalid, h.ResourceStart, h.ResourceSize, blobSize)
	}
	if h.ContentStart > blobSize || h.ContentSize > blobSize-h.ContentStart {
		return fmt.Errorf("%w: content [%d,+%d) exceeds blob size %d",
			ErrHeaderInvalid, h.ContentStart, h.ContentSize, blobSize)
	}
	if h.Digest != "" {
		if err := h.Digest.Validate(); err != nil {
			return fmt.Errorf("%w: bad digest: %v", ErrHeaderInvalid, err)
		}
	}
	return nil
}

// ReadResource materializes the embedded archive: it opens the blob on the
// given filesystem, reads exactly ResourceSize bytes at ResourceStart, and
// verifies the digest when the header carries one.
//
// The filesystem must be the real host filesystem, captured before any
// interception is installed; the read is never routed through a hook.
// A short read is fatal.
func ReadResource(fsys afero.Fs, h Header) ([]byte, error) {
	return readRegion(fsys, h, h.ResourceStart, h.ResourceSize, true)
}

// ReadContent returns the bundled entrypoint text delimited by the header's
// content fields.
func ReadContent(fsys afero.Fs, h Header) ([]byte, error) {
	return readRegion(fsys, h, h.ContentStart, h.ContentSize, false)
}

func readRegion(fsys afero.Fs, h Header, start, size int64, verify bool) ([]byte, error) {
	f, err := fsys.Open(h.BlobPath)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", h.BlobPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat blob %s: %w", h.BlobPath, err)
	}
	if err := h.Validate(info.Size()); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, start, size), buf); err != nil {
		return nil, fmt.Errorf("%w: short read at %d: %v", ErrHeaderInvalid, start, err)
	}

	if verify && h.Digest != "" {
		if got := h.Digest.Algorithm().FromBytes(buf); got != h.Digest {
			return nil, fmt.Errorf("%w: resource digest mismatch: got %s, want %s",
				ErrHeaderInvalid, got, h.Digest)
		}
	}
	return buf, nil
}
