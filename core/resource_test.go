package snapshot

import (
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBlob lays out a fake packed executable: native code padding, the
// entrypoint text, then the archive bytes.
func writeBlob(t *testing.T, fsys afero.Fs, path string, content, resource []byte) Header {
	t.Helper()

	padding := make([]byte, 512)
	blob := append(append(append([]byte{}, padding...), content...), resource...)
	require.NoError(t, afero.WriteFile(fsys, path, blob, 0o755))

	return Header{
		BlobPath:      path,
		ContentStart:  int64(len(padding)),
		ContentSize:   int64(len(content)),
		ResourceStart: int64(len(padding) + len(content)),
		ResourceSize:  int64(len(resource)),
	}
}

func TestHeaderValidate(t *testing.T) {
	const blobSize = 1000

	valid := Header{BlobPath: "/usr/bin/tool", ResourceStart: 100, ResourceSize: 900}
	require.NoError(t, valid.Validate(blobSize))

	tests := []struct {
		name   string
		mutate func(*Header)
	}{
		{"empty blob path", func(h *Header) { h.BlobPath = "" }},
		{"negative resource start", func(h *Header) { h.ResourceStart = -1 }},
		{"negative resource size", func(h *Header) { h.ResourceSize = -1 }},
		{"negative content start", func(h *Header) { h.ContentStart = -1 }},
		{"negative content size", func(h *Header) { h.ContentSize = -1 }},
		{"resource past end", func(h *Header) { h.ResourceSize = 901 }},
		{"resource start past end", func(h *Header) { h.ResourceStart = 1001; h.ResourceSize = 0 }},
		{"content past end", func(h *Header) { h.ContentStart = 999; h.ContentSize = 2 }},
		{"malformed digest", func(h *Header) { h.Digest = "sha256:short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := valid
			tt.mutate(&h)
			assert.ErrorIs(t, h.Validate(blobSize), ErrHeaderInvalid)
		})
	}

	t.Run("boundary is inclusive", func(t *testing.T) {
		h := Header{BlobPath: "x", ResourceStart: 0, ResourceSize: blobSize}
		assert.NoError(t, h.Validate(blobSize))
	})
}

func TestReadResource(t *testing.T) {
	resource := zipBytes(t, map[string]string{"app/main.js": `console.log("hi")`}, zip.Store)
	entry := []byte(`require("/snapshot/app/main.js")`)

	t.Run("round trip", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		h := writeBlob(t, fsys, "/usr/bin/tool", entry, resource)

		buf, err := ReadResource(fsys, h)
		require.NoError(t, err)
		assert.Equal(t, resource, buf)

		a, err := OpenArchive(buf)
		require.NoError(t, err)
		assert.True(t, a.IsFile("app/main.js"))
	})

	t.Run("content region", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		h := writeBlob(t, fsys, "/usr/bin/tool", entry, resource)

		text, err := ReadContent(fsys, h)
		require.NoError(t, err)
		assert.Equal(t, entry, text)
	})

	t.Run("missing blob", func(t *testing.T) {
		_, err := ReadResource(afero.NewMemMapFs(), Header{BlobPath: "/nope"})
		assert.Error(t, err)
	})

	t.Run("short read is fatal", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		h := writeBlob(t, fsys, "/usr/bin/tool", entry, resource)
		h.ResourceSize += 10

		_, err := ReadResource(fsys, h)
		assert.ErrorIs(t, err, ErrHeaderInvalid)
	})

	t.Run("digest verified", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		h := writeBlob(t, fsys, "/usr/bin/tool", entry, resource)
		h.Digest = digest.FromBytes(resource)

		buf, err := ReadResource(fsys, h)
		require.NoError(t, err)
		assert.Equal(t, resource, buf)
	})

	t.Run("digest mismatch", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		h := writeBlob(t, fsys, "/usr/bin/tool", entry, resource)
		h.Digest = digest.FromString("something else")

		_, err := ReadResource(fsys, h)
		assert.ErrorIs(t, err, ErrHeaderInvalid)
	})
}
