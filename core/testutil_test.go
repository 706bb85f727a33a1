package snapshot

import (
	"bytes"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// zipBytes builds an in-memory ZIP archive with the given members, all
// using the same compression method.
func zipBytes(t *testing.T, files map[string]string, method uint16) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// testArchive opens an archive over stored (uncompressed) members.
func testArchive(t *testing.T, files map[string]string) *Archive {
	t.Helper()
	a, err := OpenArchive(zipBytes(t, files, zip.Store))
	require.NoError(t, err)
	return a
}
