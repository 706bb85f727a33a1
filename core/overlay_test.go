package snapshot

import (
	"io"
	"io/fs"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxmc/nexe/core/internal/vpath"
)

func testOverlay(t *testing.T) (*Overlay, afero.Fs) {
	t.Helper()

	a := testArchive(t, map[string]string{
		"app/main.js": `console.log("hi")`,
		"etc/passwd":  "embedded imposter",
	})

	real := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(real, "/etc/passwd", []byte("root:x:0:0"), 0o644))
	require.NoError(t, afero.WriteFile(real, "/usr/share/doc.txt", []byte("real doc"), 0o644))

	o := NewOverlay(a, real, vpath.Normalizer{ProjectRoot: "/usr/bin"})
	return o, real
}

func TestOverlayDispatch(t *testing.T) {
	o, _ := testOverlay(t)

	t.Run("virtual paths hit the archive", func(t *testing.T) {
		b, err := o.ReadFile("/snapshot/app/main.js")
		require.NoError(t, err)
		assert.Equal(t, `console.log("hi")`, string(b))
	})

	t.Run("real paths hit the real fs", func(t *testing.T) {
		b, err := o.ReadFile("/usr/share/doc.txt")
		require.NoError(t, err)
		assert.Equal(t, "real doc", string(b))
	})

	t.Run("no shadowing across the boundary", func(t *testing.T) {
		// The archive carries etc/passwd; outside /snapshot the real file
		// must win, inside it the embedded one.
		b, err := o.ReadFile("/etc/passwd")
		require.NoError(t, err)
		assert.Equal(t, "root:x:0:0", string(b))

		b, err = o.ReadFile("/snapshot/etc/passwd")
		require.NoError(t, err)
		assert.Equal(t, "embedded imposter", string(b))
	})

	t.Run("project root paths are rewritten", func(t *testing.T) {
		b, err := o.ReadFile("/usr/bin/app/main.js")
		require.NoError(t, err)
		assert.Equal(t, `console.log("hi")`, string(b))
	})

	t.Run("missing on either side", func(t *testing.T) {
		_, err := o.ReadFile("/snapshot/nope.js")
		assert.ErrorIs(t, err, fs.ErrNotExist)

		_, err = o.ReadFile("/var/nope")
		assert.Error(t, err)
	})
}

// Reading the same archive file must yield identical bytes whatever path
// form names it.
func TestOverlayPathFormEquivalence(t *testing.T) {
	a := testArchive(t, map[string]string{"src/x.js": "export {}"})
	o := NewOverlay(a, afero.NewMemMapFs(), vpath.Normalizer{
		ProjectRoot:   `C:\app`,
		Drive:         "C:",
		CaseFoldDrive: true,
	})

	want := "export {}"
	for _, form := range []string{
		"/snapshot/src/x.js",
		`C:\snapshot\src\x.js`,
		`C:\app\src\x.js`,
		`\\?\C:\app\src\x.js`,
	} {
		b, err := o.ReadFile(form)
		require.NoError(t, err, form)
		assert.Equal(t, want, string(b), form)
	}
}

func TestOverlayStat(t *testing.T) {
	o, _ := testOverlay(t)

	info, err := o.Stat("/snapshot/app")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = o.Stat("/usr/share/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len("real doc")), info.Size())

	assert.True(t, o.IsDir("/snapshot"))
	assert.True(t, o.IsFile("/usr/share/doc.txt"))
	assert.False(t, o.IsFile("/snapshot/app"))
	assert.False(t, o.IsDir("/var/missing"))
}

func TestOverlayOpen(t *testing.T) {
	o, _ := testOverlay(t)

	t.Run("virtual", func(t *testing.T) {
		f, err := o.Open("/snapshot/app/main.js")
		require.NoError(t, err)
		defer f.Close()

		b, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, `console.log("hi")`, string(b))
	})

	t.Run("real", func(t *testing.T) {
		f, err := o.Open("/usr/share/doc.txt")
		require.NoError(t, err)
		defer f.Close()

		b, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "real doc", string(b))
	})
}

func TestOverlayWrites(t *testing.T) {
	o, real := testOverlay(t)

	t.Run("read-only under the virtual root", func(t *testing.T) {
		_, err := o.Create("/snapshot/new.js")
		assert.ErrorIs(t, err, ErrReadOnly)

		_, err = o.OpenFile("/snapshot/app/main.js", os.O_WRONLY, 0o644)
		assert.ErrorIs(t, err, ErrReadOnly)

		_, err = o.OpenFile("/snapshot/app/main.js", os.O_RDWR, 0o644)
		assert.ErrorIs(t, err, ErrReadOnly)

		assert.ErrorIs(t, o.Remove("/snapshot/app/main.js"), ErrReadOnly)
		assert.ErrorIs(t, o.RemoveAll("/snapshot/app"), ErrReadOnly)
		assert.ErrorIs(t, o.Mkdir("/snapshot/newdir", 0o755), ErrReadOnly)
		assert.ErrorIs(t, o.MkdirAll("/snapshot/a/b", 0o755), ErrReadOnly)
		assert.ErrorIs(t, o.Rename("/snapshot/app/main.js", "/tmp/x"), ErrReadOnly)
		assert.ErrorIs(t, o.Rename("/tmp/x", "/snapshot/x"), ErrReadOnly)
	})

	t.Run("read-only flags still open virtual files", func(t *testing.T) {
		f, err := o.OpenFile("/snapshot/app/main.js", os.O_RDONLY, 0)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	})

	t.Run("real side writes pass through", func(t *testing.T) {
		f, err := o.Create("/tmp/out.txt")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		require.NoError(t, o.MkdirAll("/tmp/sub/dir", 0o755))
		require.NoError(t, o.Rename("/tmp/out.txt", "/tmp/sub/out.txt"))
		require.NoError(t, o.Remove("/tmp/sub/out.txt"))

		// Gone from the backing fs as well.
		_, err = real.Stat("/tmp/sub/out.txt")
		assert.Error(t, err)
	})
}

func TestOverlayReadDir(t *testing.T) {
	o, _ := testOverlay(t)

	names, err := o.ReadDir("/snapshot")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "etc"}, names)

	names, err = o.ReadDir("/usr/share")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.txt"}, names)
}
