package archive

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("dir/")
	require.NoError(t, err)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestZipWalk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "set.zip")
	writeZip(t, path, map[string]string{"a.bin": "alpha", "dir/b.bin": "bravo!"})

	arc, err := Open(path)
	require.NoError(t, err)
	defer arc.Close()

	got := map[string]string{}
	err = arc.Walk(func(m Member, r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(len(data)), m.Size)
		got[m.Name] = string(data)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.bin": "alpha", "dir/b.bin": "bravo!"}, got)

	stop := errors.New("stop")
	err = arc.Walk(func(Member, io.Reader) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open("/roms/game.tar")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.True(t, IsArchive("x.ZIP"))
	assert.True(t, IsArchive("x.7z"))
	assert.True(t, IsArchive("x.rar"))
	assert.False(t, IsArchive("x.bin"))

	_, err = Open(filepath.Join(t.TempDir(), "missing.7z"))
	assert.Error(t, err)
	_, err = Open(filepath.Join(t.TempDir(), "missing.rar"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
