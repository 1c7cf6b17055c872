package hasher

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func materialized(data []byte) FileHashes {
	s1 := sha1.Sum(data)
	m5 := md5.Sum(data)
	return FileHashes{
		DataSize: uint64(len(data)),
		CRC32:    fmt.Sprintf("%08x", crc32.ChecksumIEEE(data)),
		SHA1:     hex.EncodeToString(s1[:]),
		MD5:      hex.EncodeToString(m5[:]),
	}
}

func body(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + 3)
	}
	return out
}

func TestHashPlainMatchesDirectDigest(t *testing.T) {
	data := body(1000)
	got, err := HashPlain(bytes.NewReader(data), 0)
	require.NoError(t, err)
	assert.Equal(t, materialized(data), got)
}

func TestHashPlainSkipsHeader(t *testing.T) {
	data := body(528)
	got, err := HashPlain(bytes.NewReader(data), 16)
	require.NoError(t, err)
	assert.Equal(t, materialized(data[16:]), got)

	got, err = HashPlain(bytes.NewReader(data), uint64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.DataSize)
}

func TestHashWithPaddingEqualsMaterializedBuffer(t *testing.T) {
	sizes := []uint64{0, 1, 511, fillChunkSize - 1, fillChunkSize, fillChunkSize + 1, 3*fillChunkSize + 17}
	fills := []byte{0x00, 0xFF, 0x5A}
	data := body(777)

	for _, fill := range fills {
		for _, pre := range sizes {
			for _, app := range []uint64{0, 1, fillChunkSize + 3} {
				spec := PaddingSpec{PrependSize: pre, AppendSize: app, FillByte: fill}
				padded := append(bytes.Repeat([]byte{fill}, int(pre)), data...)
				padded = append(padded, bytes.Repeat([]byte{fill}, int(app))...)

				got, err := HashWithPadding(bytes.NewReader(data), 0, spec)
				require.NoError(t, err)
				assert.Equal(t, materialized(padded), got, "fill=%#x pre=%d app=%d", fill, pre, app)
				assert.Equal(t, pre+uint64(len(data))+app, got.DataSize)
			}
		}
	}
}

func TestHashWithPaddingRespectsHeaderSkip(t *testing.T) {
	data := body(600)
	spec := PaddingSpec{AppendSize: 424, FillByte: 0xFF}
	got, err := HashWithPadding(bytes.NewReader(data), 512, spec)
	require.NoError(t, err)

	want := append(append([]byte{}, data[512:]...), bytes.Repeat([]byte{0xFF}, 424)...)
	assert.Equal(t, materialized(want), got)
	assert.Equal(t, uint64(88+424), got.DataSize)
}

func TestHashHeaderBeyondEOF(t *testing.T) {
	_, err := HashPlain(bytes.NewReader(body(10)), 11)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeaderBeyondEOF))
}

func TestHashStream(t *testing.T) {
	data := body(300)
	got, err := HashStream(bytes.NewBuffer(data), PaddingSpec{PrependSize: 4})
	require.NoError(t, err)
	assert.Equal(t, materialized(append(make([]byte, 4), data...)), got)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.bin")
	data := body(64)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := HashFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, materialized(data), got)

	_, err = HashFile(filepath.Join(dir, "missing.bin"), 0)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPaddingSpec(t *testing.T) {
	assert.True(t, PaddingSpec{FillByte: 0xFF}.IsZero())
	assert.Equal(t, uint64(7), PaddingSpec{PrependSize: 3, AppendSize: 4}.Total())
}
