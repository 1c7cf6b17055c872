// Package hasher computes DAT checksums of rom data, optionally padded with fill bytes.
package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
)

// fillChunkSize bounds the buffer used to feed virtual padding.
const fillChunkSize = 64 * 1024

// ErrHeaderBeyondEOF is returned when the header skip exceeds the file size.
var ErrHeaderBeyondEOF = errors.New("header skip beyond end of file")

// FileHashes is the digest set of a file body. DataSize counts the bytes
// that went through the hashes, padding included.
type FileHashes struct {
	DataSize uint64
	CRC32    string
	SHA1     string
	MD5      string
}

// PaddingSpec describes fill bytes hashed before and after the real body.
type PaddingSpec struct {
	PrependSize uint64
	AppendSize  uint64
	FillByte    byte
}

// IsZero reports whether no fill bytes are added.
func (p PaddingSpec) IsZero() bool {
	return p.PrependSize == 0 && p.AppendSize == 0
}

// Total returns the number of fill bytes added.
func (p PaddingSpec) Total() uint64 {
	return p.PrependSize + p.AppendSize
}

type digest struct {
	crc  hash.Hash32
	sha1 hash.Hash
	md5  hash.Hash
	w    io.Writer
	n    uint64
}

func newDigest() *digest {
	d := &digest{
		crc:  crc32.NewIEEE(),
		sha1: sha1.New(),
		md5:  md5.New(),
	}
	d.w = io.MultiWriter(d.crc, d.sha1, d.md5)
	return d
}

func (d *digest) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	d.n += uint64(n)
	return n, err
}

// fill feeds count copies of b without allocating more than one chunk.
func (d *digest) fill(b byte, count uint64) {
	if count == 0 {
		return
	}
	size := uint64(fillChunkSize)
	if count < size {
		size = count
	}
	chunk := make([]byte, size)
	if b != 0 {
		for i := range chunk {
			chunk[i] = b
		}
	}
	for count > 0 {
		n := size
		if count < n {
			n = count
		}
		// hash writers never fail
		_, _ = d.Write(chunk[:n])
		count -= n
	}
}

func (d *digest) result() FileHashes {
	return FileHashes{
		DataSize: d.n,
		CRC32:    fmt.Sprintf("%08x", d.crc.Sum32()),
		SHA1:     hex.EncodeToString(d.sha1.Sum(nil)),
		MD5:      hex.EncodeToString(d.md5.Sum(nil)),
	}
}

// HashPlain hashes r from headerSkip to EOF.
func HashPlain(r io.ReadSeeker, headerSkip uint64) (FileHashes, error) {
	return HashWithPadding(r, headerSkip, PaddingSpec{})
}

// HashWithPadding hashes r from headerSkip to EOF as if p.PrependSize fill
// bytes preceded the body and p.AppendSize fill bytes followed it. The
// result equals hashing the materialised padded buffer.
func HashWithPadding(r io.ReadSeeker, headerSkip uint64, p PaddingSpec) (FileHashes, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return FileHashes{}, fmt.Errorf("seek end: %w", err)
	}
	if headerSkip > uint64(end) {
		return FileHashes{}, fmt.Errorf("skip %d of %d bytes: %w", headerSkip, end, ErrHeaderBeyondEOF)
	}
	if _, err := r.Seek(int64(headerSkip), io.SeekStart); err != nil {
		return FileHashes{}, fmt.Errorf("seek past header: %w", err)
	}
	return HashStream(r, p)
}

// HashStream hashes everything r yields, wrapped in the fill bytes of p.
// It is used for sources that cannot seek, such as archive members.
func HashStream(r io.Reader, p PaddingSpec) (FileHashes, error) {
	d := newDigest()
	d.fill(p.FillByte, p.PrependSize)
	if _, err := io.Copy(d, r); err != nil {
		return FileHashes{}, fmt.Errorf("hash body: %w", err)
	}
	d.fill(p.FillByte, p.AppendSize)
	return d.result(), nil
}

// HashFile opens path and hashes it after skipping headerSkip bytes.
func HashFile(path string, headerSkip uint64) (FileHashes, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileHashes{}, fmt.Errorf("open file for hash %s: %w", path, err)
	}
	defer f.Close()

	h, err := HashPlain(f, headerSkip)
	if err != nil {
		return FileHashes{}, fmt.Errorf("hash file %s: %w", path, err)
	}
	return h, nil
}
