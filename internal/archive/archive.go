// Package archive streams the members of zip, 7z and rar files.
package archive

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned by Open for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Member describes a regular file inside an archive.
type Member struct {
	Name string
	Size int64
}

// WalkFunc is called once per member; r is only valid during the call.
type WalkFunc func(m Member, r io.Reader) error

// Archive gives sequential access to all members.
type Archive interface {
	Walk(fn WalkFunc) error
	Close() error
}

// Open opens the archive at path based on its extension.
func Open(path string) (Archive, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return openZip(path)
	case ".7z":
		return openSevenZip(path)
	case ".rar":
		return openRar(path)
	default:
		return nil, fmt.Errorf("open archive %s: %w", path, ErrUnsupportedFormat)
	}
}

// IsArchive reports whether Open understands the extension of path.
func IsArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".7z", ".rar":
		return true
	default:
		return false
	}
}
