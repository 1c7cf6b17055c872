// Package analyzer defines what the matching and repair engine needs from a
// platform specific ROM header parser, plus a handful of small parsers.
package analyzer

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// DatSource names the catalog convention a platform is matched against.
type DatSource int

const (
	DatSourceOther DatSource = iota
	// DatSourceNoIntro catalogs describe cartridge dumps.
	DatSourceNoIntro
	// DatSourceRedump catalogs describe optical disc dumps.
	DatSourceRedump
)

func (s DatSource) String() string {
	switch s {
	case DatSourceNoIntro:
		return "no-intro"
	case DatSourceRedump:
		return "redump"
	default:
		return "other"
	}
}

// Options tunes Analyze.
type Options struct {
	// Quick skips checks that need to read beyond the header.
	Quick bool
}

// RomIdentification is what a header parser learned about a file.
type RomIdentification struct {
	Serial        string
	InternalTitle string
	// ExpectedSize is the body size the header declares, 0 when unknown.
	ExpectedSize uint64
}

// Analyzer is the per-platform collaborator of the matching engine.
type Analyzer interface {
	Name() string
	FileExtensions() []string
	DatNames() []string
	DatSource() DatSource
	// DatHeaderSize returns how many leading bytes are not part of the
	// catalog checksum (container or copier header).
	DatHeaderSize(r io.ReadSeeker, fileSize uint64) (uint64, error)
	Analyze(r io.ReadSeeker, opts Options) (*RomIdentification, error)
	// ExtractDatGameCode truncates a header serial to the catalog key.
	ExtractDatGameCode(serial string) (string, bool)
}

var registry = map[string]func() Analyzer{
	"generic": func() Analyzer { return NewGeneric(nil) },
	"nes":     func() Analyzer { return NewNES() },
	"snes":    func() Analyzer { return NewSNES() },
	"gba":     func() Analyzer { return NewGBA() },
	"psx":     func() Analyzer { return NewPSX() },
}

// Lookup returns the analyzer registered under name.
func Lookup(name string) (Analyzer, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("analyzer %s not registered (known: %s)", name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Names lists registered analyzer names in order.
func Names() []string {
	rs := make([]string, 0, len(registry))
	for k := range registry {
		rs = append(rs, k)
	}
	sort.Strings(rs)
	return rs
}

// MatchesExtension reports whether path carries one of the analyzer's
// extensions.
func MatchesExtension(a Analyzer, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, want := range a.FileExtensions() {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func fileSize(r io.Seeker) (uint64, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek end: %w", err)
	}
	return uint64(end), nil
}

func readAt(r io.ReadSeeker, offset int64, buf []byte) error {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek %d: %w", offset, err)
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("read %d bytes at %d: %w", len(buf), offset, err)
	}
	return nil
}

// cleanString trims NUL padding and spaces from fixed width header text.
func cleanString(b []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}
