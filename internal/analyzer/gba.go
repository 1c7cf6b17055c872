package analyzer

import (
	"io"
	"strings"
)

const (
	gbaHeaderSize     = 192
	gbaTitleOffset    = 0xA0
	gbaTitleSize      = 12
	gbaGameCodeOffset = 0xAC
	gbaGameCodeSize   = 4
	gbaSerialPrefix   = "AGB-"
)

// GBA reads the cartridge game code; catalogs key GBA serials as
// AGB-XXXX followed by a region suffix.
type GBA struct{}

func NewGBA() *GBA { return &GBA{} }

func (*GBA) Name() string { return "gba" }

func (*GBA) FileExtensions() []string { return []string{".gba", ".agb"} }

func (*GBA) DatNames() []string { return []string{"Nintendo - Game Boy Advance"} }

func (*GBA) DatSource() DatSource { return DatSourceNoIntro }

func (*GBA) DatHeaderSize(io.ReadSeeker, uint64) (uint64, error) { return 0, nil }

func (*GBA) Analyze(r io.ReadSeeker, _ Options) (*RomIdentification, error) {
	size, err := fileSize(r)
	if err != nil {
		return nil, err
	}
	ident := &RomIdentification{}
	if size < gbaHeaderSize {
		return ident, nil
	}
	header := make([]byte, gbaHeaderSize)
	if err := readAt(r, 0, header); err != nil {
		return nil, err
	}
	ident.InternalTitle = cleanString(header[gbaTitleOffset : gbaTitleOffset+gbaTitleSize])
	if code := cleanString(header[gbaGameCodeOffset : gbaGameCodeOffset+gbaGameCodeSize]); len(code) == gbaGameCodeSize {
		ident.Serial = gbaSerialPrefix + code
	}
	return ident, nil
}

// ExtractDatGameCode maps AGB-XXXX[-REG] to XXXX.
func (*GBA) ExtractDatGameCode(serial string) (string, bool) {
	serial = strings.ToUpper(strings.TrimSpace(serial))
	serial = strings.TrimPrefix(serial, gbaSerialPrefix)
	if len(serial) < gbaGameCodeSize {
		return "", false
	}
	return serial[:gbaGameCodeSize], true
}
