package analyzer

import (
	"bytes"
	"io"
)

const (
	inesHeaderSize  = 16
	inesTrainerSize = 512
	inesPRGBank     = 16 * 1024
	inesCHRBank     = 8 * 1024
)

var inesMagic = []byte{'N', 'E', 'S', 0x1A}

// NES handles iNES and NES 2.0 images. No-Intro hashes the body without
// the 16-byte container header.
type NES struct{}

func NewNES() *NES { return &NES{} }

func (*NES) Name() string { return "nes" }

func (*NES) FileExtensions() []string { return []string{".nes"} }

func (*NES) DatNames() []string {
	return []string{"Nintendo - Nintendo Entertainment System (Headerless)"}
}

func (*NES) DatSource() DatSource { return DatSourceNoIntro }

func (*NES) DatHeaderSize(r io.ReadSeeker, fileSize uint64) (uint64, error) {
	if fileSize < inesHeaderSize {
		return 0, nil
	}
	magic := make([]byte, len(inesMagic))
	if err := readAt(r, 0, magic); err != nil {
		return 0, err
	}
	if bytes.Equal(magic, inesMagic) {
		return inesHeaderSize, nil
	}
	return 0, nil
}

// Analyze derives the expected body size from the PRG/CHR bank counts.
func (*NES) Analyze(r io.ReadSeeker, _ Options) (*RomIdentification, error) {
	size, err := fileSize(r)
	if err != nil {
		return nil, err
	}
	ident := &RomIdentification{}
	if size < inesHeaderSize {
		return ident, nil
	}
	header := make([]byte, inesHeaderSize)
	if err := readAt(r, 0, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header[:4], inesMagic) {
		return ident, nil
	}

	prg := uint64(header[4])
	chr := uint64(header[5])
	if header[7]&0x0C == 0x08 {
		// NES 2.0: upper nibbles of byte 9 extend the bank counts; the
		// exponent-multiplier form (nibble 0xF) is left undeclared.
		prgHi, chrHi := uint64(header[9]&0x0F), uint64(header[9]>>4)
		if prgHi == 0x0F || chrHi == 0x0F {
			return ident, nil
		}
		prg |= prgHi << 8
		chr |= chrHi << 8
	}
	expected := prg*inesPRGBank + chr*inesCHRBank
	if header[6]&0x04 != 0 {
		expected += inesTrainerSize
	}
	ident.ExpectedSize = expected
	return ident, nil
}

func (*NES) ExtractDatGameCode(string) (string, bool) { return "", false }
