package analyzer

import (
	"encoding/binary"
	"io"
)

const (
	snesCopierHeaderSize = 512
	snesLoROMHeaderStart = 0x7FC0
	snesHiROMHeaderStart = 0xFFC0
	snesHeaderSize       = 32

	snesTitleSize                = 21
	snesROMSizeOffset            = 0x17
	snesChecksumComplementOffset = 0x1C
	snesChecksumOffset           = 0x1E
)

// SNES handles Super Famicom images, with or without a copier header.
type SNES struct{}

func NewSNES() *SNES { return &SNES{} }

func (*SNES) Name() string { return "snes" }

func (*SNES) FileExtensions() []string { return []string{".sfc", ".smc", ".swc"} }

func (*SNES) DatNames() []string {
	return []string{"Nintendo - Super Nintendo Entertainment System"}
}

func (*SNES) DatSource() DatSource { return DatSourceNoIntro }

// DatHeaderSize detects a copier header by the 512-byte remainder it
// leaves on an otherwise 1 KiB aligned image.
func (*SNES) DatHeaderSize(_ io.ReadSeeker, fileSize uint64) (uint64, error) {
	if fileSize%1024 == snesCopierHeaderSize {
		return snesCopierHeaderSize, nil
	}
	return 0, nil
}

// Analyze reads the internal header; the ROM size byte declares the
// expected image size as 1 KiB << n.
func (s *SNES) Analyze(r io.ReadSeeker, _ Options) (*RomIdentification, error) {
	size, err := fileSize(r)
	if err != nil {
		return nil, err
	}
	skip, _ := s.DatHeaderSize(r, size)

	ident := &RomIdentification{}
	header := make([]byte, snesHeaderSize)
	for _, start := range []uint64{snesLoROMHeaderStart, snesHiROMHeaderStart} {
		offset := skip + start
		if offset+snesHeaderSize > size {
			continue
		}
		if err := readAt(r, int64(offset), header); err != nil {
			return nil, err
		}
		cs := binary.LittleEndian.Uint16(header[snesChecksumOffset:])
		csc := binary.LittleEndian.Uint16(header[snesChecksumComplementOffset:])
		if cs+csc != 0xFFFF {
			continue
		}
		ident.InternalTitle = cleanString(header[:snesTitleSize])
		if n := header[snesROMSizeOffset]; n >= 0x08 && n <= 0x0D {
			ident.ExpectedSize = uint64(1024) << n
		}
		return ident, nil
	}
	return ident, nil
}

func (*SNES) ExtractDatGameCode(string) (string, bool) { return "", false }
