package analyzer

import (
	"io"
	"strings"
)

// PSX handles raw PlayStation disc images matched against Redump.
type PSX struct{}

func NewPSX() *PSX { return &PSX{} }

func (*PSX) Name() string { return "psx" }

func (*PSX) FileExtensions() []string { return []string{".bin", ".iso", ".img"} }

func (*PSX) DatNames() []string { return []string{"Sony - PlayStation"} }

func (*PSX) DatSource() DatSource { return DatSourceRedump }

func (*PSX) DatHeaderSize(io.ReadSeeker, uint64) (uint64, error) { return 0, nil }

func (*PSX) Analyze(io.ReadSeeker, Options) (*RomIdentification, error) {
	return &RomIdentification{}, nil
}

// ExtractDatGameCode turns a boot file name such as SLUS_005.94 into the
// SLUS-00594 form used by catalogs.
func (*PSX) ExtractDatGameCode(serial string) (string, bool) {
	serial = strings.ToUpper(strings.TrimSpace(serial))
	serial = strings.ReplaceAll(serial, "_", "-")
	serial = strings.ReplaceAll(serial, ".", "")
	if i := strings.IndexByte(serial, ';'); i >= 0 {
		serial = serial[:i]
	}
	if len(serial) < len("SLUS-0") || !strings.Contains(serial, "-") {
		return "", false
	}
	return serial, true
}
