package analyzer

import "io"

var defaultGenericExtensions = []string{".bin", ".rom"}

// Generic is a header-less cartridge analyzer for platforms without a
// dedicated parser. It never declares an expected size.
type Generic struct {
	exts []string
}

// NewGeneric builds a generic analyzer; nil exts selects .bin and .rom.
func NewGeneric(exts []string) *Generic {
	if len(exts) == 0 {
		exts = defaultGenericExtensions
	}
	return &Generic{exts: exts}
}

func (*Generic) Name() string { return "generic" }

func (g *Generic) FileExtensions() []string { return g.exts }

func (*Generic) DatNames() []string { return nil }

func (*Generic) DatSource() DatSource { return DatSourceNoIntro }

func (*Generic) DatHeaderSize(io.ReadSeeker, uint64) (uint64, error) { return 0, nil }

func (*Generic) Analyze(io.ReadSeeker, Options) (*RomIdentification, error) {
	return &RomIdentification{}, nil
}

func (*Generic) ExtractDatGameCode(string) (string, bool) { return "", false }
