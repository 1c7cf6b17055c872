package dat

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoGames is returned when a document yields neither a header nor a game.
var ErrNoGames = errors.New("no games and no header found")

// Format identifies the textual layout of a DAT document.
type Format int

const (
	// FormatLogiqx is the XML datafile layout used by No-Intro, Redump and MAME.
	FormatLogiqx Format = iota + 1
	// FormatClrMamePro is the parenthesised block layout.
	FormatClrMamePro
)

func (f Format) String() string {
	switch f {
	case FormatLogiqx:
		return "logiqx"
	case FormatClrMamePro:
		return "clrmamepro"
	default:
		return "unknown"
	}
}

// DatFile is a parsed reference catalog. It is not modified after Parse returns.
type DatFile struct {
	Name        string
	Description string
	Version     string
	Games       []DatGame
}

// DatGame is a single release in the catalog.
type DatGame struct {
	Name   string
	Region string
	Roms   []DatRom
}

// DatRom is one file of a release. CRC is always present and lowercase;
// SHA1, MD5 and Serial are empty when the catalog does not carry them.
type DatRom struct {
	Name   string
	Size   uint64
	CRC    string
	SHA1   string
	MD5    string
	Serial string
}

// RomCount returns the number of rom entries across all games.
func (df *DatFile) RomCount() int {
	if df == nil {
		return 0
	}
	total := 0
	for i := range df.Games {
		total += len(df.Games[i].Roms)
	}
	return total
}

// FindGame returns the first game matching the given name.
func (df *DatFile) FindGame(name string) *DatGame {
	if df == nil {
		return nil
	}
	for i := range df.Games {
		if df.Games[i].Name == name {
			return &df.Games[i]
		}
	}
	return nil
}

// Parse detects the document format and decodes it.
func Parse(r io.Reader) (*DatFile, error) {
	format, body, err := DetectFormat(r)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatLogiqx:
		return parseLogiqx(body)
	case FormatClrMamePro:
		return parseClrMamePro(body)
	default:
		return nil, fmt.Errorf("unsupported dat format %d", format)
	}
}

// DetectFormat reads up to the first non-whitespace byte to decide the
// format. The returned reader yields the complete document again, with
// the peeked bytes put back in front of the remaining stream.
func DetectFormat(r io.Reader) (Format, io.Reader, error) {
	br := bufio.NewReader(r)
	peeked := make([]byte, 0, 16)
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return 0, nil, ErrNoGames
		}
		if err != nil {
			return 0, nil, fmt.Errorf("peek dat format: %w", err)
		}
		// UTF-8 BOM is dropped, the xml decoder does not expect one.
		if len(peeked) == 0 && b == 0xEF {
			if bom, perr := br.Peek(2); perr == nil && bom[0] == 0xBB && bom[1] == 0xBF {
				_, _ = br.Discard(2)
				continue
			}
		}
		peeked = append(peeked, b)
		if isSpace(b) {
			continue
		}
		body := io.MultiReader(bytes.NewReader(peeked), br)
		if b == '<' {
			return FormatLogiqx, body, nil
		}
		return FormatClrMamePro, body, nil
	}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', '\v':
		return true
	}
	return false
}

// romFields collects the raw key/value pairs of one rom entry; both parsers
// feed it and share the validation in build.
type romFields map[string]string

func (f romFields) build(game string) (DatRom, bool, error) {
	name := strings.TrimSpace(f["name"])
	if f.nodump() {
		return DatRom{}, false, nil
	}
	rawSize := strings.TrimSpace(f["size"])
	if rawSize == "" {
		return DatRom{}, false, fmt.Errorf("game %q rom %q: missing size", game, name)
	}
	size, err := strconv.ParseUint(rawSize, 10, 64)
	if err != nil {
		return DatRom{}, false, fmt.Errorf("game %q rom %q: parse size %q: %w", game, name, rawSize, err)
	}
	crc := normalizeHex(f["crc"])
	if crc == "" {
		return DatRom{}, false, fmt.Errorf("game %q rom %q: missing crc", game, name)
	}
	return DatRom{
		Name:   name,
		Size:   size,
		CRC:    crc,
		SHA1:   normalizeHex(f["sha1"]),
		MD5:    normalizeHex(f["md5"]),
		Serial: strings.TrimSpace(f["serial"]),
	}, true, nil
}

// nodump covers status="nodump", "flags nodump" and a bare nodump flag.
func (f romFields) nodump() bool {
	if _, ok := f["nodump"]; ok {
		return true
	}
	for _, key := range []string{"status", "flags"} {
		for _, v := range strings.Fields(f[key]) {
			if strings.EqualFold(v, "nodump") {
				return true
			}
		}
	}
	return false
}

// closeGame propagates a game level serial to roms without their own.
func closeGame(game *DatGame, serial string) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return
	}
	for i := range game.Roms {
		if game.Roms[i].Serial == "" {
			game.Roms[i].Serial = serial
		}
	}
}

func normalizeHex(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.TrimPrefix(v, "0x")
}
