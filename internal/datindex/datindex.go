// Package datindex merges parsed catalogs into one read-only lookup
// structure keyed by exact hash, by size and by serial.
package datindex

import (
	"sort"
	"strings"

	"github.com/xxxsen/retrojunk/internal/dat"
	"github.com/xxxsen/retrojunk/internal/hasher"
)

// MatchMethod tells which lookup path produced a match.
type MatchMethod int

const (
	MatchByHash MatchMethod = iota + 1
	MatchBySerial
	MatchBySerialAndHash
)

func (m MatchMethod) String() string {
	switch m {
	case MatchByHash:
		return "hash"
	case MatchBySerial:
		return "serial"
	case MatchBySerialAndHash:
		return "serial+hash"
	default:
		return "unknown"
	}
}

// MatchResult points at the entry a file was identified as.
type MatchResult struct {
	GameIndex int
	Method    MatchMethod
}

// SerialLookupKind is the outcome class of MatchBySerial.
type SerialLookupKind int

const (
	SerialNotFound SerialLookupKind = iota
	SerialMatch
	SerialAmbiguous
)

// SerialLookupResult carries Match for SerialMatch and the sorted candidate
// game names for SerialAmbiguous.
type SerialLookupResult struct {
	Kind       SerialLookupKind
	Match      MatchResult
	Candidates []string
}

// GameEntry is one (game, rom) pair of the merged catalogs.
type GameEntry struct {
	Index  int
	Name   string
	Size   uint64
	CRC    string
	SHA1   string
	MD5    string
	Serial string
	Region string
}

type hashKey struct {
	size uint64
	crc  string
}

// Index is built once and never mutated, so it is safe for concurrent
// readers.
type Index struct {
	entries     []GameEntry
	bySize      map[uint64][]int
	byExactHash map[hashKey]int
	bySerial    map[string][]int
}

// FromDats flattens the catalogs in encounter order. When two entries share
// size and crc the later one wins the exact-hash slot.
func FromDats(dats ...*dat.DatFile) *Index {
	idx := &Index{
		bySize:      make(map[uint64][]int),
		byExactHash: make(map[hashKey]int),
		bySerial:    make(map[string][]int),
	}
	for _, df := range dats {
		if df == nil {
			continue
		}
		for _, game := range df.Games {
			for _, rom := range game.Roms {
				idx.add(game, rom)
			}
		}
	}
	return idx
}

func (idx *Index) add(game dat.DatGame, rom dat.DatRom) {
	i := len(idx.entries)
	crc := strings.ToLower(rom.CRC)
	idx.entries = append(idx.entries, GameEntry{
		Index:  i,
		Name:   game.Name,
		Size:   rom.Size,
		CRC:    crc,
		SHA1:   rom.SHA1,
		MD5:    rom.MD5,
		Serial: rom.Serial,
		Region: game.Region,
	})
	idx.bySize[rom.Size] = append(idx.bySize[rom.Size], i)
	idx.byExactHash[hashKey{size: rom.Size, crc: crc}] = i
	if serial := NormalizeSerial(rom.Serial); serial != "" {
		idx.bySerial[serial] = append(idx.bySerial[serial], i)
	}
}

// NormalizeSerial is the key form used by the serial index.
func NormalizeSerial(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entry returns the entry at i.
func (idx *Index) Entry(i int) (GameEntry, bool) {
	if i < 0 || i >= len(idx.entries) {
		return GameEntry{}, false
	}
	return idx.entries[i], true
}

// MatchByHash looks up (dataSize, crc32). Stronger hashes are not compared.
func (idx *Index) MatchByHash(dataSize uint64, h hasher.FileHashes) (MatchResult, bool) {
	i, ok := idx.byExactHash[hashKey{size: dataSize, crc: strings.ToLower(h.CRC32)}]
	if !ok {
		return MatchResult{}, false
	}
	return MatchResult{GameIndex: i, Method: MatchByHash}, true
}

// MatchBySerial looks up a header serial, falling back to gameCode when
// the serial itself has no entry. Roms of one game count once; more than
// one distinct game is reported as ambiguous and never resolved here.
func (idx *Index) MatchBySerial(serial, gameCode string) SerialLookupResult {
	hits := idx.bySerial[NormalizeSerial(serial)]
	if len(hits) == 0 && NormalizeSerial(gameCode) != "" {
		hits = idx.bySerial[NormalizeSerial(gameCode)]
	}
	if len(hits) == 0 {
		return SerialLookupResult{Kind: SerialNotFound}
	}

	first := make(map[string]int, len(hits))
	names := make([]string, 0, len(hits))
	for _, i := range hits {
		name := idx.entries[i].Name
		if _, seen := first[name]; seen {
			continue
		}
		first[name] = i
		names = append(names, name)
	}
	if len(names) == 1 {
		return SerialLookupResult{
			Kind:  SerialMatch,
			Match: MatchResult{GameIndex: first[names[0]], Method: MatchBySerial},
		}
	}
	sort.Strings(names)
	return SerialLookupResult{Kind: SerialAmbiguous, Candidates: names}
}

// CandidatesBySize returns the entries of exactly size bytes, nil when
// there are none.
func (idx *Index) CandidatesBySize(size uint64) []int {
	hits := idx.bySize[size]
	if len(hits) == 0 {
		return nil
	}
	return hits
}

// Identify combines both lookup paths. A hash match is preferred; it is
// upgraded to MatchBySerialAndHash when the serial names the same game. A
// serial that resolves to a single game is used when no hash matched.
func (idx *Index) Identify(serial, gameCode string, dataSize uint64, h hasher.FileHashes) (MatchResult, bool) {
	byHash, hashOK := idx.MatchByHash(dataSize, h)
	var bySerial SerialLookupResult
	if NormalizeSerial(serial) != "" || NormalizeSerial(gameCode) != "" {
		bySerial = idx.MatchBySerial(serial, gameCode)
	}

	switch bySerial.Kind {
	case SerialMatch:
		if !hashOK {
			return bySerial.Match, true
		}
		if idx.entries[bySerial.Match.GameIndex].Name == idx.entries[byHash.GameIndex].Name {
			byHash.Method = MatchBySerialAndHash
		}
		return byHash, true
	case SerialAmbiguous:
		if hashOK {
			for _, name := range bySerial.Candidates {
				if name == idx.entries[byHash.GameIndex].Name {
					byHash.Method = MatchBySerialAndHash
					break
				}
			}
		}
		return byHash, hashOK
	case SerialNotFound:
		return byHash, hashOK
	default:
		return byHash, hashOK
	}
}
