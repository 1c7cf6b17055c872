// Package verdict classifies rom file sizes against the size a catalog expects.
package verdict

import "fmt"

// CopierHeaderSize is the size of the header prepended by cartridge copiers
// (SMC/SWC and friends).
const CopierHeaderSize = 512

// Kind classifies a file size against the size the platform expects.
type Kind int

const (
	Ok Kind = iota
	Trimmed
	Truncated
	CopierHeader
	Oversized
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Trimmed:
		return "trimmed"
	case Truncated:
		return "truncated"
	case CopierHeader:
		return "copier-header"
	case Oversized:
		return "oversized"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of Classify. Missing is set for Trimmed and
// Truncated, Excess for CopierHeader and Oversized.
type Verdict struct {
	Kind    Kind
	Missing uint64
	Excess  uint64
}

func (v Verdict) String() string {
	switch v.Kind {
	case Trimmed, Truncated:
		return fmt.Sprintf("%s (missing %d bytes)", v.Kind, v.Missing)
	case Oversized:
		return fmt.Sprintf("%s (%d extra bytes)", v.Kind, v.Excess)
	default:
		return v.Kind.String()
	}
}

// Classify compares the on-disk size with the expected size. A short file
// is Trimmed when it keeps at least half the data and its size (or the
// missing amount within a power-of-two image) is a power of two.
func Classify(fileSize, expectedSize uint64) Verdict {
	switch {
	case fileSize == expectedSize:
		return Verdict{Kind: Ok}
	case fileSize < expectedSize:
		missing := expectedSize - fileSize
		keepsHalf := fileSize >= expectedSize-expectedSize/2
		alignedCut := IsPowerOfTwo(fileSize) || (IsPowerOfTwo(expectedSize) && IsPowerOfTwo(missing))
		if keepsHalf && alignedCut {
			return Verdict{Kind: Trimmed, Missing: missing}
		}
		return Verdict{Kind: Truncated, Missing: missing}
	default:
		excess := fileSize - expectedSize
		if excess == CopierHeaderSize {
			return Verdict{Kind: CopierHeader, Excess: excess}
		}
		return Verdict{Kind: Oversized, Excess: excess}
	}
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n. It returns 1 for 0
// and 0 when the result would not fit in 64 bits.
func NextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	if n > 1<<63 {
		return 0
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
