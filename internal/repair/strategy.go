package repair

import (
	"fmt"

	"github.com/xxxsen/retrojunk/internal/analyzer"
	"github.com/xxxsen/retrojunk/internal/hasher"
	"github.com/xxxsen/retrojunk/internal/verdict"
)

// CDPregapSize is the 2 second lead-in of a CD track: 2 * 75 sectors of
// 2352 bytes.
const CDPregapSize = 2 * 75 * 2352

// Strategy is one candidate transformation tried by the planner.
type Strategy struct {
	Name    string
	Method  Method
	Padding hasher.PaddingSpec
}

// TargetSize is the data size the strategy would produce from dataSize.
func (s Strategy) TargetSize(dataSize uint64) uint64 {
	return s.Padding.PrependSize + dataSize + s.Padding.AppendSize
}

func appendStrategy(name string, count uint64, fill byte) Strategy {
	return Strategy{
		Name:    fmt.Sprintf("%s-append-%02x", name, fill),
		Method:  Method{Kind: MethodAppendPadding, FillByte: fill, BytesAdded: count},
		Padding: hasher.PaddingSpec{AppendSize: count, FillByte: fill},
	}
}

// BuildStrategies lists candidate repairs in the order they are tried.
// expectedSize is the header declared body size, 0 when unknown. Every
// matching clause contributes its strategies.
func BuildStrategies(dataSize, expectedSize uint64, source analyzer.DatSource) []Strategy {
	var rs []Strategy
	if expectedSize > dataSize {
		missing := expectedSize - dataSize
		rs = append(rs,
			appendStrategy("expected-size", missing, 0x00),
			appendStrategy("expected-size", missing, 0xFF),
		)
	}
	if source == analyzer.DatSourceRedump {
		rs = append(rs, Strategy{
			Name:    "cd-pregap",
			Method:  Method{Kind: MethodPrependPadding, FillByte: 0x00, BytesAdded: CDPregapSize},
			Padding: hasher.PaddingSpec{PrependSize: CDPregapSize, FillByte: 0x00},
		})
	}
	if expectedSize == 0 && source == analyzer.DatSourceNoIntro && !verdict.IsPowerOfTwo(dataSize) {
		if next := verdict.NextPowerOfTwo(dataSize); next > dataSize {
			missing := next - dataSize
			rs = append(rs,
				appendStrategy("power-of-two", missing, 0x00),
				appendStrategy("power-of-two", missing, 0xFF),
			)
		}
	}
	return rs
}
