package repair

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/retrojunk/internal/analyzer"
	"github.com/xxxsen/retrojunk/internal/dat"
	"github.com/xxxsen/retrojunk/internal/datindex"
	"github.com/xxxsen/retrojunk/internal/hasher"
)

func pattern(n int, seed byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*7) ^ seed
	}
	return buf
}

func romOf(t *testing.T, data []byte) dat.DatRom {
	t.Helper()
	h, err := hasher.HashPlain(bytes.NewReader(data), 0)
	require.NoError(t, err)
	return dat.DatRom{Name: "rom", Size: uint64(len(data)), CRC: h.CRC32, SHA1: h.SHA1, MD5: h.MD5}
}

func indexOf(t *testing.T, games map[string][]byte) *datindex.Index {
	t.Helper()
	df := &dat.DatFile{}
	for name, data := range games {
		df.Games = append(df.Games, dat.DatGame{Name: name, Roms: []dat.DatRom{romOf(t, data)}})
	}
	return datindex.FromDats(df)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestBuildStrategiesOrder(t *testing.T) {
	names := func(ss []Strategy) []string {
		rs := make([]string, 0, len(ss))
		for _, s := range ss {
			rs = append(rs, s.Name)
		}
		return rs
	}

	ss := BuildStrategies(1000, 4000, analyzer.DatSourceRedump)
	assert.Equal(t, []string{"expected-size-append-00", "expected-size-append-ff", "cd-pregap"}, names(ss))
	assert.Equal(t, uint64(3000), ss[0].Padding.AppendSize)
	assert.Equal(t, byte(0xFF), ss[1].Method.FillByte)
	assert.Equal(t, Method{Kind: MethodPrependPadding, BytesAdded: 352800}, ss[2].Method)
	assert.Equal(t, uint64(352800+1000), ss[2].TargetSize(1000))

	ss = BuildStrategies(3000, 0, analyzer.DatSourceNoIntro)
	assert.Equal(t, []string{"power-of-two-append-00", "power-of-two-append-ff"}, names(ss))
	assert.Equal(t, uint64(4096), ss[0].TargetSize(3000))

	assert.Empty(t, BuildStrategies(4096, 0, analyzer.DatSourceNoIntro))
	assert.Empty(t, BuildStrategies(3000, 0, analyzer.DatSourceOther))
	assert.Empty(t, BuildStrategies(3000, 2048, analyzer.DatSourceNoIntro), "known size suppresses power-of-two guess")
	assert.Equal(t, []string{"cd-pregap"}, names(BuildStrategies(5000, 0, analyzer.DatSourceRedump)))
}

func TestPlanAndExecuteAppendIdempotent(t *testing.T) {
	dir := t.TempDir()
	good := pattern(2048, 0x11)
	short := pattern(3000, 0x22)
	unknown := pattern(512, 0x33)
	writeFile(t, filepath.Join(dir, "good.bin"), good)
	writeFile(t, filepath.Join(dir, "short.bin"), short)
	writeFile(t, filepath.Join(dir, "unknown.bin"), unknown[:500])
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("skip me"))

	fixed := append(append([]byte{}, short...), fill(4096-3000, 0x00)...)
	idx := indexOf(t, map[string][]byte{"Good": good, "Short": fixed})
	a := analyzer.NewGeneric(nil)

	plan, err := PlanRepairs(dir, idx, a, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "good.bin")}, plan.AlreadyCorrect)
	assert.Equal(t, []string{filepath.Join(dir, "unknown.bin")}, plan.NoMatch)
	assert.Empty(t, plan.Errors)
	require.Len(t, plan.Repairable, 1)
	act := plan.Repairable[0]
	assert.Equal(t, "Short", act.GameName)
	assert.Equal(t, Method{Kind: MethodAppendPadding, FillByte: 0x00, BytesAdded: 1096}, act.Method)

	sum := ExecuteRepairs(plan, true)
	assert.Equal(t, Summary{Repaired: 1, BackedUp: 1}, sum)
	assert.Equal(t, fixed, readFile(t, act.FilePath))
	assert.Equal(t, short, readFile(t, BackupPath(act.FilePath)))

	again, err := PlanRepairs(dir, idx, a, Options{}, nil)
	require.NoError(t, err)
	assert.Empty(t, again.Repairable)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "good.bin"), act.FilePath}, again.AlreadyCorrect)
}

func TestPlanPrependPregapKeepsBody(t *testing.T) {
	dir := t.TempDir()
	body := pattern(1000, 0x5A)
	path := filepath.Join(dir, "disc.bin")
	writeFile(t, path, body)

	full := append(fill(CDPregapSize, 0x00), body...)
	idx := indexOf(t, map[string][]byte{"Disc (USA)": full})
	a := analyzer.NewPSX()

	plan, err := PlanRepairs(dir, idx, a, Options{}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Repairable, 1)
	assert.Equal(t, MethodPrependPadding, plan.Repairable[0].Method.Kind)

	sum := ExecuteRepairs(plan, false)
	assert.Equal(t, Summary{Repaired: 1}, sum)
	assert.Equal(t, full, readFile(t, path))
	_, err = os.Stat(BackupPath(path))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")

	again, err := PlanRepairs(dir, idx, a, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, again.AlreadyCorrect)
	assert.Empty(t, again.Repairable)
}

func inesFile(prg byte, body []byte) []byte {
	header := []byte{'N', 'E', 'S', 0x1A, prg, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	return append(header, body...)
}

func TestPlanTrimmedMatchedPrefersFullEntry(t *testing.T) {
	dir := t.TempDir()
	body := pattern(8192, 0x44)
	path := filepath.Join(dir, "game.nes")
	writeFile(t, path, inesFile(1, body))

	full := append(append([]byte{}, body...), fill(8192, 0xFF)...)
	a := analyzer.NewNES()

	// only the trimmed dump is catalogued: keep it
	plan, err := PlanRepairs(dir, indexOf(t, map[string][]byte{"Trimmed": body}), a, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, plan.AlreadyCorrect)
	assert.Empty(t, plan.Repairable)

	idx := indexOf(t, map[string][]byte{"Trimmed": body, "Full": full})
	plan, err = PlanRepairs(dir, idx, a, Options{}, nil)
	require.NoError(t, err)
	require.Len(t, plan.Repairable, 1)
	act := plan.Repairable[0]
	assert.Equal(t, "Full", act.GameName)
	assert.Equal(t, byte(0xFF), act.Method.FillByte)
	assert.Equal(t, uint64(16), act.HeaderSize)

	sum := ExecuteRepairs(plan, true)
	assert.Equal(t, 1, sum.Repaired)
	assert.Equal(t, inesFile(1, full), readFile(t, path))

	again, err := PlanRepairs(dir, idx, a, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, again.AlreadyCorrect)
	assert.Empty(t, again.Repairable)
}

func TestExecuteBackupFailureLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked.bin")
	open := filepath.Join(dir, "open.bin")
	original := pattern(100, 0x01)
	writeFile(t, blocked, original)
	writeFile(t, open, original)
	require.NoError(t, os.Mkdir(BackupPath(blocked), 0o755))

	method := Method{Kind: MethodAppendPadding, FillByte: 0xFF, BytesAdded: 28}
	plan := &Plan{Repairable: []Action{
		{FilePath: blocked, Method: method, Padding: hasher.PaddingSpec{AppendSize: 28, FillByte: 0xFF}},
		{FilePath: open, Method: method, Padding: hasher.PaddingSpec{AppendSize: 28, FillByte: 0xFF}},
	}}

	sum := ExecuteRepairs(plan, true)
	assert.Equal(t, 1, sum.Repaired)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.BackedUp)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, blocked, sum.Errors[0].Path)
	assert.Equal(t, original, readFile(t, blocked))
	assert.Equal(t, append(append([]byte{}, original...), fill(28, 0xFF)...), readFile(t, open))
}

func TestExecuteKeepsExistingBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rom.bin")
	writeFile(t, path, []byte{1, 2, 3})
	writeFile(t, BackupPath(path), []byte{9})

	plan := &Plan{Repairable: []Action{{
		FilePath: path,
		Method:   Method{Kind: MethodAppendPadding, BytesAdded: 1},
	}}}
	sum := ExecuteRepairs(plan, true)
	assert.Equal(t, Summary{Repaired: 1}, sum)
	assert.Equal(t, []byte{9}, readFile(t, BackupPath(path)))
	assert.Equal(t, []byte{1, 2, 3, 0}, readFile(t, path))

	assert.Equal(t, Summary{}, ExecuteRepairs(nil, true))
}

func TestPrependKeepsHeaderInFront(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rom.bin")
	writeFile(t, path, []byte("HDRbody"))

	plan := &Plan{Repairable: []Action{{
		FilePath:   path,
		Method:     Method{Kind: MethodPrependPadding, FillByte: '-', BytesAdded: 3},
		HeaderSize: 3,
	}}}
	assert.Equal(t, 1, ExecuteRepairs(plan, false).Repaired)
	assert.Equal(t, []byte("HDR---body"), readFile(t, path))
}

type failingAnalyzer struct {
	*analyzer.Generic
}

func (failingAnalyzer) DatHeaderSize(_ io.ReadSeeker, size uint64) (uint64, error) {
	if size == 13 {
		return 0, errors.New("unreadable header")
	}
	return 0, nil
}

func TestPlanCollectsPerFileErrorsAndProgress(t *testing.T) {
	dir := t.TempDir()
	good := pattern(64, 0x70)
	writeFile(t, filepath.Join(dir, "a.bin"), pattern(13, 0))
	writeFile(t, filepath.Join(dir, "b.bin"), good)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub", "c.bin"), good)

	idx := indexOf(t, map[string][]byte{"Good": good})
	var events []Progress
	plan, err := PlanRepairs(dir, idx, failingAnalyzer{analyzer.NewGeneric(nil)}, Options{}, func(p Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)
	require.Len(t, plan.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "a.bin"), plan.Errors[0].Path)
	assert.Equal(t, []string{filepath.Join(dir, "b.bin")}, plan.AlreadyCorrect)

	require.NotEmpty(t, events)
	assert.Equal(t, ProgressScanning, events[0].Kind)
	assert.Equal(t, ProgressDone, events[len(events)-1].Kind)
	checks := 0
	for _, ev := range events {
		if ev.Kind == ProgressCheckingFile {
			checks++
			assert.Equal(t, 2, ev.Total)
		}
	}
	assert.Equal(t, 2, checks)

	plan, err = PlanRepairs(dir, idx, analyzer.NewGeneric(nil), Options{Recursive: true}, nil)
	require.NoError(t, err)
	assert.Len(t, plan.AlreadyCorrect, 2)

	_, err = PlanRepairs(filepath.Join(dir, "missing"), idx, analyzer.NewGeneric(nil), Options{}, nil)
	require.Error(t, err)
}
