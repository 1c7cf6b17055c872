package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/retrojunk/internal/analyzer"
	appdb "github.com/xxxsen/retrojunk/internal/db"
	"github.com/xxxsen/retrojunk/internal/hasher"
	"github.com/xxxsen/retrojunk/internal/model"
	"github.com/xxxsen/retrojunk/internal/repair"
)

type testRom struct {
	game string
	data []byte
}

func writeCatalog(t *testing.T, path string, roms ...testRom) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("clrmamepro (\n\tname \"test\"\n)\n")
	for _, r := range roms {
		h, err := hasher.HashPlain(bytes.NewReader(r.data), 0)
		require.NoError(t, err)
		fmt.Fprintf(&sb, "game (\n\tname %q\n\trom ( name \"%s.bin\" size %d crc %s sha1 %s )\n)\n",
			r.game, r.game, len(r.data), strings.ToUpper(h.CRC32), h.SHA1)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

func body(n int, seed byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*13) + seed
	}
	return buf
}

func TestCatalogCacheFolderAndReuse(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, filepath.Join(dir, "a.dat"), testRom{"Alpha", body(16, 1)})
	writeCatalog(t, filepath.Join(dir, "b.dat"), testRom{"Beta", body(32, 2)})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))

	ctx := context.Background()
	cache := NewCatalogCache()
	idx, err := cache.Load(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	again, err := cache.Load(ctx, dir+string(filepath.Separator))
	require.NoError(t, err)
	assert.Same(t, idx, again)

	dats, err := cache.Dats(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, dats, 2)

	cache.Forget(dir)
	fresh, err := cache.Load(ctx, dir)
	require.NoError(t, err)
	assert.NotSame(t, idx, fresh)

	_, err = cache.Load(ctx)
	assert.Error(t, err)
	_, err = cache.Load(ctx, filepath.Join(dir, "missing.dat"))
	assert.Error(t, err)
}

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	romDir := filepath.Join(dir, "roms")
	require.NoError(t, os.Mkdir(romDir, 0o755))
	good := body(1024, 3)
	trimmed := body(3000, 4)
	full := append(append([]byte{}, trimmed...), make([]byte, 1096)...)
	datPath := filepath.Join(dir, "set.dat")
	writeCatalog(t, datPath, testRom{"Good", good}, testRom{"Full", full})
	require.NoError(t, os.WriteFile(filepath.Join(romDir, "good.bin"), good, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(romDir, "trimmed.bin"), trimmed, 0o644))

	ctx := context.Background()
	cmd := NewVerifyCommand()
	cmd.catalogs = NewCatalogCache()
	cmd.dats = []string{datPath}
	cmd.rootDir = romDir
	cmd.platform = "generic"
	cmd.output = filepath.Join(dir, "out", "verify.json")
	require.NoError(t, cmd.PreRun(ctx))
	require.NoError(t, cmd.Run(ctx))
	require.NoError(t, cmd.PostRun(ctx))

	data, err := os.ReadFile(cmd.output)
	require.NoError(t, err)
	var out model.VerifyOutput
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "generic", out.Platform)
	assert.Equal(t, 1, out.Matched)
	assert.Equal(t, 1, out.Unmatched)
	require.Len(t, out.Files, 2)
	assert.Equal(t, "Good", out.Files[0].Game)
	assert.Equal(t, "hash", out.Files[0].MatchMethod)
	assert.Equal(t, "ok", out.Files[0].Verdict)
	assert.Empty(t, out.Files[1].Game)
	assert.Equal(t, cmd.Result().Files, out.Files)
}

func TestVerifyPreRunValidation(t *testing.T) {
	ctx := context.Background()
	cmd := NewVerifyCommand()
	assert.Error(t, cmd.PreRun(ctx))
	cmd.dats = []string{"x.dat"}
	cmd.rootDir = "roms"
	cmd.output = "out.json"
	cmd.platform = "nope"
	assert.Error(t, cmd.PreRun(ctx))
}

func TestRepairCommandApply(t *testing.T) {
	dir := t.TempDir()
	romDir := filepath.Join(dir, "roms")
	require.NoError(t, os.Mkdir(romDir, 0o755))
	trimmed := body(3000, 5)
	full := append(append([]byte{}, trimmed...), bytes.Repeat([]byte{0xFF}, 1096)...)
	datPath := filepath.Join(dir, "set.dat")
	writeCatalog(t, datPath, testRom{"Full", full})
	romPath := filepath.Join(romDir, "game.bin")
	require.NoError(t, os.WriteFile(romPath, trimmed, 0o644))

	ctx := context.Background()
	newCmd := func(apply bool) *RepairCommand {
		cmd := NewRepairCommand()
		cmd.catalogs = NewCatalogCache()
		cmd.dats = []string{datPath}
		cmd.rootDir = romDir
		cmd.platform = "generic"
		cmd.apply = apply
		cmd.report = filepath.Join(dir, "repair.json")
		require.NoError(t, cmd.PreRun(ctx))
		return cmd
	}

	dry := newCmd(false)
	require.NoError(t, dry.Run(ctx))
	require.Len(t, dry.Result().Repairable, 1)
	assert.Equal(t, "0xFF", dry.Result().Repairable[0].FillByte)
	assert.False(t, dry.Result().Applied)
	data, err := os.ReadFile(romPath)
	require.NoError(t, err)
	assert.Equal(t, trimmed, data, "dry run must not touch the file")

	wet := newCmd(true)
	require.NoError(t, wet.Run(ctx))
	assert.True(t, wet.Result().Applied)
	assert.Equal(t, 1, wet.Result().Repaired)
	assert.Equal(t, 1, wet.Result().BackedUp)
	data, err = os.ReadFile(romPath)
	require.NoError(t, err)
	assert.Equal(t, full, data)
	_, err = os.Stat(repair.BackupPath(romPath))
	require.NoError(t, err)

	check := newCmd(false)
	require.NoError(t, check.Run(ctx))
	assert.Equal(t, []string{romPath}, check.Result().AlreadyCorrect)
	assert.Empty(t, check.Result().Repairable)

	var rep model.RepairReport
	data, err = os.ReadFile(filepath.Join(dir, "repair.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, []string{romPath}, rep.AlreadyCorrect)
}

func TestRepairUploadRequiresStorage(t *testing.T) {
	ctx := context.Background()
	cmd := NewRepairCommand()
	cmd.dats = []string{"x.dat"}
	cmd.rootDir = "roms"
	cmd.upload = true
	assert.Error(t, cmd.PreRun(ctx), "upload without report path")

	cmd.report = filepath.Join(t.TempDir(), "r.json")
	require.NoError(t, cmd.PreRun(ctx))
	cmd.result = &model.RepairReport{}
	assert.Error(t, cmd.PostRun(ctx))
}

func TestIdentifyLooseFileAndZip(t *testing.T) {
	dir := t.TempDir()
	alpha := body(200, 6)
	beta := body(300, 7)
	datPath := filepath.Join(dir, "set.dat")
	writeCatalog(t, datPath, testRom{"Alpha", alpha}, testRom{"Beta", beta})

	loose := filepath.Join(dir, "alpha.bin")
	require.NoError(t, os.WriteFile(loose, alpha, 0o644))
	zipPath := filepath.Join(dir, "pack.zip")
	writeZipFile(t, zipPath, map[string][]byte{"beta.bin": beta, "junk.bin": []byte("junk")})

	ctx := context.Background()
	run := func(file string) (*IdentifyCommand, string) {
		var buf bytes.Buffer
		cmd := NewIdentifyCommand()
		cmd.catalogs = NewCatalogCache()
		cmd.out = &buf
		cmd.dats = []string{datPath}
		cmd.filePath = file
		require.NoError(t, cmd.PreRun(ctx))
		require.NoError(t, cmd.Run(ctx))
		require.NoError(t, cmd.PostRun(ctx))
		return cmd, buf.String()
	}

	cmd, text := run(loose)
	require.Len(t, cmd.Results(), 1)
	assert.Equal(t, "Alpha", cmd.Results()[0].Game)
	assert.Contains(t, text, "Alpha")

	cmd, text = run(zipPath)
	require.Len(t, cmd.Results(), 2)
	games := map[string]string{}
	for _, r := range cmd.Results() {
		games[filepath.Base(r.Path)] = r.Game
	}
	assert.Equal(t, map[string]string{"pack.zip#beta.bin": "Beta", "pack.zip#junk.bin": ""}, games)
	assert.Contains(t, text, "<unknown>")
}

func TestIdentifyReportsCopierHeader(t *testing.T) {
	dir := t.TempDir()
	rom := body(2048, 9)
	datPath := filepath.Join(dir, "snes.dat")
	writeCatalog(t, datPath, testRom{"Headered", rom})

	romPath := filepath.Join(dir, "headered.smc")
	headered := append(make([]byte, 512), rom...)
	require.NoError(t, os.WriteFile(romPath, headered, 0o644))

	ctx := context.Background()
	var buf bytes.Buffer
	cmd := NewIdentifyCommand()
	cmd.catalogs = NewCatalogCache()
	cmd.out = &buf
	cmd.dats = []string{datPath}
	cmd.filePath = romPath
	cmd.platform = "snes"
	require.NoError(t, cmd.PreRun(ctx))
	require.NoError(t, cmd.Run(ctx))

	require.Len(t, cmd.Results(), 1)
	got := cmd.Results()[0]
	assert.Equal(t, "Headered", got.Game)
	assert.Equal(t, uint64(512), got.HeaderSkip)
	assert.Equal(t, uint64(2048), got.DataSize)
	assert.Equal(t, "copier-header", got.Verdict)
}

func TestCleanCacheCommand(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sdb, err := appdb.Open(ctx, filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	defer appdb.Close(sdb)
	prev := appdb.Default()
	appdb.SetDefault(sdb)
	defer appdb.SetDefault(prev)

	kept := filepath.Join(dir, "kept.bin")
	require.NoError(t, os.WriteFile(kept, body(64, 8), 0o644))
	info, err := inspectRom(ctx, analyzer.NewGeneric(nil), kept)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), info.Hashes.DataSize)

	gone := filepath.Join(dir, "gone.bin")
	require.NoError(t, appdb.FileHashCacheDao.Upsert(ctx, &appdb.HashCacheEntry{Location: gone}))

	cmd := NewCleanCacheCommand()
	require.NoError(t, cmd.PreRun(ctx))
	require.NoError(t, cmd.Run(ctx))
	assert.Equal(t, []string{gone}, cmd.missing)
	all, err := appdb.FileHashCacheDao.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "dryrun keeps rows")

	cmd.dryRun = false
	require.NoError(t, cmd.Run(ctx))
	all, err = appdb.FileHashCacheDao.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	abs, err := filepath.Abs(kept)
	require.NoError(t, err)
	assert.Equal(t, abs, all[0].Location)

	cached, err := inspectRom(ctx, analyzer.NewGeneric(nil), kept)
	require.NoError(t, err)
	assert.Equal(t, info.Hashes, cached.Hashes)
}

func TestCleanCacheRequiresDatabase(t *testing.T) {
	prev := appdb.Default()
	appdb.SetDefault(nil)
	defer appdb.SetDefault(prev)
	assert.Error(t, NewCleanCacheCommand().PreRun(context.Background()))
}

func TestRunnerRegistry(t *testing.T) {
	names := RunnerList()
	for _, want := range []string{"clean-cache", "identify", "repair", "rom-test", "verify"} {
		assert.Contains(t, names, want)
		r := MustResolveRunner(want)
		assert.Equal(t, want, r.Name())
		assert.NotEmpty(t, r.Desc())
	}
	_, err := ResolveRunner("nope")
	assert.Error(t, err)
}
