package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/retrojunk/internal/archive"
	"github.com/xxxsen/retrojunk/internal/dat"
	"github.com/xxxsen/retrojunk/internal/hasher"
	"go.uber.org/zap"
)

// RomTestCommand checks that an archived rom set holds every rom its DAT
// game lists. The game is named after the archive file.
type RomTestCommand struct {
	dats     []string
	filePath string
	dirPath  string
	exts     string

	catalogs *CatalogCache
	failed   int
}

type archiveMember struct {
	Name string
	Size uint64
	CRC  string
}

func NewRomTestCommand() *RomTestCommand {
	return &RomTestCommand{catalogs: defaultCatalogCache, exts: "zip,7z,rar"}
}

func (c *RomTestCommand) Name() string { return "rom-test" }

func (c *RomTestCommand) Desc() string {
	return "检查压缩包中的 ROM 是否符合 DAT 中同名游戏的定义"
}

func (c *RomTestCommand) Init(f *pflag.FlagSet) {
	f.StringSliceVar(&c.dats, "dat", nil, "DAT 文件或目录, 可重复指定")
	f.StringVar(&c.filePath, "file", "", "待验证的压缩包文件路径")
	f.StringVar(&c.dirPath, "dir", "", "待验证的压缩包目录")
	f.StringVar(&c.exts, "ext", c.exts, "扫描目录时的压缩包后缀, 逗号分隔")
}

func (c *RomTestCommand) PreRun(ctx context.Context) error {
	if len(c.dats) == 0 {
		return errors.New("rom-test requires --dat")
	}
	if strings.TrimSpace(c.filePath) == "" && strings.TrimSpace(c.dirPath) == "" {
		return errors.New("rom-test requires --file or --dir")
	}
	logutil.GetLogger(ctx).Info("starting rom-test",
		zap.Strings("dat", c.dats),
		zap.String("file", c.filePath),
		zap.String("dir", c.dirPath),
	)
	return nil
}

func (c *RomTestCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	dats, err := c.catalogs.Dats(ctx, c.dats...)
	if err != nil {
		return err
	}

	targets, err := c.collectTargets(normalizeExts(c.exts))
	if err != nil {
		return err
	}
	for _, target := range targets {
		gameName := deriveGameName(target)
		game := findGame(dats, gameName)
		if game == nil {
			logger.Warn("game not found in dat", zap.String("game", gameName), zap.String("file", target))
			c.failed++
			continue
		}
		members, err := readArchiveMembers(target)
		if err != nil {
			logger.Error("read archive failed", zap.String("file", target), zap.Error(err))
			c.failed++
			continue
		}
		issues := validateRomArchive(game, members)
		if len(issues) == 0 {
			logger.Info("rom check passed",
				zap.String("game", gameName),
				zap.Int("rom_count", len(game.Roms)),
				zap.String("file", target),
			)
			continue
		}
		c.failed++
		for _, issue := range issues {
			logger.Error("rom check failed", zap.String("file", target), zap.String("issue", issue))
		}
	}
	if c.failed > 0 {
		return fmt.Errorf("rom check failed for %d of %d archive(s)", c.failed, len(targets))
	}
	return nil
}

func (c *RomTestCommand) PostRun(ctx context.Context) error { return nil }

func (c *RomTestCommand) collectTargets(allowed map[string]struct{}) ([]string, error) {
	if strings.TrimSpace(c.filePath) != "" {
		return []string{c.filePath}, nil
	}
	var targets []string
	err := filepath.WalkDir(c.dirPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if _, ok := allowed[ext]; ok && archive.IsArchive(path) {
			targets = append(targets, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan archives in %s: %w", c.dirPath, err)
	}
	return targets, nil
}

func normalizeExts(exts string) map[string]struct{} {
	rs := make(map[string]struct{})
	for _, ext := range strings.Split(exts, ",") {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			rs[ext] = struct{}{}
		}
	}
	return rs
}

func init() {
	RegisterRunner("rom-test", func() IRunner { return NewRomTestCommand() })
}

// deriveGameName extracts the game name from the archive filename.
func deriveGameName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

func findGame(dats []*dat.DatFile, name string) *dat.DatGame {
	for i := len(dats) - 1; i >= 0; i-- {
		if g := dats[i].FindGame(name); g != nil {
			return g
		}
	}
	return nil
}

func readArchiveMembers(path string) ([]archiveMember, error) {
	arc, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	var members []archiveMember
	err = arc.Walk(func(m archive.Member, r io.Reader) error {
		h, err := hasher.HashStream(r, hasher.PaddingSpec{})
		if err != nil {
			return fmt.Errorf("hash member %s: %w", m.Name, err)
		}
		members = append(members, archiveMember{Name: filepath.ToSlash(m.Name), Size: h.DataSize, CRC: h.CRC32})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// validateRomArchive compares archive contents against rom definitions.
func validateRomArchive(game *dat.DatGame, files []archiveMember) []string {
	if game == nil {
		return []string{"nil game reference"}
	}
	fullIndex := make(map[string]archiveMember, len(files))
	baseIndex := make(map[string][]archiveMember, len(files))
	for _, f := range files {
		fullIndex[strings.ToLower(f.Name)] = f
		base := strings.ToLower(filepath.Base(f.Name))
		baseIndex[base] = append(baseIndex[base], f)
	}

	var issues []string
	for _, rom := range game.Roms {
		keyFull := strings.ToLower(filepath.ToSlash(rom.Name))
		if f, ok := fullIndex[keyFull]; ok {
			issues = append(issues, checkRomFile(rom, f)...)
			continue
		}

		candidates := baseIndex[strings.ToLower(filepath.Base(keyFull))]
		if len(candidates) == 0 {
			issues = append(issues, fmt.Sprintf("missing rom: %s", rom.Name))
			continue
		}

		matched := false
		for _, f := range candidates {
			if len(checkRomFile(rom, f)) == 0 {
				matched = true
				break
			}
		}
		if !matched {
			issues = append(issues, fmt.Sprintf("no candidate matched rom %s (candidates: %d)", rom.Name, len(candidates)))
		}
	}
	return issues
}

func checkRomFile(rom dat.DatRom, f archiveMember) []string {
	var issues []string
	if f.Size != rom.Size {
		issues = append(issues, fmt.Sprintf("size mismatch for %s: expected %d, got %d", rom.Name, rom.Size, f.Size))
	}
	if !strings.EqualFold(f.CRC, rom.CRC) {
		issues = append(issues, fmt.Sprintf("crc mismatch for %s: expected %s, got %s", rom.Name, rom.CRC, f.CRC))
	}
	return issues
}
