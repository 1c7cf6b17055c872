package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/retrojunk/internal/analyzer"
	"github.com/xxxsen/retrojunk/internal/archive"
	"github.com/xxxsen/retrojunk/internal/model"
	"go.uber.org/zap"
)

// IdentifyCommand names a single file, or every member of an archive.
type IdentifyCommand struct {
	dats     []string
	filePath string
	platform string

	catalogs *CatalogCache
	an       analyzer.Analyzer
	out      io.Writer
	results  []model.VerifyFile
}

func NewIdentifyCommand() *IdentifyCommand {
	return &IdentifyCommand{catalogs: defaultCatalogCache, out: os.Stdout, platform: "generic"}
}

func (c *IdentifyCommand) Name() string { return "identify" }

func (c *IdentifyCommand) Desc() string {
	return "识别单个 ROM 文件或压缩包内的 ROM"
}

func (c *IdentifyCommand) Init(f *pflag.FlagSet) {
	f.StringSliceVar(&c.dats, "dat", nil, "DAT 文件或目录, 可重复指定")
	f.StringVar(&c.filePath, "file", "", "待识别的文件 (支持 zip/7z/rar)")
	f.StringVar(&c.platform, "platform", c.platform, "平台解析器名称")
}

func (c *IdentifyCommand) PreRun(ctx context.Context) error {
	if len(c.dats) == 0 {
		return errors.New("identify requires --dat")
	}
	if err := requireFlag("identify", "file", c.filePath); err != nil {
		return err
	}
	an, err := analyzer.Lookup(c.platform)
	if err != nil {
		return err
	}
	c.an = an
	return nil
}

func (c *IdentifyCommand) Run(ctx context.Context) error {
	idx, err := c.catalogs.Load(ctx, c.dats...)
	if err != nil {
		return err
	}

	if !archive.IsArchive(c.filePath) {
		info, err := inspectRom(ctx, c.an, c.filePath)
		if err != nil {
			return err
		}
		c.report(describeRom(idx, c.an, info))
		return nil
	}

	arc, err := archive.Open(c.filePath)
	if err != nil {
		return err
	}
	defer arc.Close()
	err = arc.Walk(func(m archive.Member, r io.Reader) error {
		info, err := inspectStream(ctx, c.an, m.Name, r, m.Size)
		if err != nil {
			return err
		}
		vf := describeRom(idx, c.an, info)
		vf.Path = c.filePath + "#" + path.Clean(m.Name)
		c.report(vf)
		return nil
	})
	if err != nil {
		return fmt.Errorf("identify archive %s: %w", c.filePath, err)
	}
	return nil
}

func (c *IdentifyCommand) report(vf model.VerifyFile) {
	c.results = append(c.results, vf)
	game := vf.Game
	if game == "" {
		game = "<unknown>"
		if len(vf.Candidates) > 0 {
			game = "<ambiguous: " + strings.Join(vf.Candidates, ", ") + ">"
		}
	}
	line := fmt.Sprintf("%s\t%s\tcrc32=%s\t%s", vf.Path, humanSize(vf.DataSize), vf.CRC32, game)
	if vf.MatchMethod != "" {
		line += "\t(" + vf.MatchMethod + ")"
	}
	if vf.Verdict != "" {
		line += "\t" + vf.Verdict
	}
	fmt.Fprintln(c.out, line)
}

func (c *IdentifyCommand) PostRun(ctx context.Context) error {
	matched := 0
	for _, r := range c.results {
		if r.Game != "" {
			matched++
		}
	}
	logutil.GetLogger(ctx).Info("identify completed",
		zap.String("file", c.filePath),
		zap.Int("files", len(c.results)),
		zap.Int("matched", matched),
	)
	return nil
}

// Results returns one row per identified file.
func (c *IdentifyCommand) Results() []model.VerifyFile {
	return c.results
}

func init() {
	RegisterRunner("identify", func() IRunner { return NewIdentifyCommand() })
}
