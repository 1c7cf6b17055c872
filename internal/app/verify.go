package app

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/retrojunk/internal/analyzer"
	"github.com/xxxsen/retrojunk/internal/model"
	"go.uber.org/zap"
)

type VerifyCommand struct {
	dats     []string
	rootDir  string
	platform string
	output   string
	upload   bool

	catalogs *CatalogCache
	an       analyzer.Analyzer
	result   *model.VerifyOutput
}

func NewVerifyCommand() *VerifyCommand {
	return &VerifyCommand{catalogs: defaultCatalogCache, platform: "generic"}
}

func (c *VerifyCommand) Name() string { return "verify" }

func (c *VerifyCommand) Desc() string {
	return "根据 DAT 校验目录中的 ROM 并输出 JSON 报告"
}

func (c *VerifyCommand) Init(f *pflag.FlagSet) {
	f.StringSliceVar(&c.dats, "dat", nil, "DAT 文件或目录, 可重复指定")
	f.StringVar(&c.rootDir, "dir", "", "ROM 根目录")
	f.StringVar(&c.platform, "platform", c.platform, "平台解析器名称")
	f.StringVar(&c.output, "output", "", "输出 JSON 文件路径")
	f.BoolVar(&c.upload, "upload", false, "是否上传报告到 S3")
}

func (c *VerifyCommand) PreRun(ctx context.Context) error {
	if len(c.dats) == 0 {
		return errors.New("verify requires --dat")
	}
	if err := requireFlag("verify", "dir", c.rootDir); err != nil {
		return err
	}
	if err := requireFlag("verify", "output", c.output); err != nil {
		return err
	}
	an, err := analyzer.Lookup(c.platform)
	if err != nil {
		return err
	}
	c.an = an
	logutil.GetLogger(ctx).Info("starting verify",
		zap.Strings("dat", c.dats),
		zap.String("dir", c.rootDir),
		zap.String("platform", an.Name()),
		zap.Strings("expected_dats", an.DatNames()),
		zap.String("output", c.output),
	)
	return nil
}

func (c *VerifyCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	idx, err := c.catalogs.Load(ctx, c.dats...)
	if err != nil {
		return err
	}

	out := &model.VerifyOutput{
		Platform: c.an.Name(),
		Dats:     c.dats,
		Files:    make([]model.VerifyFile, 0),
	}
	err = filepath.WalkDir(c.rootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !analyzer.MatchesExtension(c.an, path) {
			return nil
		}
		info, err := inspectRom(ctx, c.an, path)
		if err != nil {
			logger.Error("inspect rom failed", zap.String("path", path), zap.Error(err))
			out.Failed++
			out.Files = append(out.Files, model.VerifyFile{Path: filepath.ToSlash(path), Error: err.Error()})
			return nil
		}
		vf := describeRom(idx, c.an, info)
		if vf.Game != "" {
			out.Matched++
		} else {
			out.Unmatched++
		}
		logger.Debug("rom verified",
			zap.String("path", path),
			zap.String("size", humanSize(uint64(info.Size))),
			zap.String("game", vf.Game),
			zap.String("method", vf.MatchMethod),
			zap.String("verdict", vf.Verdict),
		)
		out.Files = append(out.Files, vf)
		return nil
	})
	if err != nil {
		return err
	}

	if err := writeJSONReport(c.output, out); err != nil {
		return err
	}
	c.result = out
	logger.Info("verify completed",
		zap.Int("matched", out.Matched),
		zap.Int("unmatched", out.Unmatched),
		zap.Int("failed", out.Failed),
		zap.String("output", c.output),
	)
	return nil
}

func (c *VerifyCommand) PostRun(ctx context.Context) error {
	if !c.upload || c.result == nil {
		return nil
	}
	key, err := uploadReport(ctx, "verify", c.output)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("verify report uploaded", zap.String("key", key))
	return nil
}

// Result returns the report gathered during Run.
func (c *VerifyCommand) Result() *model.VerifyOutput {
	return c.result
}

func init() {
	RegisterRunner("verify", func() IRunner { return NewVerifyCommand() })
}
