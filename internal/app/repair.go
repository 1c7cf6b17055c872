package app

import (
	"context"
	"errors"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/retrojunk/internal/analyzer"
	"github.com/xxxsen/retrojunk/internal/model"
	"github.com/xxxsen/retrojunk/internal/repair"
	"go.uber.org/zap"
)

type RepairCommand struct {
	dats      []string
	rootDir   string
	platform  string
	apply     bool
	backup    bool
	recursive bool
	report    string
	upload    bool

	catalogs *CatalogCache
	an       analyzer.Analyzer
	result   *model.RepairReport
}

func NewRepairCommand() *RepairCommand {
	return &RepairCommand{catalogs: defaultCatalogCache, backup: true, platform: "generic"}
}

func (c *RepairCommand) Name() string { return "repair" }

func (c *RepairCommand) Desc() string {
	return "根据 DAT 推断并修复被裁剪或缺少填充的 ROM"
}

func (c *RepairCommand) Init(f *pflag.FlagSet) {
	f.StringSliceVar(&c.dats, "dat", nil, "DAT 文件或目录, 可重复指定")
	f.StringVar(&c.rootDir, "dir", "", "ROM 目录")
	f.StringVar(&c.platform, "platform", c.platform, "平台解析器名称")
	f.BoolVar(&c.apply, "apply", false, "是否实际写入修复（默认只输出计划）")
	f.BoolVar(&c.backup, "backup", true, "修复前是否创建 .bak 备份")
	f.BoolVar(&c.recursive, "recursive", false, "是否扫描子目录")
	f.StringVar(&c.report, "report", "", "输出 JSON 报告路径")
	f.BoolVar(&c.upload, "upload-report", false, "是否上传报告到 S3")
}

func (c *RepairCommand) PreRun(ctx context.Context) error {
	if len(c.dats) == 0 {
		return errors.New("repair requires --dat")
	}
	if err := requireFlag("repair", "dir", c.rootDir); err != nil {
		return err
	}
	if c.upload && c.report == "" {
		return errors.New("repair --upload-report requires --report")
	}
	an, err := analyzer.Lookup(c.platform)
	if err != nil {
		return err
	}
	c.an = an
	logutil.GetLogger(ctx).Info("starting repair",
		zap.Strings("dat", c.dats),
		zap.String("dir", c.rootDir),
		zap.String("platform", an.Name()),
		zap.Bool("apply", c.apply),
		zap.Bool("backup", c.backup),
	)
	return nil
}

func (c *RepairCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	idx, err := c.catalogs.Load(ctx, c.dats...)
	if err != nil {
		return err
	}

	opts := repair.Options{Recursive: c.recursive}
	plan, err := repair.PlanRepairs(c.rootDir, idx, c.an, opts, c.progress(ctx))
	if err != nil {
		return err
	}

	rep := &model.RepairReport{
		Platform:       c.an.Name(),
		Dir:            c.rootDir,
		AlreadyCorrect: plan.AlreadyCorrect,
		NoMatch:        plan.NoMatch,
		Repairable:     make([]model.RepairAction, 0, len(plan.Repairable)),
	}
	for _, act := range plan.Repairable {
		logger.Info("repair planned",
			zap.String("path", act.FilePath),
			zap.String("game", act.GameName),
			zap.String("method", act.Method.Kind.String()),
			zap.String("fill", fillByteString(act.Method.FillByte)),
			zap.String("added", humanSize(act.Method.BytesAdded)),
		)
		rep.Repairable = append(rep.Repairable, model.RepairAction{
			Path:       act.FilePath,
			Game:       act.GameName,
			Method:     act.Method.Kind.String(),
			FillByte:   fillByteString(act.Method.FillByte),
			BytesAdded: act.Method.BytesAdded,
		})
	}
	for _, fe := range plan.Errors {
		logger.Error("repair check failed", zap.String("path", fe.Path), zap.Error(fe.Err))
		rep.PlanErrors = append(rep.PlanErrors, model.RepairFailure{Path: fe.Path, Reason: fe.Err.Error()})
	}

	if c.apply && len(plan.Repairable) > 0 {
		sum := repair.ExecuteRepairs(plan, c.backup)
		rep.Applied = true
		rep.Repaired = sum.Repaired
		rep.BackedUp = sum.BackedUp
		rep.Failed = sum.Failed
		for _, fe := range sum.Errors {
			logger.Error("repair failed", zap.String("path", fe.Path), zap.Error(fe.Err))
			rep.ExecErrors = append(rep.ExecErrors, model.RepairFailure{Path: fe.Path, Reason: fe.Err.Error()})
		}
	}
	c.result = rep

	if c.report != "" {
		if err := writeJSONReport(c.report, rep); err != nil {
			return err
		}
	}
	logger.Info("repair completed",
		zap.Int("already_correct", len(rep.AlreadyCorrect)),
		zap.Int("repairable", len(rep.Repairable)),
		zap.Int("no_match", len(rep.NoMatch)),
		zap.Int("errors", len(rep.PlanErrors)),
		zap.Bool("applied", rep.Applied),
		zap.Int("repaired", rep.Repaired),
		zap.Int("failed", rep.Failed),
	)
	return nil
}

func (c *RepairCommand) progress(ctx context.Context) repair.ProgressFunc {
	logger := logutil.GetLogger(ctx)
	return func(p repair.Progress) {
		switch p.Kind {
		case repair.ProgressScanning:
			logger.Debug("scanning roms", zap.String("dir", p.Path))
		case repair.ProgressCheckingFile:
			logger.Debug("checking rom", zap.String("path", p.Path), zap.Int("current", p.Current), zap.Int("total", p.Total))
		case repair.ProgressTryingStrategy:
			logger.Debug("trying repair", zap.String("path", p.Path), zap.String("strategy", p.Strategy))
		case repair.ProgressDone:
			logger.Debug("scan finished", zap.Int("files", p.Total))
		}
	}
}

func (c *RepairCommand) PostRun(ctx context.Context) error {
	if !c.upload || c.result == nil {
		return nil
	}
	key, err := uploadReport(ctx, "repair", c.report)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("repair report uploaded", zap.String("key", key))
	return nil
}

// Result returns the report gathered during Run.
func (c *RepairCommand) Result() *model.RepairReport {
	return c.result
}

func init() {
	RegisterRunner("repair", func() IRunner { return NewRepairCommand() })
}
