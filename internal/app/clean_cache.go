package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	appdb "github.com/xxxsen/retrojunk/internal/db"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const cacheDeleteChunkSize = 200

type CleanCacheCommand struct {
	dryRun  bool
	missing []string
}

func NewCleanCacheCommand() *CleanCacheCommand {
	return &CleanCacheCommand{
		dryRun: true,
	}
}

func (c *CleanCacheCommand) Name() string { return "clean-cache" }

func (c *CleanCacheCommand) Desc() string {
	return "清理哈希缓存中已不存在的文件记录"
}

func (c *CleanCacheCommand) Init(f *pflag.FlagSet) {
	f.BoolVar(&c.dryRun, "dryrun", true, "是否只是演练（默认 true）")
}

func (c *CleanCacheCommand) PreRun(ctx context.Context) error {
	if appdb.Default() == nil {
		return errors.New("clean-cache requires hash_cache.path in config")
	}
	return nil
}

func (c *CleanCacheCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	entries, err := appdb.FileHashCacheDao.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list hash cache: %w", err)
	}

	missing := make([]string, 0)
	for _, entry := range entries {
		location := strings.TrimSpace(entry.Location)
		if location == "" {
			continue
		}
		if _, err := os.Stat(location); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn("hash cache target missing", zap.String("location", location))
				missing = append(missing, location)
			} else {
				logger.Warn("hash cache stat failed", zap.String("location", location), zap.Error(err))
			}
		}
	}
	c.missing = missing

	if len(missing) == 0 {
		logger.Info("hash cache clean", zap.Int("entries", len(entries)))
		return nil
	}
	if c.dryRun {
		logger.Info("hash cache entries missing (dryrun)", zap.Int("count", len(missing)))
		return nil
	}

	for start := 0; start < len(missing); start += cacheDeleteChunkSize {
		end := start + cacheDeleteChunkSize
		if end > len(missing) {
			end = len(missing)
		}
		if err := appdb.FileHashCacheDao.DeleteByLocations(ctx, missing[start:end]); err != nil {
			return err
		}
	}
	logger.Info("hash cache entries deleted", zap.Int("count", len(missing)))
	return nil
}

func (c *CleanCacheCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("clean-cache", func() IRunner { return NewCleanCacheCommand() })
}
