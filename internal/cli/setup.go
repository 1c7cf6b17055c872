package cli

import (
	"context"

	"github.com/xxxsen/common/database"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/retrojunk/internal/config"
	appdb "github.com/xxxsen/retrojunk/internal/db"
	"github.com/xxxsen/retrojunk/internal/storage"
	"go.uber.org/zap"
)

var openedDB database.IDatabase

// setupEnv wires the global logger, hash cache and storage from cfg.
func setupEnv(ctx context.Context, cfg *config.Config) error {
	logger.Init(cfg.Log.File, cfg.Log.Level, 0, 0, 0, cfg.Log.Console)

	if cfg.HashCache.Path != "" {
		sdb, err := appdb.Open(ctx, cfg.HashCache.Path)
		if err != nil {
			return err
		}
		openedDB = sdb
		appdb.SetDefault(sdb)
		logutil.GetLogger(ctx).Debug("hash cache enabled", zap.String("path", cfg.HashCache.Path))
	}

	if cfg.S3 != nil {
		store, err := storage.NewS3Client(ctx, *cfg.S3)
		if err != nil {
			return err
		}
		storage.SetDefaultClient(store)
	}
	return nil
}

func teardownEnv() {
	if openedDB == nil {
		return
	}
	if err := appdb.Close(openedDB); err != nil {
		logutil.GetLogger(context.Background()).Error("close hash cache failed", zap.Error(err))
	}
	openedDB = nil
	appdb.SetDefault(nil)
}
