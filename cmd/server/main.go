package main

import (
	"fmt"
	"os"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/config"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/cache"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/database"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/lock"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/logger"
	"github.com/DT191220/YDJX-sub000/internal/service"
	"github.com/DT191220/YDJX-sub000/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "server",
		Short:         "驾校财务账务服务",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "配置文件路径")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSalaryCmd(),
		newExpenseCmd(),
		newOutboxCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 各子命令共用的依赖
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	rdb *redis.Client
	svc *service.Services
}

// bootstrap 加载配置并初始化日志、数据库、锁和业务服务
func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	if err := idgen.Init(cfg.Ledger.WorkerID); err != nil {
		return nil, err
	}

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db}

	// Redis 不可用时退化为只依赖数据库行锁
	var locker lock.Locker = lock.NopLocker{}
	if cfg.Redis.Enabled {
		rdb, err := cache.InitRedis(&cfg.Redis, log)
		if err != nil {
			log.Warn("Redis 不可用，使用数据库行锁", zap.Error(err))
		} else {
			a.rdb = rdb
			locker = lock.NewRedisLocker(rdb, time.Duration(cfg.Ledger.LockTTLSeconds)*time.Second)
		}
	}

	a.svc = service.NewServices(db, cfg, log, locker)
	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

// migrate 建表并写入默认科目和用途映射
func (a *app) migrate() error {
	if err := database.Migrate(a.db); err != nil {
		return err
	}
	if err := database.Seed(a.db); err != nil {
		return err
	}
	a.log.Info("数据库迁移完成")
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "建表并写入默认会计科目",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			return a.migrate()
		},
	}
}
