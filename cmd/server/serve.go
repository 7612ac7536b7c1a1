package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DT191220/YDJX-sub000/internal/handler"
	"github.com/DT191220/YDJX-sub000/internal/infrastructure/mq"
	"github.com/DT191220/YDJX-sub000/internal/job"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务和消息投递任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve()
		},
	}
}

func (a *app) serve() error {
	if a.cfg.Database.AutoMigrate {
		if err := a.migrate(); err != nil {
			return err
		}
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 未启用 Kafka 时消息留在本地消息表，启用后补发
	if a.cfg.Kafka.Enabled {
		producer, err := mq.NewSyncProducer(&a.cfg.Kafka)
		if err != nil {
			return err
		}
		publisher := mq.NewKafkaPublisher(producer)
		defer publisher.Close()

		sender := job.NewOutboxSender(a.db, publisher, a.cfg, a.log.Named("OutboxSender"))
		go sender.Start(ctx)
	}

	router := handler.SetupRouter(a.svc, a.cfg, a.log.Named("HTTP"))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("服务启动", zap.Int("port", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	a.log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("服务关闭异常", zap.Error(err))
	}

	a.log.Info("服务已关闭")
	return nil
}
