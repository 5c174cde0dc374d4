// Package main 整篇文章生成任务执行器入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"blog-gen-ai-api/internal/config"
	"blog-gen-ai-api/internal/infrastructure/messaging"
	einoobs "blog-gen-ai-api/internal/observability/eino"
	"blog-gen-ai-api/internal/wire"
	"blog-gen-ai-api/pkg/logger"
	"blog-gen-ai-api/pkg/tracer"
)

// dlqAlertThreshold 死信队列告警阈值
const dlqAlertThreshold = 10

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einoobs.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	worker.Consumer.RegisterHandler(messaging.MessageTypeArticleGen, func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.ArticleJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			// 载荷损坏无法重试，直接确认
			logger.Warn(msgCtx, "invalid article job payload", "error", err.Error())
			return nil
		}
		msgCtx = logger.WithContext(msgCtx, logger.JobIDKey, payload.JobID)
		return worker.Runner.Run(msgCtx, payload.JobID)
	})

	if err := worker.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go worker.Consumer.MonitorDLQ(ctx, dlqAlertThreshold)

	log := logger.FromContext(ctx)
	log.Info("job-worker started", "stream", string(messaging.StreamArticleGen))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	// 进行中的任务被中断后留在 pending，由重投重新执行
	stop()
	worker.Consumer.Stop()
}
