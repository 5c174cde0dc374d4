//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"blog-gen-ai-api/internal/application/article"
	"blog-gen-ai-api/internal/config"
	"blog-gen-ai-api/internal/infrastructure/persistence/redis"
)

// InitializeApp 初始化 api-gateway（路由器与会话注册表）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		RedisSet,
		MessagingSet,
		GenerationSet,
		ProvideSessionRegistry,
		article.NewJobService,
		HandlerSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化 job-worker（消费者与任务执行器）
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		ProvideRedisClient,
		ProvideJobStore,
		wire.Bind(new(article.JobStore), new(*redis.JobStore)),
		ProvideMessagingConsumer,
		GenerationSet,
		ProvideJobRunner,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}
