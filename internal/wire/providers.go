// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"blog-gen-ai-api/internal/application/article"
	"blog-gen-ai-api/internal/config"
	"blog-gen-ai-api/internal/infrastructure/llm"
	"blog-gen-ai-api/internal/infrastructure/messaging"
	"blog-gen-ai-api/internal/infrastructure/persistence/redis"
	"blog-gen-ai-api/internal/interfaces/http/handler"
	"blog-gen-ai-api/internal/interfaces/http/middleware"
	"blog-gen-ai-api/internal/interfaces/http/router"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/prompt"
	"blog-gen-ai-api/internal/workflow/refine"
	"blog-gen-ai-api/pkg/logger"
)

// App api-gateway 运行所需的全部组件
type App struct {
	Router   *router.Router
	Sessions *article.SessionRegistry
}

// Worker job-worker 运行所需的全部组件
type Worker struct {
	Consumer *messaging.Consumer
	Runner   *article.JobRunner
}

// RedisSet Redis 客户端、任务存储与限流器
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideJobStore,
	redis.NewRateLimiter,
	wire.Bind(new(article.JobStore), new(*redis.JobStore)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet Redis Stream 生产者
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(article.JobPublisher), new(*messaging.Producer)),
)

// CompletionSet 补全客户端：按默认提供商选择接入方式，外层统一重试
var CompletionSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideCompletionClient,
	wire.Bind(new(completion.Completer), new(*completion.Client)),
)

// GenerationSet 生成编排
var GenerationSet = wire.NewSet(
	CompletionSet,
	article.SettingsFromConfig,
	prompt.NewRegistry,
	refine.NewRefiner,
	article.NewTitleGenerator,
	article.NewOutlineGenerator,
	article.NewSimpleSectionGenerator,
	article.NewContextualSectionGenerator,
	article.NewOrchestrator,
)

// HandlerSet HTTP 处理器与路由
var HandlerSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewGenerationHandler,
	handler.NewSessionHandler,
	handler.NewJobHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "redis connected", "host", cfg.Cache.Redis.Host, "port", cfg.Cache.Redis.Port)
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideJobStore 提供文章任务存储
func ProvideJobStore(client *redis.Client, cfg *config.Config) *redis.JobStore {
	return redis.NewJobStore(client, cfg.Cache.Redis.JobTTL)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(client *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return messaging.NewProducer(client.Redis(), int64(maxLen))
}

// ProvideMessagingConsumer 提供文章任务流的消费者
func ProvideMessagingConsumer(client *redis.Client, cfg *config.Config) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	return messaging.NewConsumer(client.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamArticleGen,
		Group:         messaging.ConsumerGroupArticleWorker,
		ConsumerName:  messaging.ConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
}

// ProvideCompletionClient 提供补全客户端
func ProvideCompletionClient(cfg *config.Config, factory *llm.EinoFactory) (*completion.Client, error) {
	transport, err := llm.NewTransport(cfg, factory)
	if err != nil {
		return nil, err
	}
	cc := completion.DefaultConfig()
	cc.MaxRetries = cfg.Completion.MaxRetries
	if cfg.Completion.BaseDelay > 0 {
		cc.BaseDelay = cfg.Completion.BaseDelay
	}
	cc.Defaults = llm.CompletionDefaults(cfg)
	return completion.NewClient(transport, cc), nil
}

// ProvideSessionRegistry 提供会话注册表
func ProvideSessionRegistry(simple *article.SimpleSectionGenerator, contextual *article.ContextualSectionGenerator, settings article.Settings) *article.SessionRegistry {
	return article.NewSessionRegistry(simple, contextual, settings)
}

// ProvideJobRunner 提供 worker 侧的任务执行器
func ProvideJobRunner(store article.JobStore, orchestrator *article.Orchestrator, cfg *config.Config) *article.JobRunner {
	return article.NewJobRunner(store, orchestrator, cfg.Generation.JobPollInterval)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(client *redis.Client, cfg *config.Config) *handler.HealthHandler {
	return handler.NewHealthHandler(client, cfg.App.Version)
}
