package completion

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/pkg/logger"
	"blog-gen-ai-api/pkg/metrics"
	"blog-gen-ai-api/pkg/tracer"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Config 重试配置
type Config struct {
	// MaxRetries 最大重试次数（不含首次调用）
	MaxRetries int
	// BaseDelay 第 n 次重试前等待 BaseDelay × 2ⁿ
	BaseDelay time.Duration
	// Defaults 调用未指定的生成参数
	Defaults Options
}

// DefaultConfig 3 次重试，1s/2s/4s
func DefaultConfig() Config {
	return Config{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// Sleeper 可取消等待，测试中可替换以记录退避时长
type Sleeper func(ctx context.Context, token *cancel.Token, d time.Duration) error

// Completer 补全调用抽象，生成器与精修器依赖它
type Completer interface {
	Complete(ctx context.Context, token *cancel.Token, msgs []Message, opts Options) (string, error)
}

// Client 带重试退避与取消轮询的补全客户端
type Client struct {
	transport Transport
	cfg       Config
	sleep     Sleeper
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithSleeper 替换退避等待实现
func WithSleeper(s Sleeper) ClientOption {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

// NewClient 创建补全客户端
func NewClient(transport Transport, cfg Config, opts ...ClientOption) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	c := &Client{transport: transport, cfg: cfg, sleep: cancel.Sleep}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff 第 n 次（从 0 开始）重试前的等待时长
func (c *Client) Backoff(n int) time.Duration {
	return c.cfg.BaseDelay << uint(n)
}

// Complete 发送消息并返回文本。
// 每次调用前、每次响应后都检查令牌；限流与临时错误按退避重试，
// 致命错误与畸形响应直接返回；重试耗尽后返回最后一次错误。
func (c *Client) Complete(ctx context.Context, token *cancel.Token, msgs []Message, opts Options) (string, error) {
	req := Request{Messages: msgs, Options: opts.Merge(c.cfg.Defaults)}

	for attempt := 0; ; attempt++ {
		if err := token.Err(); err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := c.call(ctx, token, req, attempt)
		if token.Cancelled() {
			return "", cancel.ErrCancelled
		}
		if err == nil {
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		var ce *Error
		if !errors.As(err, &ce) {
			ce = Transient(err)
		}
		if !ce.Retryable() {
			return "", ce
		}
		if attempt >= c.cfg.MaxRetries {
			logger.Warn(ctx, "completion retries exhausted",
				"provider", c.transport.Name(),
				"attempts", attempt+1,
				"kind", string(ce.Kind),
			)
			return "", ce
		}

		delay := c.Backoff(attempt)
		metrics.CompletionRetriesTotal.WithLabelValues(string(ce.Kind)).Inc()
		logger.Warn(ctx, "completion failed, retrying",
			"provider", c.transport.Name(),
			"attempt", attempt+1,
			"kind", string(ce.Kind),
			"code", ce.Code,
			"delay_ms", delay.Milliseconds(),
		)
		if err := c.sleep(ctx, token, delay); err != nil {
			return "", err
		}
	}
}

func (c *Client) call(ctx context.Context, token *cancel.Token, req Request, attempt int) (string, error) {
	provider := c.transport.Name()
	ctx, span := tracer.Start(ctx, "completion.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("completion.provider", provider),
		attribute.Int("completion.attempt", attempt),
		attribute.Int("completion.messages", len(req.Messages)),
	)

	callCtx, stop := token.Bind(ctx)
	defer stop()

	start := time.Now()
	text, err := c.transport.Complete(callCtx, req)
	metrics.CompletionCallDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	status := "success"
	switch {
	case token.Cancelled():
		status = "cancelled"
	case err != nil:
		status = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.CompletionCallsTotal.WithLabelValues(provider, status).Inc()
	return text, err
}
