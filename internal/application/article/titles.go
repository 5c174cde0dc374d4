package article

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/prompt"
	"blog-gen-ai-api/internal/workflow/validate"
	"blog-gen-ai-api/pkg/logger"
	"blog-gen-ai-api/pkg/metrics"
)

// TitleGenerator 生成 3 个标题候选
type TitleGenerator struct {
	completer completion.Completer
	prompts   *prompt.Registry
	settings  Settings
}

func NewTitleGenerator(completer completion.Completer, prompts *prompt.Registry, settings Settings) *TitleGenerator {
	return &TitleGenerator{completer: completer, prompts: prompts, settings: settings}
}

// Generate 校验不足 3 个或响应畸形时整体重新生成，退避与补全客户端相同；
// 耗尽后返回的错误带有最后一次实际得到的数量。
func (g *TitleGenerator) Generate(ctx context.Context, token *cancel.Token, theme, content string) ([]string, error) {
	start := time.Now()
	msgs, err := g.prompts.Titles(ctx, theme, content)
	if err != nil {
		return nil, err
	}
	opts := completion.Options{Temperature: completion.Float(0.9)}
	sleep := g.settings.sleep()

	lastGot := 0
	for attempt := 0; ; attempt++ {
		raw, err := g.completer.Complete(ctx, token, msgs, opts)
		if err == nil {
			var titles []string
			titles, err = validate.ValidateTitles(raw)
			if err == nil {
				metrics.ValidationTotal.WithLabelValues(validate.ValidatorTitles, "success").Inc()
				observe("titles", start, nil)
				return titles, nil
			}
			metrics.ValidationTotal.WithLabelValues(validate.ValidatorTitles, "failed").Inc()
		}

		var ve *validate.ValidationError
		if errors.As(err, &ve) {
			lastGot = ve.Got
		}
		if !regenerable(err) {
			observe("titles", start, err)
			return nil, err
		}
		if attempt >= g.settings.TitleMaxRetries {
			if ve == nil {
				err = &validate.ValidationError{
					Validator: validate.ValidatorTitles,
					Reason:    fmt.Sprintf("no usable titles after %d attempts, got %d: %v", attempt+1, lastGot, err),
					Got:       lastGot,
				}
			}
			observe("titles", start, err)
			return nil, err
		}

		delay := g.settings.BaseDelay << uint(attempt)
		logger.Warn(ctx, "title generation rejected, regenerating",
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)
		if err := sleep(ctx, token, delay); err != nil {
			observe("titles", start, err)
			return nil, err
		}
	}
}

// regenerable 形状错误与畸形响应可整体重试；取消与服务错误不在此层重试
func regenerable(err error) bool {
	var ve *validate.ValidationError
	return errors.As(err, &ve) || completion.IsKind(err, completion.KindMalformed)
}

// observe 记录任务耗时与结果
func observe(task string, start time.Time, err error) {
	status := "success"
	switch {
	case cancel.IsCancelled(err):
		status = "cancelled"
	case err != nil:
		status = "failed"
	}
	metrics.GenerationTotal.WithLabelValues(task, status).Inc()
	metrics.GenerationDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}
