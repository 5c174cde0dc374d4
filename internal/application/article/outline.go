package article

import (
	"context"
	"time"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/internal/workflow/prompt"
	"blog-gen-ai-api/internal/workflow/validate"
	"blog-gen-ai-api/pkg/metrics"
)

// OutlineGenerator 单次调用生成大纲；结构错误直接返回，不做修补循环
type OutlineGenerator struct {
	completer completion.Completer
	prompts   *prompt.Registry
}

func NewOutlineGenerator(completer completion.Completer, prompts *prompt.Registry) *OutlineGenerator {
	return &OutlineGenerator{completer: completer, prompts: prompts}
}

func (g *OutlineGenerator) Generate(ctx context.Context, token *cancel.Token, theme, tone string) (outline *model.Outline, err error) {
	start := time.Now()
	defer func() { observe("outline", start, err) }()

	msgs, err := g.prompts.Outline(ctx, theme, tone)
	if err != nil {
		return nil, err
	}
	raw, err := g.completer.Complete(ctx, token, msgs, completion.Options{Temperature: completion.Float(0.5)})
	if err != nil {
		return nil, err
	}

	outline, err = validate.ParseOutline(raw)
	if err != nil {
		metrics.ValidationTotal.WithLabelValues(validate.ValidatorOutline, "failed").Inc()
		return nil, err
	}
	metrics.ValidationTotal.WithLabelValues(validate.ValidatorOutline, "success").Inc()
	return outline, nil
}
