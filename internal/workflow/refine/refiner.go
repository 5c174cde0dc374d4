// Package refine 在有限预算内反复请求模型修正字数与段落结尾。
// 预算耗尽时返回当前文本，不把未达标视为错误。
package refine

import (
	"context"
	"strings"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/internal/workflow/prompt"
	"blog-gen-ai-api/internal/workflow/validate"
	"blog-gen-ai-api/pkg/logger"
	"blog-gen-ai-api/pkg/metrics"
)

// 精修步骤
const (
	StepResize      = "resize"
	StepEndings     = "endings"
	StepConsistency = "consistency"
)

// Refiner 内容精修器
type Refiner struct {
	completer completion.Completer
	prompts   *prompt.Registry
	opts      completion.Options
}

// NewRefiner 创建精修器
func NewRefiner(completer completion.Completer, prompts *prompt.Registry) *Refiner {
	return &Refiner{
		completer: completer,
		prompts:   prompts,
		opts:      completion.Options{Temperature: completion.Float(0.3)},
	}
}

// Refine 每一轮依次：字数不符则调整字数，段落未收尾则修正结尾，
// 本轮有改动则再做一次一致性检查；每个实际发出的请求消耗一次 attempts。
// 只有取消会返回错误，其余失败都退化为返回当前文本。
func (r *Refiner) Refine(ctx context.Context, token *cancel.Token, text string, target model.LengthRange, attempts int) (string, error) {
	if !target.Valid() {
		target = validate.DefaultSectionLength
	}
	current := text
	remaining := attempts

	for remaining > 0 {
		rep := validate.Inspect(current, target)
		if rep.OK() {
			break
		}
		adjusted := false

		if !rep.LengthOK {
			out, ok, err := r.step(ctx, token, StepResize, current, &remaining, func() ([]completion.Message, error) {
				return r.prompts.RefineResize(ctx, current, rep.Length, target)
			})
			if err != nil || !ok {
				return r.settle(ctx, current, err)
			}
			current, adjusted = out, true
		}

		if remaining > 0 {
			if unterminated := validate.UnterminatedParagraphs(current); len(unterminated) > 0 {
				out, ok, err := r.step(ctx, token, StepEndings, current, &remaining, func() ([]completion.Message, error) {
					return r.prompts.RefineEndings(ctx, current, unterminated)
				})
				if err != nil || !ok {
					return r.settle(ctx, current, err)
				}
				current, adjusted = out, true
			}
		}

		if adjusted && remaining > 0 {
			out, ok, err := r.step(ctx, token, StepConsistency, current, &remaining, func() ([]completion.Message, error) {
				return r.prompts.RefineConsistency(ctx, current, target)
			})
			if err != nil || !ok {
				return r.settle(ctx, current, err)
			}
			current = out
		}

		if !adjusted {
			break
		}
	}

	if rep := validate.Inspect(current, target); !rep.OK() {
		logger.Info(ctx, "refine budget exhausted, returning best effort",
			"length", rep.Length,
			"min", target.Min,
			"max", target.Max,
			"unterminated", len(rep.Unterminated),
		)
	}
	return current, nil
}

// step 发出一次精修请求。ok=false 表示服务失败，调用方应停止并返回当前文本。
// 空输出不替换当前文本。
func (r *Refiner) step(ctx context.Context, token *cancel.Token, name, current string, remaining *int,
	build func() ([]completion.Message, error)) (string, bool, error) {
	if err := token.Err(); err != nil {
		return "", false, err
	}
	msgs, err := build()
	if err != nil {
		logger.Error(ctx, "build refine prompt failed", err, "step", name)
		return "", false, nil
	}

	*remaining--
	metrics.RefineStepsTotal.WithLabelValues(name).Inc()
	logger.Debug(ctx, "refine step", "step", name, "remaining", *remaining)

	out, err := r.completer.Complete(ctx, token, msgs, r.opts)
	if err != nil {
		if cancel.IsCancelled(err) {
			return "", false, err
		}
		logger.Warn(ctx, "refine step failed, keeping current text",
			"step", name,
			"kind", string(completion.KindOf(err)),
			"error", err.Error(),
		)
		return "", false, nil
	}
	if strings.TrimSpace(out) == "" {
		return current, true, nil
	}
	return strings.TrimSpace(out), true, nil
}

func (r *Refiner) settle(_ context.Context, current string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return current, nil
}
