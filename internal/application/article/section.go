package article

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/internal/workflow/prompt"
	"blog-gen-ai-api/internal/workflow/refine"
)

// SimpleSectionGenerator 简单模式：每节一个独立提示词
type SimpleSectionGenerator struct {
	completer completion.Completer
	prompts   *prompt.Registry
	refiner   *refine.Refiner
	settings  Settings
}

func NewSimpleSectionGenerator(completer completion.Completer, prompts *prompt.Registry, refiner *refine.Refiner, settings Settings) *SimpleSectionGenerator {
	return &SimpleSectionGenerator{completer: completer, prompts: prompts, refiner: refiner, settings: settings}
}

func (g *SimpleSectionGenerator) Generate(ctx context.Context, token *cancel.Token, in model.SectionInput) (text string, err error) {
	start := time.Now()
	defer func() { observe("section_simple", start, err) }()

	in.TargetLength = rangeOr(in.TargetLength, g.settings.SectionLength)
	msgs, err := g.prompts.SimpleSection(ctx, in)
	if err != nil {
		return "", err
	}
	return draftAndRefine(ctx, g.completer, g.refiner, token, msgs, in.TargetLength, g.settings.RefineAttempts)
}

// ContextualSectionGenerator 上下文模式：提示词内嵌前面所有章节，按位置切换系统提示词
type ContextualSectionGenerator struct {
	completer completion.Completer
	prompts   *prompt.Registry
	refiner   *refine.Refiner
	settings  Settings
}

func NewContextualSectionGenerator(completer completion.Completer, prompts *prompt.Registry, refiner *refine.Refiner, settings Settings) *ContextualSectionGenerator {
	return &ContextualSectionGenerator{completer: completer, prompts: prompts, refiner: refiner, settings: settings}
}

func (g *ContextualSectionGenerator) Generate(ctx context.Context, token *cancel.Token, in model.SectionInput, prior []model.PriorSection, pos model.Position) (text string, err error) {
	start := time.Now()
	defer func() { observe("section_contextual", start, err) }()

	in.TargetLength = rangeOr(in.TargetLength, g.settings.SectionLength)
	msgs, err := g.prompts.ContextualSection(ctx, in, prior, pos)
	if err != nil {
		return "", err
	}
	return draftAndRefine(ctx, g.completer, g.refiner, token, msgs, in.TargetLength, g.settings.RefineAttempts)
}

func draftAndRefine(ctx context.Context, completer completion.Completer, refiner *refine.Refiner, token *cancel.Token,
	msgs []completion.Message, target model.LengthRange, attempts int) (string, error) {
	draft, err := completer.Complete(ctx, token, msgs, completion.Options{})
	if err != nil {
		return "", err
	}
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return "", completion.Malformed("empty section content", nil)
	}
	text, err := refiner.Refine(ctx, token, draft, target, attempts)
	if err != nil {
		return "", fmt.Errorf("refine section: %w", err)
	}
	return text, nil
}
