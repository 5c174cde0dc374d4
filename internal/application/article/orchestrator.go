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
	"blog-gen-ai-api/internal/workflow/validate"
	"blog-gen-ai-api/pkg/logger"
)

// introTitle 引言节的标题
const introTitle = "はじめに"

// conclusionTitle 结论节的标题
const conclusionTitle = "まとめ"

// ProgressFunc 整篇生成进度回调，done/total 为已完成与总请求数
type ProgressFunc func(done, total int)

// Orchestrator 无人值守地生成整篇文章：引言 → 依次链式生成的正文节 → 以全文为上下文的结论。
// 不做精修，结束时统一校验一次字数，任一节越界则整体失败。
type Orchestrator struct {
	completer completion.Completer
	prompts   *prompt.Registry
	settings  Settings
}

func NewOrchestrator(completer completion.Completer, prompts *prompt.Registry, settings Settings) *Orchestrator {
	return &Orchestrator{completer: completer, prompts: prompts, settings: settings}
}

func (o *Orchestrator) Generate(ctx context.Context, token *cancel.Token, in model.ArticleInput, onProgress ProgressFunc) (article *model.ArticleStructure, err error) {
	start := time.Now()
	defer func() { observe("article", start, err) }()

	if len(in.Sections) == 0 {
		return nil, fmt.Errorf("%w: article needs at least one main section", ErrInvalidInput)
	}
	total := len(in.Sections) + 2
	done := 0
	progress := func() {
		done++
		if onProgress != nil {
			onProgress(done, total)
		}
	}

	article = &model.ArticleStructure{Title: in.Title}

	// 引言
	introTarget := o.settings.IntroLength
	msgs, err := o.prompts.ArticleIntro(ctx, in, introTarget)
	if err != nil {
		return nil, err
	}
	intro, err := o.complete(ctx, token, msgs)
	if err != nil {
		return nil, err
	}
	article.Introduction = model.Section{Title: introTitle, Content: intro, TargetLength: introTarget}
	progress()

	// 正文：每节以前一节内容为上下文，相邻请求之间插入节流等待
	sleep := o.settings.sleep()
	previous := intro
	for i, sk := range in.Sections {
		if i > 0 {
			if err := sleep(ctx, token, o.settings.PacingDelay); err != nil {
				return nil, err
			}
		}
		sk.TargetLength = rangeOr(sk.TargetLength, o.settings.SectionLength)
		msgs, err := o.prompts.ArticleMain(ctx, in, sk, previous)
		if err != nil {
			return nil, err
		}
		content, err := o.complete(ctx, token, msgs)
		if err != nil {
			return nil, err
		}
		article.MainSections = append(article.MainSections, model.Section{
			Title:        sk.Title,
			Content:      content,
			TargetLength: sk.TargetLength,
		})
		previous = content
		logger.Info(ctx, "article main section generated", "index", i, "length", validate.Length(content))
		progress()
	}

	// 结论
	prior := make([]model.PriorSection, 0, len(article.MainSections)+1)
	prior = append(prior, model.PriorSection{Title: introTitle, Content: intro})
	for _, s := range article.MainSections {
		prior = append(prior, model.PriorSection{Title: s.Title, Content: s.Content})
	}
	fullContext := prompt.JoinPrior(prior)
	conclusionTarget := o.settings.ConclusionLength
	msgs, err = o.prompts.ArticleConclusion(ctx, in, fullContext, conclusionTarget)
	if err != nil {
		return nil, err
	}
	conclusion, err := o.complete(ctx, token, msgs)
	if err != nil {
		return nil, err
	}
	article.Conclusion = model.Conclusion{
		Section:     model.Section{Title: conclusionTitle, Content: conclusion, TargetLength: conclusionTarget},
		FullContext: fullContext,
	}
	progress()

	if err := checkArticleLengths(article); err != nil {
		logger.Warn(ctx, "article rejected by length check", "error", err.Error())
		return nil, err
	}
	return article, nil
}

func (o *Orchestrator) complete(ctx context.Context, token *cancel.Token, msgs []completion.Message) (string, error) {
	text, err := o.completer.Complete(ctx, token, msgs, completion.Options{})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func checkArticleLengths(a *model.ArticleStructure) error {
	var violations []SectionLengthViolation
	for _, s := range a.AllSections() {
		if err := validate.CheckLength(s.Content, s.TargetLength); err != nil {
			violations = append(violations, SectionLengthViolation{
				Section: s.Title,
				Length:  validate.Length(s.Content),
				Target:  s.TargetLength,
			})
		}
	}
	if len(violations) > 0 {
		return &LengthViolationError{Violations: violations}
	}
	return nil
}
