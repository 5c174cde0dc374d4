package prompt

import (
	"context"
	"fmt"
	"strings"

	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
)

// Titles 标题生成；content 为可选的正文摘要
func (r *Registry) Titles(ctx context.Context, theme, content string) ([]completion.Message, error) {
	block := ""
	if c := strings.TrimSpace(content); c != "" {
		block = "参考となる本文：\n" + c + "\n"
	}
	return r.Render(ctx, PromptTitlesV1, map[string]any{
		"theme":         theme,
		"content_block": block,
	})
}

// Outline 大纲生成
func (r *Registry) Outline(ctx context.Context, theme, tone string) ([]completion.Message, error) {
	return r.Render(ctx, PromptOutlineV1, map[string]any{
		"theme": theme,
		"tone":  toneOrDefault(tone),
	})
}

// SimpleSection 独立章节，不依赖其它章节
func (r *Registry) SimpleSection(ctx context.Context, in model.SectionInput) ([]completion.Message, error) {
	return r.Render(ctx, PromptSectionSimpleV1, map[string]any{
		"theme":             in.Theme,
		"tone":              toneOrDefault(in.Tone),
		"title":             in.Title,
		"description_block": descriptionBlock(in.Description),
		"min_length":        in.TargetLength.Min,
		"max_length":        in.TargetLength.Max,
	})
}

// ContextualSection 以前置章节为上下文；位置决定系统提示词
func (r *Registry) ContextualSection(ctx context.Context, in model.SectionInput, prior []model.PriorSection, pos model.Position) ([]completion.Message, error) {
	id := PromptSectionInteriorV1
	switch pos {
	case model.PositionIntro:
		id = PromptSectionIntroV1
	case model.PositionClosing:
		id = PromptSectionClosingV1
	}
	return r.Render(ctx, id, map[string]any{
		"theme":             in.Theme,
		"tone":              toneOrDefault(in.Tone),
		"title":             in.Title,
		"description_block": descriptionBlock(in.Description),
		"context":           JoinPrior(prior),
		"min_length":        in.TargetLength.Min,
		"max_length":        in.TargetLength.Max,
	})
}

// RefineResize 调整字数
func (r *Registry) RefineResize(ctx context.Context, text string, length int, target model.LengthRange) ([]completion.Message, error) {
	return r.Render(ctx, PromptRefineResizeV1, map[string]any{
		"text":       text,
		"length":     length,
		"min_length": target.Min,
		"max_length": target.Max,
	})
}

// RefineEndings 只修正段落结尾
func (r *Registry) RefineEndings(ctx context.Context, text string, unterminated []string) ([]completion.Message, error) {
	lines := make([]string, 0, len(unterminated))
	for _, p := range unterminated {
		lines = append(lines, "- "+firstLine(p))
	}
	return r.Render(ctx, PromptRefineEndingsV1, map[string]any{
		"text":         text,
		"unterminated": strings.Join(lines, "\n"),
	})
}

// RefineConsistency 字数与段落结尾的最终一致性检查
func (r *Registry) RefineConsistency(ctx context.Context, text string, target model.LengthRange) ([]completion.Message, error) {
	return r.Render(ctx, PromptRefineConsistencyV1, map[string]any{
		"text":       text,
		"min_length": target.Min,
		"max_length": target.Max,
	})
}

// ArticleIntro 整篇生成：引言
func (r *Registry) ArticleIntro(ctx context.Context, in model.ArticleInput, target model.LengthRange) ([]completion.Message, error) {
	titles := make([]string, 0, len(in.Sections))
	for i, s := range in.Sections {
		titles = append(titles, fmt.Sprintf("%d. %s", i+1, s.Title))
	}
	return r.Render(ctx, PromptArticleIntroV1, map[string]any{
		"article_title": in.Title,
		"theme":         in.Theme,
		"tone":          toneOrDefault(in.Tone),
		"section_list":  strings.Join(titles, "\n"),
		"min_length":    target.Min,
		"max_length":    target.Max,
	})
}

// ArticleMain 整篇生成：正文节，以前一节内容为上下文
func (r *Registry) ArticleMain(ctx context.Context, in model.ArticleInput, sk model.SectionSkeleton, previous string) ([]completion.Message, error) {
	return r.Render(ctx, PromptArticleMainV1, map[string]any{
		"article_title":     in.Title,
		"theme":             in.Theme,
		"tone":              toneOrDefault(in.Tone),
		"previous":          previous,
		"title":             sk.Title,
		"description_block": descriptionBlock(sk.Description),
		"min_length":        sk.TargetLength.Min,
		"max_length":        sk.TargetLength.Max,
	})
}

// ArticleConclusion 整篇生成：结论，以全文为上下文
func (r *Registry) ArticleConclusion(ctx context.Context, in model.ArticleInput, fullContext string, target model.LengthRange) ([]completion.Message, error) {
	return r.Render(ctx, PromptArticleConclusionV1, map[string]any{
		"article_title": in.Title,
		"theme":         in.Theme,
		"tone":          toneOrDefault(in.Tone),
		"full_context":  fullContext,
		"min_length":    target.Min,
		"max_length":    target.Max,
	})
}

// JoinPrior 把前置章节拼成 "## 标题\n\n正文" 序列
func JoinPrior(prior []model.PriorSection) string {
	if len(prior) == 0 {
		return "（まだありません）"
	}
	var b strings.Builder
	for i, p := range prior {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(p.Title)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(p.Content))
	}
	return b.String()
}

func descriptionBlock(desc string) string {
	if d := strings.TrimSpace(desc); d != "" {
		return "セクションの概要：" + d + "\n"
	}
	return ""
}

func toneOrDefault(tone string) string {
	if t := strings.TrimSpace(tone); t != "" {
		return t
	}
	return "丁寧でわかりやすい"
}

func firstLine(p string) string {
	if i := strings.IndexByte(p, '\n'); i >= 0 {
		return p[:i]
	}
	return p
}
