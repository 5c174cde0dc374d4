// Package prompt 管理嵌入的提示词模板，并把任务参数组装成有序消息。
// 这里不涉及网络与重试，措辞可以独立测试。
package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"blog-gen-ai-api/internal/workflow/completion"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptTitlesV1            PromptID = "titles_v1"
	PromptOutlineV1           PromptID = "outline_v1"
	PromptSectionSimpleV1     PromptID = "section_simple_v1"
	PromptSectionIntroV1      PromptID = "section_intro_v1"
	PromptSectionInteriorV1   PromptID = "section_interior_v1"
	PromptSectionClosingV1    PromptID = "section_closing_v1"
	PromptRefineResizeV1      PromptID = "refine_resize_v1"
	PromptRefineEndingsV1     PromptID = "refine_endings_v1"
	PromptRefineConsistencyV1 PromptID = "refine_consistency_v1"
	PromptArticleIntroV1      PromptID = "article_intro_v1"
	PromptArticleMainV1       PromptID = "article_main_v1"
	PromptArticleConclusionV1 PromptID = "article_conclusion_v1"
)

// 上下文模式三个位置共用同一个 user 模板
const sectionContextualUser = "templates/section_contextual_v1.user.txt"

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

// Render 渲染模板并转换为补全消息
func (r *Registry) Render(ctx context.Context, id PromptID, vars map[string]any) ([]completion.Message, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("format prompt %s: %w", id, err)
	}
	out := make([]completion.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, completion.Message{Role: toRole(m.Role), Content: m.Content})
	}
	return out, nil
}

func toRole(r schema.RoleType) completion.Role {
	switch r {
	case schema.System:
		return completion.RoleSystem
	case schema.Assistant:
		return completion.RoleAssistant
	default:
		return completion.RoleUser
	}
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptSectionIntroV1, PromptSectionInteriorV1, PromptSectionClosingV1:
		return "templates/" + string(id) + ".system.txt", sectionContextualUser, nil
	case PromptTitlesV1, PromptOutlineV1, PromptSectionSimpleV1,
		PromptRefineResizeV1, PromptRefineEndingsV1, PromptRefineConsistencyV1,
		PromptArticleIntroV1, PromptArticleMainV1, PromptArticleConclusionV1:
		return "templates/" + string(id) + ".system.txt", "templates/" + string(id) + ".user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
