package llm

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	einocallbacks "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	einoobs "blog-gen-ai-api/internal/observability/eino"
	"blog-gen-ai-api/internal/workflow/completion"
)

// ChatModelSource 按提供商名称取 ChatModel（EinoFactory 实现）
type ChatModelSource interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// EinoTransport 通过 Eino ChatModel 调用补全
type EinoTransport struct {
	name   string
	source ChatModelSource
}

// NewEinoTransport 创建 Eino 接入
func NewEinoTransport(name string, source ChatModelSource) *EinoTransport {
	return &EinoTransport{name: name, source: source}
}

func (t *EinoTransport) Name() string { return t.name }

// Complete 调用 ChatModel.Generate 并归类错误
func (t *EinoTransport) Complete(ctx context.Context, req completion.Request) (string, error) {
	chatModel, err := t.source.Get(ctx, t.name)
	if err != nil {
		return "", &completion.Error{Kind: completion.KindFatal, Code: "invalid_configuration", Message: err.Error(), Err: err}
	}

	ctx = einoobs.WithProvider(ctx, t.name)
	ctx = einocallbacks.InitCallbacks(ctx, &einocallbacks.RunInfo{
		Name:      t.name,
		Type:      "OpenAI",
		Component: components.ComponentOfChatModel,
	})

	msg, err := chatModel.Generate(ctx, toSchemaMessages(req.Messages), einoOptions(req.Options)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classifyText(err)
	}
	if msg == nil {
		return "", completion.Malformed("chat model returned no message", nil)
	}
	return msg.Content, nil
}

func toSchemaMessages(msgs []completion.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case completion.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case completion.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

func einoOptions(o completion.Options) []model.Option {
	var opts []model.Option
	if o.Temperature != nil {
		opts = append(opts, model.WithTemperature(float32(*o.Temperature)))
	}
	if o.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*o.MaxTokens))
	}
	extra := map[string]any{}
	if o.PresencePenalty != nil {
		extra["presence_penalty"] = *o.PresencePenalty
	}
	if o.FrequencyPenalty != nil {
		extra["frequency_penalty"] = *o.FrequencyPenalty
	}
	if len(extra) > 0 {
		opts = append(opts, openaiopts.WithExtraFields(extra))
	}
	return opts
}

var statusCodePattern = regexp.MustCompile(`(?i)status(?:\s*code)?\s*[:=]?\s*(\d{3})`)

// classifyText 从错误文本中提取状态码与已知错误码；Eino 适配器不暴露结构化错误
func classifyText(err error) *completion.Error {
	var ce *completion.Error
	if errors.As(err, &ce) {
		return ce
	}
	msg := err.Error()
	status := 0
	if m := statusCodePattern.FindStringSubmatch(msg); len(m) == 2 {
		status, _ = strconv.Atoi(m[1])
	}
	code := ""
	lower := strings.ToLower(msg)
	for _, known := range knownCodes {
		if strings.Contains(lower, known) {
			code = known
			break
		}
	}
	out := completion.Classify(status, code, msg)
	out.Err = err
	return out
}

var knownCodes = []string{
	completion.CodeRateLimitExceeded,
	"invalid_api_key",
	"authentication_error",
	"permission_denied",
	"invalid_configuration",
	"missing_api_key",
}
