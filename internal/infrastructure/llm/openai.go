package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"blog-gen-ai-api/internal/config"
	"blog-gen-ai-api/internal/workflow/completion"
)

// OpenAITransport 通过官方 openai-go SDK 调用 chat completions。
// SDK 自带重试关闭，退避统一由 completion.Client 负责。
type OpenAITransport struct {
	name   string
	model  string
	client openai.Client
}

// NewOpenAITransport 按提供商配置创建 SDK 接入
func NewOpenAITransport(name string, cfg config.ProviderConfig, httpClient *http.Client) (*OpenAITransport, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider %s: model is required", name)
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAITransport{name: name, model: cfg.Model, client: openai.NewClient(opts...)}, nil
}

func (t *OpenAITransport) Name() string { return t.name }

// Complete 发送 chat completion 请求
func (t *OpenAITransport) Complete(ctx context.Context, req completion.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(t.model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if o := req.Options; o.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*o.MaxTokens))
	}
	if o := req.Options; o.Temperature != nil {
		params.Temperature = openai.Float(*o.Temperature)
	}
	if o := req.Options; o.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*o.PresencePenalty)
	}
	if o := req.Options; o.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*o.FrequencyPenalty)
	}

	resp, err := t.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			ce := completion.Classify(apiErr.StatusCode, apiErr.Code, apiErr.Message)
			ce.Err = err
			return "", ce
		}
		return "", completion.Transient(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", completion.Malformed("response has no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(msgs []completion.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case completion.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case completion.RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
