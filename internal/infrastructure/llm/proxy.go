package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"blog-gen-ai-api/internal/config"
	"blog-gen-ai-api/internal/workflow/completion"
)

const defaultProxyPath = "/api/completion"

// maxErrorBody 错误响应体最多读取的字节数
const maxErrorBody = 64 << 10

// ProxyTransport 补全代理 HTTP 协议
type ProxyTransport struct {
	name     string
	endpoint string
	client   *http.Client
}

// NewProxyTransport 按提供商配置创建代理接入
func NewProxyTransport(name string, cfg config.ProviderConfig, client *http.Client) (*ProxyTransport, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("provider %s: base_url is required", name)
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultProxyPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &ProxyTransport{name: name, endpoint: base + path, client: client}, nil
}

func (t *ProxyTransport) Name() string { return t.name }

type proxyOptions struct {
	MaxTokens        *int     `json:"maxTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	PresencePenalty  *float64 `json:"presencePenalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequencyPenalty,omitempty"`
}

type proxyRequest struct {
	Messages []completion.Message `json:"messages"`
	Options  *proxyOptions        `json:"options,omitempty"`
}

type proxyResponse struct {
	Content *string `json:"content"`
}

type proxyErrorResponse struct {
	Error   string `json:"error"`
	Details struct {
		Code string `json:"code"`
	} `json:"details"`
}

// Complete 发送一次请求；失败时返回 *completion.Error
func (t *ProxyTransport) Complete(ctx context.Context, req completion.Request) (string, error) {
	body, err := json.Marshal(proxyRequest{Messages: req.Messages, Options: toProxyOptions(req.Options)})
	if err != nil {
		return "", completion.Classify(0, "", fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &completion.Error{Kind: completion.KindFatal, Code: "invalid_configuration", Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", completion.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var er proxyErrorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", completion.Classify(resp.StatusCode, er.Details.Code, msg)
	}

	var out proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return "", completion.Malformed("empty response body", err)
		}
		return "", completion.Malformed("decode response body", err)
	}
	if out.Content == nil {
		return "", completion.Malformed("response has no content field", nil)
	}
	return *out.Content, nil
}

func toProxyOptions(o completion.Options) *proxyOptions {
	if o.MaxTokens == nil && o.Temperature == nil && o.PresencePenalty == nil && o.FrequencyPenalty == nil {
		return nil
	}
	return &proxyOptions{
		MaxTokens:        o.MaxTokens,
		Temperature:      o.Temperature,
		PresencePenalty:  o.PresencePenalty,
		FrequencyPenalty: o.FrequencyPenalty,
	}
}
