// Package completion 封装对外部补全服务的调用：消息、生成参数、错误分类与重试退避。
package completion

import "context"

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 带角色的消息；顺序有语义，system 在前
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Options 生成参数，nil 字段使用默认值
type Options struct {
	MaxTokens        *int
	Temperature      *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

// Merge 用 defaults 填充未设置的字段
func (o Options) Merge(defaults Options) Options {
	if o.MaxTokens == nil {
		o.MaxTokens = defaults.MaxTokens
	}
	if o.Temperature == nil {
		o.Temperature = defaults.Temperature
	}
	if o.PresencePenalty == nil {
		o.PresencePenalty = defaults.PresencePenalty
	}
	if o.FrequencyPenalty == nil {
		o.FrequencyPenalty = defaults.FrequencyPenalty
	}
	return o
}

func Int(v int) *int { return &v }
func Float(v float64) *float64 { return &v }

// Request 一次补全请求
type Request struct {
	Messages []Message
	Options  Options
}

// Transport 补全服务的一种接入方式（代理 HTTP / eino / openai SDK）。
// 失败时应返回 *Error，以便客户端按类别决定是否重试。
type Transport interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}
