package llm

import (
	"fmt"

	"blog-gen-ai-api/internal/config"
	"blog-gen-ai-api/internal/workflow/completion"
)

// NewTransport 按默认提供商的 type 选择接入方式
func NewTransport(cfg *config.Config, factory *EinoFactory) (completion.Transport, error) {
	name := cfg.LLM.DefaultProvider
	providerCfg, ok := cfg.LLM.Providers[name]
	if !ok {
		return nil, fmt.Errorf("default provider %q not found in LLM config", name)
	}

	switch providerCfg.Type {
	case config.ProviderTypeProxy, "":
		t, err := NewProxyTransport(name, providerCfg, nil)
		if err != nil {
			return nil, err
		}
		return t, nil
	case config.ProviderTypeEino:
		return NewEinoTransport(name, factory), nil
	case config.ProviderTypeOpenAI:
		t, err := NewOpenAITransport(name, providerCfg, nil)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("provider %s: unknown type %q", name, providerCfg.Type)
	}
}

// CompletionDefaults 提供商配置中的 max_tokens/temperature 作为每次调用的默认参数
func CompletionDefaults(cfg *config.Config) completion.Options {
	var o completion.Options
	p, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok {
		return o
	}
	if p.MaxTokens > 0 {
		o.MaxTokens = completion.Int(p.MaxTokens)
	}
	if p.Temperature > 0 {
		o.Temperature = completion.Float(p.Temperature)
	}
	return o
}
