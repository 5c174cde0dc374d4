package eino

import "context"

type workflowKey struct{}

type providerKey struct{}

// WithWorkflow 标记本次调用所属的生成任务（titles/outline/section/refine/article）
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return context.WithValue(ctx, workflowKey{}, workflow)
}

// WorkflowFromContext 未标记时返回 "unknown"
func WorkflowFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(workflowKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// WithProvider 标记 LLM 提供商名称
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFromContext 未标记时返回 "unknown"
func ProviderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
