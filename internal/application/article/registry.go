package article

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/pkg/logger"
)

// SessionRegistry 持有所有活跃会话，并定期丢弃长时间空闲的会话
type SessionRegistry struct {
	simple     *SimpleSectionGenerator
	contextual *ContextualSectionGenerator
	settings   Settings

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry(simple *SimpleSectionGenerator, contextual *ContextualSectionGenerator, settings Settings) *SessionRegistry {
	return &SessionRegistry{
		simple:     simple,
		contextual: contextual,
		settings:   settings,
		sessions:   make(map[string]*Session),
	}
}

// Create 创建会话；未指定模式时使用默认模式，未指定字数区间的章节使用章节默认区间
func (r *SessionRegistry) Create(in SessionInput) (*Session, error) {
	if strings.TrimSpace(in.Theme) == "" {
		return nil, fmt.Errorf("%w: theme is required", ErrInvalidInput)
	}
	if len(in.Sections) == 0 {
		return nil, fmt.Errorf("%w: at least one section is required", ErrInvalidInput)
	}
	specs := make([]SectionSpec, len(in.Sections))
	for i, sec := range in.Sections {
		if strings.TrimSpace(sec.Title) == "" {
			return nil, fmt.Errorf("%w: section %d has no title", ErrInvalidInput, i)
		}
		sec.TargetLength = rangeOr(sec.TargetLength, r.settings.SectionLength)
		specs[i] = sec
	}
	in.Sections = specs
	if in.Mode == "" {
		in.Mode = r.settings.DefaultMode
	}
	if !in.Mode.Valid() {
		return nil, ErrInvalidMode
	}

	s := newSession(uuid.NewString(), in, r.simple, r.contextual)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s, nil
}

// Get 按 ID 查找会话
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Discard 取消会话内所有生成并销毁其状态
func (r *SessionRegistry) Discard(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return s.Close(ctx)
}

// Len 活跃会话数
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep 丢弃空闲超过 TTL 的会话，返回丢弃数量
func (r *SessionRegistry) Sweep(ctx context.Context, now time.Time) int {
	before := now.Add(-r.settings.SessionTTL)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idle(before) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		_ = s.Close(ctx)
	}
	if len(expired) > 0 {
		logger.Info(ctx, "expired sessions discarded", "count", len(expired))
	}
	return len(expired)
}

// RunJanitor 周期性清理过期会话，ctx 结束时返回
func (r *SessionRegistry) RunJanitor(ctx context.Context) {
	interval := r.settings.SessionTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(ctx, now)
		}
	}
}

// Shutdown 关闭所有会话
func (r *SessionRegistry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range all {
		_ = s.Close(ctx)
	}
}

// DefaultMode 新会话的默认模式
func (r *SessionRegistry) DefaultMode() model.Mode {
	return r.settings.DefaultMode
}
