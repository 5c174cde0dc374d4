package article

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/pkg/logger"
	"blog-gen-ai-api/pkg/metrics"
)

// SectionSpec 会话中一节的定义
type SectionSpec struct {
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	TargetLength model.LengthRange `json:"targetLength"`
}

// SessionInput 创建会话的参数
type SessionInput struct {
	Theme    string
	Tone     string
	Mode     model.Mode
	Sections []SectionSpec
}

// SectionSnapshot 单节状态快照
type SectionSnapshot struct {
	Index        int                 `json:"index"`
	Title        string              `json:"title"`
	TargetLength model.LengthRange   `json:"targetLength"`
	Status       model.SectionStatus `json:"status"`
	Content      string              `json:"content"`
	Error        string              `json:"error,omitempty"`
}

// SessionSnapshot 会话状态快照
type SessionSnapshot struct {
	ID       string            `json:"id"`
	Theme    string            `json:"theme"`
	Tone     string            `json:"tone"`
	Mode     model.Mode        `json:"mode"`
	Batch    bool              `json:"batchRunning"`
	Sections []SectionSnapshot `json:"sections"`
}

// 合法的状态迁移。done/error → idle 来自上下文模式的级联清空。
var transitions = map[model.SectionStatus]map[model.SectionStatus]bool{
	model.StatusIdle:       {model.StatusGenerating: true},
	model.StatusGenerating: {model.StatusDone: true, model.StatusError: true, model.StatusAborting: true},
	model.StatusAborting:   {model.StatusIdle: true},
	model.StatusDone:       {model.StatusGenerating: true, model.StatusIdle: true},
	model.StatusError:      {model.StatusGenerating: true, model.StatusIdle: true},
}

// run 一次进行中的单节生成
type run struct {
	token *cancel.Token
	done  chan struct{}
}

type slot struct {
	spec    SectionSpec
	status  model.SectionStatus
	content string
	errMsg  string
	run     *run
}

// batch 整批生成；上下文模式下 stopAt 之后的章节不再生成
type batch struct {
	token  *cancel.Token
	stopAt int
	done   chan struct{}
}

// Session 一篇文章的生成会话，独占各节状态与下标到取消令牌的映射。
// 每个下标同时最多一个生成在进行。
type Session struct {
	id         string
	theme      string
	tone       string
	simple     *SimpleSectionGenerator
	contextual *ContextualSectionGenerator

	mu         sync.Mutex
	mode       model.Mode
	switching  bool
	closed     bool
	slots      []*slot
	batch      *batch
	lastActive time.Time
}

func newSession(id string, in SessionInput, simple *SimpleSectionGenerator, contextual *ContextualSectionGenerator) *Session {
	slots := make([]*slot, 0, len(in.Sections))
	for _, spec := range in.Sections {
		slots = append(slots, &slot{spec: spec, status: model.StatusIdle})
	}
	return &Session{
		id:         id,
		theme:      in.Theme,
		tone:       in.Tone,
		simple:     simple,
		contextual: contextual,
		mode:       in.Mode,
		slots:      slots,
		lastActive: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// Mode 当前生成模式
func (s *Session) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Snapshot 返回当前状态
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := SessionSnapshot{
		ID:       s.id,
		Theme:    s.theme,
		Tone:     s.tone,
		Mode:     s.mode,
		Batch:    s.batch != nil,
		Sections: make([]SectionSnapshot, 0, len(s.slots)),
	}
	for i, sl := range s.slots {
		out.Sections = append(out.Sections, SectionSnapshot{
			Index:        i,
			Title:        sl.spec.Title,
			TargetLength: sl.spec.TargetLength,
			Status:       sl.status,
			Content:      sl.content,
			Error:        sl.errMsg,
		})
	}
	return out
}

// GenerateSection 生成单节。该节已在生成时先取消旧的生成并等待其结束。
func (s *Session) GenerateSection(ctx context.Context, idx int) (string, error) {
	return s.generate(ctx, idx, nil)
}

// GenerateAll 生成所有章节：上下文模式严格从左到右，简单模式各节独立并发
func (s *Session) GenerateAll(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionNotFound
	case s.switching:
		s.mu.Unlock()
		return ErrModeSwitching
	case s.batch != nil:
		s.mu.Unlock()
		return ErrBatchRunning
	}
	b := &batch{token: cancel.New(nil), stopAt: len(s.slots), done: make(chan struct{})}
	s.batch = b
	mode := s.mode
	s.lastActive = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.batch == b {
			s.batch = nil
		}
		s.mu.Unlock()
		close(b.done)
	}()

	ctx = logger.WithContext(ctx, logger.SessionIDKey, s.id)
	logger.Info(ctx, "batch generation started", "mode", string(mode), "sections", len(s.slots))
	if mode == model.ModeContextual {
		return s.runChain(ctx, b)
	}
	return s.runIndependent(ctx, b)
}

func (s *Session) runChain(ctx context.Context, b *batch) error {
	for i := 0; ; i++ {
		s.mu.Lock()
		total, stopAt := len(s.slots), b.stopAt
		s.mu.Unlock()

		if b.token.Cancelled() {
			return cancel.ErrCancelled
		}
		if i >= total {
			return nil
		}
		if i >= stopAt {
			return cancel.ErrCancelled
		}
		if _, err := s.generate(ctx, i, b); err != nil {
			if b.token.Cancelled() || cancel.IsCancelled(err) || errors.Is(err, ErrModeSwitching) {
				return cancel.ErrCancelled
			}
			return err
		}
	}
}

func (s *Session) runIndependent(ctx context.Context, b *batch) error {
	var g errgroup.Group
	for i := range s.slots {
		g.Go(func() error {
			_, err := s.generate(ctx, i, b)
			if err != nil && !cancel.IsCancelled(err) && !errors.Is(err, ErrModeSwitching) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if b.token.Cancelled() {
		return cancel.ErrCancelled
	}
	return nil
}

func (s *Session) generate(ctx context.Context, idx int, b *batch) (string, error) {
	ctx = logger.WithContext(ctx, logger.SessionIDKey, s.id)
	ctx = logger.WithContext(ctx, logger.SectionIndexKey, idx)

	r, mode, prior, err := s.acquire(ctx, idx, b)
	if err != nil {
		return "", err
	}

	spec := s.slots[idx].spec
	in := model.SectionInput{
		Theme:        s.theme,
		Tone:         s.tone,
		Title:        spec.Title,
		Description:  spec.Description,
		TargetLength: spec.TargetLength,
	}
	var text string
	if mode == model.ModeContextual {
		text, err = s.contextual.Generate(ctx, r.token, in, prior, model.PositionOf(idx, len(s.slots)))
	} else {
		text, err = s.simple.Generate(ctx, r.token, in)
	}

	if s.finish(ctx, idx, r, text, err) {
		return "", cancel.ErrCancelled
	}
	return text, err
}

// acquire 为 idx 登记新的生成。已有生成时先请求取消并等待它结束。
// b 非空表示由整批生成发起，批次已停在 idx 之前时不再启动。
// 上下文模式下单节启动要求其他章节空闲，成功后清空 idx 之后的章节。
func (s *Session) acquire(ctx context.Context, idx int, b *batch) (*run, model.Mode, []model.PriorSection, error) {
	var sl *slot
	for {
		s.mu.Lock()
		switch {
		case s.closed:
			s.mu.Unlock()
			return nil, "", nil, ErrSessionNotFound
		case s.switching:
			s.mu.Unlock()
			return nil, "", nil, ErrModeSwitching
		case idx < 0 || idx >= len(s.slots):
			s.mu.Unlock()
			return nil, "", nil, ErrSectionIndex
		case b != nil && (b.token.Cancelled() || idx >= b.stopAt):
			s.mu.Unlock()
			return nil, "", nil, cancel.ErrCancelled
		case b == nil && s.mode == model.ModeContextual && s.batch != nil:
			s.mu.Unlock()
			return nil, "", nil, ErrBatchRunning
		case b == nil && s.mode == model.ModeContextual && s.busyExceptLocked(idx):
			s.mu.Unlock()
			return nil, "", nil, ErrSectionBusy
		}

		sl = s.slots[idx]
		if sl.run == nil {
			break
		}
		prev := sl.run
		s.setStatus(ctx, idx, sl, model.StatusAborting)
		prev.token.Cancel()
		s.mu.Unlock()

		logger.Info(ctx, "section already generating, cancelled previous run")
		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil, "", nil, ctx.Err()
		}
	}
	defer s.mu.Unlock()

	mode := s.mode
	var prior []model.PriorSection
	if mode == model.ModeContextual {
		for j := 0; j < idx; j++ {
			p := s.slots[j]
			if p.status != model.StatusDone || p.content == "" {
				return nil, "", nil, ErrPriorSectionsIncomplete
			}
			prior = append(prior, model.PriorSection{Title: p.spec.Title, Content: p.content})
		}
		for j := idx + 1; j < len(s.slots); j++ {
			s.cancelSlotLocked(ctx, j, true)
		}
	}

	var parent *cancel.Token
	if b != nil {
		parent = b.token
	}
	r := &run{token: cancel.New(parent), done: make(chan struct{})}
	sl.run = r
	sl.errMsg = ""
	s.setStatus(ctx, idx, sl, model.StatusGenerating)
	s.lastActive = time.Now()
	metrics.SectionsGenerating.Inc()
	return r, mode, prior, nil
}

// finish 记录生成结果，返回本次生成是否以取消告终。
// 取消时丢弃内容并回到 idle。
func (s *Session) finish(ctx context.Context, idx int, r *run, text string, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(r.done)
	metrics.SectionsGenerating.Dec()

	cancelled := r.token.Cancelled() || cancel.IsCancelled(err) || errors.Is(err, context.Canceled)
	sl := s.slots[idx]
	if sl.run != r {
		return cancelled
	}
	sl.run = nil
	s.lastActive = time.Now()

	switch {
	case cancelled:
		s.setStatus(ctx, idx, sl, model.StatusAborting)
		sl.content = ""
		s.setStatus(ctx, idx, sl, model.StatusIdle)
		logger.Info(ctx, "section generation cancelled")
	case err != nil:
		sl.errMsg = err.Error()
		s.setStatus(ctx, idx, sl, model.StatusError)
		logger.Warn(ctx, "section generation failed", "error", err.Error())
	default:
		sl.content = text
		s.setStatus(ctx, idx, sl, model.StatusDone)
	}
	return cancelled
}

// Cancel 取消 idx 的生成并等待结束。
// 上下文模式下从 idx 到末尾的所有章节一并取消并清空，前面的章节保持不变。
func (s *Session) Cancel(ctx context.Context, idx int) error {
	ctx = logger.WithContext(ctx, logger.SessionIDKey, s.id)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if idx < 0 || idx >= len(s.slots) {
		s.mu.Unlock()
		return ErrSectionIndex
	}

	var waits []chan struct{}
	if s.mode == model.ModeContextual {
		if s.batch != nil && idx < s.batch.stopAt {
			s.batch.stopAt = idx
		}
		for j := idx; j < len(s.slots); j++ {
			if w := s.cancelSlotLocked(ctx, j, true); w != nil {
				waits = append(waits, w)
			}
		}
		logger.Info(ctx, "contextual cancel cascaded", "from", idx, "to", len(s.slots)-1)
	} else if w := s.cancelSlotLocked(ctx, idx, false); w != nil {
		waits = append(waits, w)
	}
	s.lastActive = time.Now()
	s.mu.Unlock()

	return waitAll(ctx, waits)
}

// cancelSlotLocked 取消进行中的生成；clear 为真时同时清空已完成的内容
func (s *Session) busyExceptLocked(idx int) bool {
	for j, sl := range s.slots {
		if j != idx && sl.run != nil {
			return true
		}
	}
	return false
}

func (s *Session) cancelSlotLocked(ctx context.Context, idx int, clear bool) chan struct{} {
	sl := s.slots[idx]
	if sl.run != nil {
		s.setStatus(ctx, idx, sl, model.StatusAborting)
		sl.content = ""
		sl.run.token.Cancel()
		return sl.run.done
	}
	if clear {
		sl.content = ""
		sl.errMsg = ""
		s.setStatus(ctx, idx, sl, model.StatusIdle)
	}
	return nil
}

func (s *Session) cancelAllLocked(ctx context.Context) []chan struct{} {
	var waits []chan struct{}
	if s.batch != nil {
		s.batch.stopAt = 0
		s.batch.token.Cancel()
		waits = append(waits, s.batch.done)
	}
	for i := range s.slots {
		if w := s.cancelSlotLocked(ctx, i, false); w != nil {
			waits = append(waits, w)
		}
	}
	return waits
}

// SetMode 切换模式：先取消所有进行中的生成并等待其结束，再应用新模式
func (s *Session) SetMode(ctx context.Context, mode model.Mode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, s.id)

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionNotFound
	case s.switching:
		s.mu.Unlock()
		return ErrModeSwitching
	case s.mode == mode:
		s.mu.Unlock()
		return nil
	}
	s.switching = true
	waits := s.cancelAllLocked(ctx)
	s.mu.Unlock()

	err := waitAll(ctx, waits)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.switching = false
	if err != nil {
		return err
	}
	from := s.mode
	s.mode = mode
	s.lastActive = time.Now()
	logger.Info(ctx, "generation mode switched", "from", string(from), "mode", string(mode), "cancelled_runs", len(waits))
	return nil
}

// Close 取消所有生成并使会话失效
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	waits := s.cancelAllLocked(ctx)
	s.mu.Unlock()
	return waitAll(ctx, waits)
}

// idle 没有进行中的生成，且最后活动早于 before
func (s *Session) idle(before time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil || s.switching || s.lastActive.After(before) {
		return false
	}
	for _, sl := range s.slots {
		if sl.run != nil {
			return false
		}
	}
	return true
}

func (s *Session) setStatus(ctx context.Context, idx int, sl *slot, to model.SectionStatus) {
	if sl.status == to {
		return
	}
	if !transitions[sl.status][to] {
		logger.Warn(ctx, "illegal section transition ignored",
			"section_index", idx, "from", string(sl.status), "to", string(to))
		return
	}
	logger.Debug(ctx, "section transition", "from", string(sl.status), "to", string(to))
	sl.status = to
}

func waitAll(ctx context.Context, waits []chan struct{}) error {
	for _, w := range waits {
		select {
		case <-w:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
