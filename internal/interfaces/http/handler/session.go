package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"blog-gen-ai-api/internal/application/article"
	"blog-gen-ai-api/internal/interfaces/http/dto"
	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/internal/workflow/validate"
	"blog-gen-ai-api/pkg/logger"
)

// SessionHandler 分节生成会话
type SessionHandler struct {
	registry *article.SessionRegistry
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(registry *article.SessionRegistry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

// session 取路径中的会话，并把 session_id 注入日志上下文
func (h *SessionHandler) session(c *gin.Context) (*article.Session, context.Context, bool) {
	id := dto.BindSessionID(c)
	s, err := h.registry.Get(id)
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return s, logger.WithContext(c.Request.Context(), logger.SessionIDKey, id), true
}

// Create 创建会话
// @Summary 创建生成会话
// @Tags Sessions
// @Accept json
// @Produce json
// @Param body body dto.CreateSessionRequest true "主题、语气、章节与模式"
// @Success 201 {object} dto.Response[article.SessionSnapshot]
// @Router /v1/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	s, err := h.registry.Create(req.ToInput())
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Created(c, s.Snapshot())
}

// Get 会话快照
// @Summary 获取会话状态
// @Tags Sessions
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.Response[article.SessionSnapshot]
// @Router /v1/sessions/{sid} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	dto.Success(c, s.Snapshot())
}

// Delete 丢弃会话：取消全部生成并销毁状态
// @Summary 丢弃会话
// @Tags Sessions
// @Param sid path string true "会话 ID"
// @Success 204
// @Router /v1/sessions/{sid} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	id := dto.BindSessionID(c)
	ctx := logger.WithContext(c.Request.Context(), logger.SessionIDKey, id)
	if err := h.registry.Discard(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	dto.NoContent(c)
}

// SetMode 切换模式：先取消并等待进行中的生成
// @Summary 切换生成模式
// @Tags Sessions
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param body body dto.SetModeRequest true "simple 或 contextual"
// @Success 200 {object} dto.Response[article.SessionSnapshot]
// @Router /v1/sessions/{sid}/mode [put]
func (h *SessionHandler) SetMode(c *gin.Context) {
	var req dto.SetModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	s, ctx, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.SetMode(ctx, model.Mode(req.Mode)); err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, s.Snapshot())
}

// GenerateSection 生成单节
// @Summary 生成单节
// @Tags Sessions
// @Produce json
// @Param sid path string true "会话 ID"
// @Param idx path int true "章节下标"
// @Param async query bool false "后台生成"
// @Success 200 {object} dto.Response[dto.SectionGenerateResponse]
// @Success 202 {object} dto.Response[article.SessionSnapshot]
// @Router /v1/sessions/{sid}/sections/{idx}/generate [post]
func (h *SessionHandler) GenerateSection(c *gin.Context) {
	idx, ok := dto.BindSectionIndex(c)
	if !ok {
		dto.BadRequest(c, "section index must be a non-negative integer")
		return
	}
	s, ctx, ok := h.session(c)
	if !ok {
		return
	}
	ctx = logger.WithContext(ctx, logger.SectionIndexKey, idx)

	if dto.IsAsync(c) {
		go h.background(ctx, func(bg context.Context) error {
			_, err := s.GenerateSection(bg, idx)
			return err
		})
		dto.Accepted(c, s.Snapshot())
		return
	}

	text, err := s.GenerateSection(ctx, idx)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, &dto.SectionGenerateResponse{
		Index:   idx,
		Status:  model.StatusDone,
		Content: text,
		Length:  validate.Length(text),
	})
}

// GenerateAll 生成全部章节：上下文模式严格从左到右，简单模式各节独立
// @Summary 生成全部章节
// @Tags Sessions
// @Produce json
// @Param sid path string true "会话 ID"
// @Param async query bool false "后台生成"
// @Success 200 {object} dto.Response[article.SessionSnapshot]
// @Success 202 {object} dto.Response[article.SessionSnapshot]
// @Router /v1/sessions/{sid}/generate [post]
func (h *SessionHandler) GenerateAll(c *gin.Context) {
	s, ctx, ok := h.session(c)
	if !ok {
		return
	}

	if dto.IsAsync(c) {
		go h.background(ctx, s.GenerateAll)
		dto.Accepted(c, s.Snapshot())
		return
	}

	if err := s.GenerateAll(ctx); err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, s.Snapshot())
}

// CancelSection 取消单节生成；上下文模式会连带取消并清空其后所有章节
// @Summary 取消章节生成
// @Tags Sessions
// @Produce json
// @Param sid path string true "会话 ID"
// @Param idx path int true "章节下标"
// @Success 200 {object} dto.Response[article.SessionSnapshot]
// @Router /v1/sessions/{sid}/sections/{idx}/generation [delete]
func (h *SessionHandler) CancelSection(c *gin.Context) {
	idx, ok := dto.BindSectionIndex(c)
	if !ok {
		dto.BadRequest(c, "section index must be a non-negative integer")
		return
	}
	s, ctx, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Cancel(logger.WithContext(ctx, logger.SectionIndexKey, idx), idx); err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, s.Snapshot())
}

// background 脱离请求生命周期执行；结果通过会话快照查询
func (h *SessionHandler) background(ctx context.Context, fn func(context.Context) error) {
	bg := context.WithoutCancel(ctx)
	if err := fn(bg); err != nil && !cancel.IsCancelled(err) {
		logger.Warn(bg, "background generation failed", "error", err.Error())
	}
}
