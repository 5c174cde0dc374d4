package handler

import (
	"github.com/gin-gonic/gin"

	"blog-gen-ai-api/internal/application/article"
	"blog-gen-ai-api/internal/interfaces/http/dto"
)

// GenerationHandler 标题与大纲生成
type GenerationHandler struct {
	titles   *article.TitleGenerator
	outlines *article.OutlineGenerator
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(titles *article.TitleGenerator, outlines *article.OutlineGenerator) *GenerationHandler {
	return &GenerationHandler{titles: titles, outlines: outlines}
}

// Titles 生成 3 个标题候选
// @Summary 生成标题候选
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body dto.TitlesRequest true "主题与可选正文"
// @Success 200 {object} dto.Response[dto.TitlesResponse]
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/titles [post]
func (h *GenerationHandler) Titles(c *gin.Context) {
	var req dto.TitlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	token, stop := requestToken(ctx)
	defer stop()

	titles, err := h.titles.Generate(ctx, token, req.Theme, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, &dto.TitlesResponse{Titles: titles})
}

// Outline 生成文章大纲
// @Summary 生成大纲
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body dto.OutlineRequest true "主题与语气"
// @Success 200 {object} dto.Response[model.Outline]
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/outlines [post]
func (h *GenerationHandler) Outline(c *gin.Context) {
	var req dto.OutlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	token, stop := requestToken(ctx)
	defer stop()

	outline, err := h.outlines.Generate(ctx, token, req.Theme, req.Tone)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, outline)
}
