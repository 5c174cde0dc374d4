package handler

import (
	"github.com/gin-gonic/gin"

	"blog-gen-ai-api/internal/application/article"
	"blog-gen-ai-api/internal/interfaces/http/dto"
)

// JobHandler 整篇文章生成任务
type JobHandler struct {
	jobs *article.JobService
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobs *article.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Submit 提交整篇生成任务，由 job-worker 异步执行
// @Summary 提交整篇生成任务
// @Tags Jobs
// @Accept json
// @Produce json
// @Param body body dto.ArticleRequest true "标题、主题、语气与正文章节"
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Router /v1/articles [post]
func (h *JobHandler) Submit(c *gin.Context) {
	var req dto.ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), req.ToInput())
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Accepted(c, dto.ToJobResponse(job))
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}

// CancelJob 请求取消任务；运行中的任务由 worker 在下一次轮询时停止
// @Summary 取消任务
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [delete]
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}
