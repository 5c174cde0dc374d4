package dto

import (
	"time"

	"blog-gen-ai-api/internal/application/article"
	"blog-gen-ai-api/internal/workflow/model"
)

// TitlesRequest 标题候选请求
type TitlesRequest struct {
	Theme   string `json:"theme" binding:"required"`
	Content string `json:"content,omitempty"`
}

// TitlesResponse 标题候选响应
type TitlesResponse struct {
	Titles []string `json:"titles"`
}

// OutlineRequest 大纲请求
type OutlineRequest struct {
	Theme string `json:"theme" binding:"required"`
	Tone  string `json:"tone,omitempty"`
}

// SectionRequest 章节定义；字数区间省略时使用默认值
type SectionRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description,omitempty"`
	MinLength   int    `json:"min_length,omitempty"`
	MaxLength   int    `json:"max_length,omitempty"`
}

func (r SectionRequest) targetLength() model.LengthRange {
	return model.LengthRange{Min: r.MinLength, Max: r.MaxLength}
}

// CreateSessionRequest 创建生成会话
type CreateSessionRequest struct {
	Theme    string           `json:"theme" binding:"required"`
	Tone     string           `json:"tone,omitempty"`
	Mode     string           `json:"mode,omitempty"`
	Sections []SectionRequest `json:"sections" binding:"required,min=1,dive"`
}

// ToInput 转换为会话输入
func (r *CreateSessionRequest) ToInput() article.SessionInput {
	specs := make([]article.SectionSpec, 0, len(r.Sections))
	for _, s := range r.Sections {
		specs = append(specs, article.SectionSpec{
			Title:        s.Title,
			Description:  s.Description,
			TargetLength: s.targetLength(),
		})
	}
	return article.SessionInput{
		Theme:    r.Theme,
		Tone:     r.Tone,
		Mode:     model.Mode(r.Mode),
		Sections: specs,
	}
}

// SetModeRequest 切换生成模式
type SetModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// SectionGenerateResponse 单节生成结果
type SectionGenerateResponse struct {
	Index   int                 `json:"index"`
	Status  model.SectionStatus `json:"status"`
	Content string              `json:"content"`
	Length  int                 `json:"length"`
}

// ArticleRequest 整篇生成任务
type ArticleRequest struct {
	Title    string           `json:"title" binding:"required"`
	Theme    string           `json:"theme" binding:"required"`
	Tone     string           `json:"tone,omitempty"`
	Sections []SectionRequest `json:"sections" binding:"required,min=1,dive"`
}

// ToInput 转换为整篇生成输入
func (r *ArticleRequest) ToInput() model.ArticleInput {
	sections := make([]model.SectionSkeleton, 0, len(r.Sections))
	for _, s := range r.Sections {
		sections = append(sections, model.SectionSkeleton{
			Title:        s.Title,
			Description:  s.Description,
			TargetLength: s.targetLength(),
		})
	}
	return model.ArticleInput{Title: r.Title, Theme: r.Theme, Tone: r.Tone, Sections: sections}
}

// JobResponse 任务响应
type JobResponse struct {
	ID              string                  `json:"id"`
	Status          article.JobStatus       `json:"status"`
	Progress        int                     `json:"progress"`
	Result          *model.ArticleStructure `json:"result,omitempty"`
	Error           string                  `json:"error,omitempty"`
	CancelRequested bool                    `json:"cancel_requested"`
	CreatedAt       string                  `json:"created_at"`
	UpdatedAt       string                  `json:"updated_at"`
	FinishedAt      string                  `json:"finished_at,omitempty"`
}

// ToJobResponse 转换任务响应
func ToJobResponse(job *article.Job) *JobResponse {
	if job == nil {
		return nil
	}
	resp := &JobResponse{
		ID:              job.ID,
		Status:          job.Status,
		Progress:        job.Progress,
		Result:          job.Result,
		Error:           job.Error,
		CancelRequested: job.CancelRequested,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return resp
}
