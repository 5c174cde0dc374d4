package article

import (
	"errors"
	"fmt"
	"strings"

	"blog-gen-ai-api/internal/workflow/model"
)

var (
	// ErrSessionNotFound 会话不存在或已被丢弃
	ErrSessionNotFound = errors.New("session not found")
	// ErrSectionIndex 章节下标越界
	ErrSectionIndex = errors.New("section index out of range")
	// ErrModeSwitching 模式切换进行中，暂不接受新的生成
	ErrModeSwitching = errors.New("mode switch in progress")
	// ErrBatchRunning 上下文模式的整批生成进行中
	ErrBatchRunning = errors.New("contextual batch generation in progress")
	// ErrSectionBusy 上下文模式下另一章节正在生成
	ErrSectionBusy = errors.New("another section is generating in contextual mode")
	// ErrPriorSectionsIncomplete 上下文模式下前置章节尚未生成
	ErrPriorSectionsIncomplete = errors.New("preceding sections are not generated yet")
	// ErrInvalidMode 未知的生成模式
	ErrInvalidMode = errors.New("invalid generation mode")
	// ErrInvalidInput 请求参数不完整
	ErrInvalidInput = errors.New("invalid input")
	// ErrJobNotFound 文章任务不存在或已过期
	ErrJobNotFound = errors.New("article job not found")
)

// SectionLengthViolation 单节字数越界
type SectionLengthViolation struct {
	Section string
	Length  int
	Target  model.LengthRange
}

// LengthViolationError 整篇生成结束时至少一节字数越界
type LengthViolationError struct {
	Violations []SectionLengthViolation
}

func (e *LengthViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%q has %d characters, want [%d, %d]",
			v.Section, v.Length, v.Target.Min, v.Target.Max))
	}
	return "article length check failed: " + strings.Join(parts, "; ")
}
