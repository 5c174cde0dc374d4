// Package article 实现博客文章的生成编排：标题、大纲、单节（简单/上下文模式）、
// 整篇文章，以及按章节下标管理生成状态与取消令牌的会话。
package article

import (
	"time"

	"blog-gen-ai-api/internal/config"
	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
)

// Settings 生成编排参数
type Settings struct {
	// TitleMaxRetries 标题校验不足 3 个时整体重试的次数
	TitleMaxRetries int
	// RefineAttempts 单节精修预算
	RefineAttempts int
	// BaseDelay 标题整体重试的退避基数，与补全客户端一致
	BaseDelay time.Duration
	// PacingDelay 整篇生成时相邻正文节请求之间的间隔
	PacingDelay time.Duration

	SectionLength    model.LengthRange
	IntroLength      model.LengthRange
	ConclusionLength model.LengthRange
	DefaultMode      model.Mode
	SessionTTL       time.Duration

	// Sleep 可取消等待；为空时使用 cancel.Sleep
	Sleep completion.Sleeper
}

// DefaultSettings 默认参数
func DefaultSettings() Settings {
	return Settings{
		TitleMaxRetries:  3,
		RefineAttempts:   3,
		BaseDelay:        completion.DefaultBaseDelay,
		PacingDelay:      time.Second,
		SectionLength:    model.LengthRange{Min: 800, Max: 1200},
		IntroLength:      model.LengthRange{Min: 300, Max: 600},
		ConclusionLength: model.LengthRange{Min: 300, Max: 600},
		DefaultMode:      model.ModeSimple,
		SessionTTL:       2 * time.Hour,
	}
}

// SettingsFromConfig 从配置构造参数，缺省字段回落到默认值
func SettingsFromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	if cfg == nil {
		return s
	}
	g := cfg.Generation
	if g.TitleMaxRetries >= 0 {
		s.TitleMaxRetries = g.TitleMaxRetries
	}
	if g.RefineAttempts >= 0 {
		s.RefineAttempts = g.RefineAttempts
	}
	if cfg.Completion.BaseDelay > 0 {
		s.BaseDelay = cfg.Completion.BaseDelay
	}
	if g.PacingDelay >= 0 {
		s.PacingDelay = g.PacingDelay
	}
	s.SectionLength = lengthOr(g.SectionLength, s.SectionLength)
	s.IntroLength = lengthOr(g.IntroLength, s.IntroLength)
	s.ConclusionLength = lengthOr(g.ConclusionLength, s.ConclusionLength)
	if m := model.Mode(g.DefaultMode); m.Valid() {
		s.DefaultMode = m
	}
	if g.SessionTTL > 0 {
		s.SessionTTL = g.SessionTTL
	}
	return s
}

func (s Settings) sleep() completion.Sleeper {
	if s.Sleep != nil {
		return s.Sleep
	}
	return cancel.Sleep
}

func lengthOr(c config.LengthConfig, def model.LengthRange) model.LengthRange {
	r := model.LengthRange{Min: c.Min, Max: c.Max}
	if r.Valid() {
		return r
	}
	return def
}

func rangeOr(r, def model.LengthRange) model.LengthRange {
	if r.Valid() {
		return r
	}
	return def
}
