package model

// Mode 章节生成模式
type Mode string

const (
	// ModeSimple 各节互不依赖
	ModeSimple Mode = "simple"
	// ModeContextual 每节以前面所有节为上下文，必须从左到右生成
	ModeContextual Mode = "contextual"
)

// Valid 是否为已知模式
func (m Mode) Valid() bool {
	return m == ModeSimple || m == ModeContextual
}

// SectionStatus 章节槽位状态
type SectionStatus string

const (
	StatusIdle       SectionStatus = "idle"
	StatusGenerating SectionStatus = "generating"
	StatusAborting   SectionStatus = "aborting"
	StatusDone       SectionStatus = "done"
	StatusError      SectionStatus = "error"
)

// Position 上下文模式下章节所处位置，决定系统提示词
type Position string

const (
	PositionIntro    Position = "intro"
	PositionInterior Position = "interior"
	PositionClosing  Position = "closing"
)

// PositionOf 按下标与总数判断位置；单节文章按结尾处理
func PositionOf(index, total int) Position {
	switch {
	case index >= total-1:
		return PositionClosing
	case index == 0:
		return PositionIntro
	default:
		return PositionInterior
	}
}

// PriorSection 上下文模式下已生成的前置章节
type PriorSection struct {
	Title   string
	Content string
}

// SectionInput 单节生成输入
type SectionInput struct {
	Theme        string
	Tone         string
	Title        string
	Description  string
	TargetLength LengthRange
}
