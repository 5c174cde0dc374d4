package model

// SectionKind 大纲章节类型
type SectionKind string

const (
	SectionKindMain       SectionKind = "main"
	SectionKindConclusion SectionKind = "conclusion"
)

// LengthRange 字数区间（按字符计）
type LengthRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains n 是否落在 [Min, Max]
func (r LengthRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// Valid 区间是否有意义
func (r LengthRange) Valid() bool {
	return r.Min > 0 && r.Max >= r.Min
}

// OutlineSection 大纲中的一节
type OutlineSection struct {
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	RecommendedLength LengthRange `json:"recommendedLength"`
	Kind              SectionKind `json:"type"`
}

// Outline 文章大纲；最后一节必须是 conclusion
type Outline struct {
	Sections             []OutlineSection `json:"sections"`
	EstimatedTotalLength *int             `json:"estimatedTotalLength,omitempty"`
	EstimatedReadingTime *int             `json:"estimatedReadingTime,omitempty"`
	TargetAudience       string           `json:"targetAudience,omitempty"`
	Keywords             []string         `json:"keywords,omitempty"`
}
