package model

// Section 文章中的一节
type Section struct {
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	TargetLength LengthRange `json:"targetLength"`
}

// Conclusion 结论节；FullContext 只作为提示词输入
type Conclusion struct {
	Section
	FullContext string `json:"-"`
}

// ArticleStructure 整篇文章
type ArticleStructure struct {
	Title        string     `json:"title"`
	Introduction Section    `json:"introduction"`
	MainSections []Section  `json:"mainSections"`
	Conclusion   Conclusion `json:"conclusion"`
}

// AllSections 按顺序返回引言、正文各节与结论
func (a *ArticleStructure) AllSections() []Section {
	out := make([]Section, 0, len(a.MainSections)+2)
	out = append(out, a.Introduction)
	out = append(out, a.MainSections...)
	out = append(out, a.Conclusion.Section)
	return out
}

// SectionSkeleton 整篇生成时每个正文节的输入
type SectionSkeleton struct {
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	TargetLength LengthRange `json:"targetLength"`
}

// ArticleInput 整篇文章生成输入
type ArticleInput struct {
	Title    string            `json:"title"`
	Theme    string            `json:"theme"`
	Tone     string            `json:"tone"`
	Sections []SectionSkeleton `json:"sections"`
}
