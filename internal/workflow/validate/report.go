package validate

import "blog-gen-ai-api/internal/workflow/model"

// Report 字数与段落结尾的合并检查结果
type Report struct {
	Length       int
	LengthOK     bool
	Unterminated []string
}

// OK 两项检查均通过
func (r Report) OK() bool {
	return r.LengthOK && len(r.Unterminated) == 0
}

// Inspect 同时检查字数与段落结尾
func Inspect(text string, r model.LengthRange) Report {
	err := CheckLength(text, r)
	return Report{
		Length:       Length(text),
		LengthOK:     err == nil,
		Unterminated: UnterminatedParagraphs(text),
	}
}
