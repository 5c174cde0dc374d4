// Package validate 校验模型输出的形状：大纲结构、标题数量、字数区间、段落结尾。
// 所有函数都是纯函数，不做任何 I/O。
package validate

import "fmt"

// 校验器名称
const (
	ValidatorOutline   = "outline"
	ValidatorTitles    = "titles"
	ValidatorLength    = "length"
	ValidatorParagraph = "paragraph"
)

// ValidationError 领域不变量被破坏
type ValidationError struct {
	Validator string
	Reason    string
	// Got 实际得到的数量（标题数、字数），不适用时为 0
	Got int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Validator, e.Reason)
}

func newError(validator string, got int, format string, args ...any) *ValidationError {
	return &ValidationError{Validator: validator, Reason: fmt.Sprintf(format, args...), Got: got}
}
