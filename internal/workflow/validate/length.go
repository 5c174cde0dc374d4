package validate

import (
	"strings"
	"unicode/utf8"

	"blog-gen-ai-api/internal/workflow/model"
)

// DefaultSectionLength 章节默认字数区间
var DefaultSectionLength = model.LengthRange{Min: 800, Max: 1200}

// Length 去掉首尾空白后的字符数
func Length(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

// CheckLength 字数须落在 [Min, Max]；区间无效时使用章节默认值
func CheckLength(text string, r model.LengthRange) error {
	if !r.Valid() {
		r = DefaultSectionLength
	}
	n := Length(text)
	if r.Contains(n) {
		return nil
	}
	return newError(ValidatorLength, n, "length %d outside [%d, %d]", n, r.Min, r.Max)
}
