package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var blankLine = regexp.MustCompile(`\n[ \t\r]*\n`)

var orderedListMarker = regexp.MustCompile(`^\d+[.)]\s`)

// 句末标点
var terminalMarks = map[rune]struct{}{
	'。': {}, '！': {}, '？': {}, '!': {}, '?': {}, '.': {},
	'」': {}, '』': {}, '）': {}, ')': {}, '…': {},
}

// Paragraphs 按空行切段，丢弃空段
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsExemptParagraph 列表、代码块、标题不要求句末标点
func IsExemptParagraph(p string) bool {
	p = strings.TrimSpace(p)
	switch {
	case strings.HasPrefix(p, "```"), strings.HasPrefix(p, "~~~"):
		return true
	case strings.HasPrefix(p, "#"):
		return true
	case strings.HasPrefix(p, "- "), strings.HasPrefix(p, "* "), strings.HasPrefix(p, "+ "):
		return true
	case orderedListMarker.MatchString(p):
		return true
	}
	return false
}

// UnterminatedParagraphs 返回未以句末标点结束的非豁免段落。
// 不是硬失败，结果交给精修循环处理。
func UnterminatedParagraphs(text string) []string {
	var out []string
	for _, p := range Paragraphs(text) {
		if IsExemptParagraph(p) {
			continue
		}
		last, _ := utf8.DecodeLastRuneInString(p)
		if _, ok := terminalMarks[last]; !ok {
			out = append(out, p)
		}
	}
	return out
}
