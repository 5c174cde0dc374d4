package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// TitleCount 返回的标题数
	TitleCount = 3
	// MaxTitleLength 单个标题最大字符数
	MaxTitleLength = 30
)

var enumerationMarker = regexp.MustCompile(`^(?:\d+\s*[.)．、）:]|[-*+・•])\s*`)

var quotePairs = [][2]string{
	{`"`, `"`},
	{"“", "”"},
	{"「", "」"},
	{"『", "』"},
	{"'", "'"},
}

// TitleCandidates 拆行、去掉编号与引号，保留非空且不超过 30 字的候选
func TitleCandidates(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = enumerationMarker.ReplaceAllString(line, "")
		line = stripQuotes(strings.TrimSpace(line))
		if line == "" || utf8.RuneCountInString(line) > MaxTitleLength {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ValidateTitles 至少 3 个候选时返回前 3 个，否则错误中带上实际数量
func ValidateTitles(raw string) ([]string, error) {
	candidates := TitleCandidates(raw)
	if len(candidates) < TitleCount {
		return nil, newError(ValidatorTitles, len(candidates),
			"expected %d titles of at most %d characters, got %d",
			TitleCount, MaxTitleLength, len(candidates))
	}
	return candidates[:TitleCount], nil
}

func stripQuotes(s string) string {
	for _, q := range quotePairs {
		if len(s) > len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
		}
	}
	return s
}
