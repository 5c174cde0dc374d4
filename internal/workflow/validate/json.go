package validate

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// extractJSON 从模型输出中截取第一个 JSON 对象或数组。
// 模型常在 JSON 前后夹带说明文字或 ``` 围栏。
func extractJSON(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start, end := -1, -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	if tok, err := dec.Token(); err == nil {
		if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
			return raw
		}
	}

	// 不是对象/数组：能完整读到 EOF 就原样返回，否则交回原文由调用方报错
	dec = json.NewDecoder(strings.NewReader(raw))
	for {
		if _, err := dec.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return raw
			}
			return strings.TrimSpace(s)
		}
	}
}
