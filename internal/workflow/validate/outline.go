package validate

import (
	"encoding/json"
	"strings"

	"blog-gen-ai-api/internal/workflow/model"
)

// ParseOutline 先解码再校验。sections 必须非空且最后一节为 conclusion；
// 不满足时返回 *ValidationError，绝不自动修补。
func ParseOutline(raw string) (*model.Outline, error) {
	body := extractJSON(raw)
	if body == "" {
		return nil, newError(ValidatorOutline, 0, "empty response")
	}

	var outline model.Outline
	if err := json.Unmarshal([]byte(body), &outline); err != nil {
		return nil, newError(ValidatorOutline, 0, "invalid JSON: %v", err)
	}

	n := len(outline.Sections)
	if n == 0 {
		return nil, newError(ValidatorOutline, 0, "sections must be a non-empty array")
	}
	for i, s := range outline.Sections {
		if strings.TrimSpace(s.Title) == "" {
			return nil, newError(ValidatorOutline, n, "section %d has an empty title", i)
		}
		if s.Kind != model.SectionKindMain && s.Kind != model.SectionKindConclusion {
			return nil, newError(ValidatorOutline, n, "section %d has unknown type %q", i, s.Kind)
		}
	}
	if last := outline.Sections[n-1]; last.Kind != model.SectionKindConclusion {
		return nil, newError(ValidatorOutline, n, "last section must have type %q, got %q",
			model.SectionKindConclusion, last.Kind)
	}
	return &outline, nil
}
