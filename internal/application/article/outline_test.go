package article

import (
	"context"
	"errors"
	"testing"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/prompt"
	"blog-gen-ai-api/internal/workflow/validate"
)

func TestGenerateOutline(t *testing.T) {
	fc := &fakeCompleter{respond: func(int, []completion.Message, *cancel.Token) (string, error) {
		return `{"sections":[
			{"title":"Goとは","description":"概要","recommendedLength":{"min":800,"max":1200},"type":"main"},
			{"title":"まとめ","description":"振り返り","recommendedLength":{"min":300,"max":600},"type":"conclusion"}
		],"estimatedReadingTime":8}`, nil
	}}
	g := NewOutlineGenerator(fc, prompt.NewRegistry())

	o, err := g.Generate(context.Background(), nil, "Go入門", "カジュアル")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(o.Sections) != 2 || o.EstimatedReadingTime == nil || *o.EstimatedReadingTime != 8 {
		t.Fatalf("outline=%+v", o)
	}
}

func TestGenerateOutlineSurfacesValidationErrorWithoutRepair(t *testing.T) {
	fc := &fakeCompleter{respond: func(int, []completion.Message, *cancel.Token) (string, error) {
		return `{"sections":[{"title":"a","type":"main"},{"title":"b","type":"main"}]}`, nil
	}}
	g := NewOutlineGenerator(fc, prompt.NewRegistry())

	_, err := g.Generate(context.Background(), nil, "Go入門", "")
	var ve *validate.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err=%v", err)
	}
	if fc.callCount() != 1 {
		t.Fatalf("calls=%d want 1", fc.callCount())
	}
}
