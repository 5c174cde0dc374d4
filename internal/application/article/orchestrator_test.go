package article

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/internal/workflow/prompt"
)

func articleInput() model.ArticleInput {
	return model.ArticleInput{
		Title: "Go並行処理入門",
		Theme: "Goの並行処理",
		Tone:  "丁寧",
		Sections: []model.SectionSkeleton{
			{Title: "ゴルーチン"},
			{Title: "チャネル"},
			{Title: "select文"},
		},
	}
}

// lengthResponder 呼び出し順に 引言 → 正文 → 結論 の字数で返す
func lengthResponder(mains int, mainLen func(i int) int) respondFunc {
	return func(n int, _ []completion.Message, _ *cancel.Token) (string, error) {
		switch {
		case n == 0:
			return strings.Repeat("導", 400) + "。", nil
		case n <= mains:
			return strings.Repeat("本", mainLen(n-1)) + "。", nil
		default:
			return strings.Repeat("結", 400) + "。", nil
		}
	}
}

func TestOrchestratorGeneratesChainedArticle(t *testing.T) {
	rec := &sleepRecorder{}
	fc := &fakeCompleter{respond: lengthResponder(3, func(int) int { return 900 })}
	o := NewOrchestrator(fc, prompt.NewRegistry(), testSettings(rec))

	var progress []int
	a, err := o.Generate(context.Background(), nil, articleInput(), func(done, total int) {
		if total != 5 {
			t.Errorf("total=%d", total)
		}
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(a.MainSections) != 3 || a.Introduction.Content == "" || a.Conclusion.Content == "" {
		t.Fatalf("article=%+v", a)
	}
	if fc.callCount() != 5 {
		t.Fatalf("calls=%d want 5 (no refinement)", fc.callCount())
	}
	// 节流只插在相邻正文请求之间
	if !reflect.DeepEqual(rec.delays, []time.Duration{time.Second, time.Second}) {
		t.Fatalf("pacing delays=%v", rec.delays)
	}
	if !reflect.DeepEqual(progress, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("progress=%v", progress)
	}

	// 第 2 个正文节的提示词以第 1 个正文节为上下文
	secondMain := fc.prompts[2][1].Content
	if !strings.Contains(secondMain, a.MainSections[0].Content) {
		t.Fatalf("main section not chained on previous content")
	}
	conclusionPrompt := fc.prompts[4][1].Content
	for _, s := range append([]model.Section{a.Introduction}, a.MainSections...) {
		if !strings.Contains(conclusionPrompt, s.Content) {
			t.Fatalf("conclusion prompt lacks %q", s.Title)
		}
	}
	if !strings.Contains(a.Conclusion.FullContext, a.MainSections[2].Content) {
		t.Fatalf("full context incomplete")
	}
}

func TestOrchestratorFailsWholeArticleOnLengthViolation(t *testing.T) {
	rec := &sleepRecorder{}
	fc := &fakeCompleter{respond: lengthResponder(3, func(i int) int {
		if i == 1 {
			return 500
		}
		return 900
	})}
	o := NewOrchestrator(fc, prompt.NewRegistry(), testSettings(rec))

	a, err := o.Generate(context.Background(), nil, articleInput(), nil)
	var lv *LengthViolationError
	if !errors.As(err, &lv) {
		t.Fatalf("err=%v want *LengthViolationError", err)
	}
	if a != nil {
		t.Fatalf("partial article returned")
	}
	if len(lv.Violations) != 1 || lv.Violations[0].Section != "チャネル" || lv.Violations[0].Length != 501 {
		t.Fatalf("violations=%+v", lv.Violations)
	}
	if fc.callCount() != 5 {
		t.Fatalf("calls=%d, orchestrator must not refine", fc.callCount())
	}
}

func TestOrchestratorCancelledDuringPacing(t *testing.T) {
	tok := cancel.New(nil)
	settings := DefaultSettings()
	settings.Sleep = func(ctx context.Context, token *cancel.Token, d time.Duration) error {
		tok.Cancel()
		return cancel.Sleep(ctx, token, d)
	}
	fc := &fakeCompleter{respond: lengthResponder(3, func(int) int { return 900 })}
	o := NewOrchestrator(fc, prompt.NewRegistry(), settings)

	_, err := o.Generate(context.Background(), tok, articleInput(), nil)
	if !cancel.IsCancelled(err) {
		t.Fatalf("err=%v", err)
	}
	if fc.callCount() != 2 {
		t.Fatalf("calls=%d want 2 (intro + first main)", fc.callCount())
	}
}

func TestOrchestratorRejectsEmptySkeleton(t *testing.T) {
	o := NewOrchestrator(&fakeCompleter{}, prompt.NewRegistry(), DefaultSettings())
	_, err := o.Generate(context.Background(), nil, model.ArticleInput{Title: "x"}, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v", err)
	}
}
