package refine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/internal/workflow/prompt"
)

type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	prompts [][]completion.Message
	onCall  func(n int)
}

func (f *fakeCompleter) Complete(_ context.Context, token *cancel.Token, msgs []completion.Message, _ completion.Options) (string, error) {
	if err := token.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	n := f.calls
	f.calls++
	f.prompts = append(f.prompts, msgs)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(n)
	}
	if n < len(f.errs) && f.errs[n] != nil {
		return "", f.errs[n]
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	if n < len(f.replies) {
		return f.replies[n], nil
	}
	return f.replies[len(f.replies)-1], nil
}

var window = model.LengthRange{Min: 800, Max: 1200}

func TestRefineShortTextRespectsBudget(t *testing.T) {
	short := strings.Repeat("あ", 500)
	for attempts := 0; attempts <= 5; attempts++ {
		fc := &fakeCompleter{replies: []string{short}}
		r := NewRefiner(fc, prompt.NewRegistry())

		got, err := r.Refine(context.Background(), nil, short, window, attempts)
		if err != nil {
			t.Fatalf("attempts=%d: Refine returned %v", attempts, err)
		}
		if got != short {
			t.Fatalf("attempts=%d: unexpected text", attempts)
		}
		if fc.calls > attempts {
			t.Fatalf("attempts=%d: issued %d prompts", attempts, fc.calls)
		}
	}
}

func TestRefineStopsWhenTargetMet(t *testing.T) {
	short := strings.Repeat("あ", 500) + "。"
	fixed := strings.Repeat("い", 900) + "。"
	fc := &fakeCompleter{replies: []string{fixed}}
	r := NewRefiner(fc, prompt.NewRegistry())

	got, err := r.Refine(context.Background(), nil, short, window, 5)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if got != fixed {
		t.Fatalf("text not replaced")
	}
	// resize 后本轮有改动，追加一次一致性检查，之后达标退出
	if fc.calls != 2 {
		t.Fatalf("calls=%d want 2", fc.calls)
	}
}

func TestRefineFixesEndingsOnly(t *testing.T) {
	body := strings.Repeat("う", 899)
	text := body + "\n\n## 見出し\n\n" + "最後の段落"
	fixed := body + "\n\n## 見出し\n\n" + "最後の段落です。"
	fc := &fakeCompleter{replies: []string{fixed}}
	r := NewRefiner(fc, prompt.NewRegistry())

	if _, err := r.Refine(context.Background(), nil, text, window, 3); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if fc.calls == 0 {
		t.Fatalf("no prompt issued")
	}
	first := fc.prompts[0][1].Content
	if !strings.Contains(first, "- "+strings.Repeat("う", 899)) {
		t.Fatalf("endings prompt does not list the unterminated paragraph")
	}
	if strings.Contains(first, "- ## 見出し") {
		t.Fatalf("heading listed as a violation")
	}
}

func TestRefinePropagatesCancellation(t *testing.T) {
	tok := cancel.New(nil)
	fc := &fakeCompleter{replies: []string{strings.Repeat("え", 600)}, onCall: func(int) { tok.Cancel() }}
	r := NewRefiner(fc, prompt.NewRegistry())

	got, err := r.Refine(context.Background(), tok, "短い", window, 3)
	if !cancel.IsCancelled(err) {
		t.Fatalf("err=%v want cancelled", err)
	}
	if got != "" {
		t.Fatalf("partial refinement leaked: %q", got)
	}
}

func TestRefineDegradesOnServiceError(t *testing.T) {
	fc := &fakeCompleter{errs: []error{completion.Classify(503, "", "down")}}
	r := NewRefiner(fc, prompt.NewRegistry())

	got, err := r.Refine(context.Background(), nil, "短い", window, 3)
	if err != nil {
		t.Fatalf("Refine returned %v", err)
	}
	if got != "短い" || fc.calls != 1 {
		t.Fatalf("got=%q calls=%d", got, fc.calls)
	}
}

func TestRefineIgnoresEmptyOutput(t *testing.T) {
	fc := &fakeCompleter{replies: []string{"   "}}
	r := NewRefiner(fc, prompt.NewRegistry())

	got, err := r.Refine(context.Background(), nil, "短い", window, 3)
	if err != nil || got != "短い" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}
