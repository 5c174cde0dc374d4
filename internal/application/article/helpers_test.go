package article

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/internal/workflow/prompt"
	"blog-gen-ai-api/internal/workflow/refine"
)

type respondFunc func(n int, msgs []completion.Message, token *cancel.Token) (string, error)

// fakeCompleter 记录每次调用，按 respond 返回
type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	prompts [][]completion.Message
	respond respondFunc
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

	text, err := f.respond(n, msgs, token)
	if token.Cancelled() {
		return "", cancel.ErrCancelled
	}
	return text, err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, token *cancel.Token, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return token.Err()
}

func testSettings(rec *sleepRecorder) Settings {
	s := DefaultSettings()
	s.RefineAttempts = 0
	s.Sleep = rec.sleep
	return s
}

func newTestRegistry(fc completion.Completer, settings Settings) *SessionRegistry {
	prompts := prompt.NewRegistry()
	refiner := refine.NewRefiner(fc, prompts)
	return NewSessionRegistry(
		NewSimpleSectionGenerator(fc, prompts, refiner, settings),
		NewContextualSectionGenerator(fc, prompts, refiner, settings),
		settings,
	)
}

// currentTitle 从 user 消息中取出本次要写的章节标题
func currentTitle(msgs []completion.Message) string {
	const marker = "セクション見出し："
	for _, m := range msgs {
		if m.Role != completion.RoleUser {
			continue
		}
		for _, line := range strings.Split(m.Content, "\n") {
			if i := strings.Index(line, marker); i >= 0 {
				return strings.TrimSpace(line[i+len(marker):])
			}
		}
	}
	return ""
}

// blockingResponder 对 block 中的标题阻塞直到令牌取消，其余返回固定正文
func blockingResponder(block map[string]bool, started chan<- string) respondFunc {
	return func(_ int, msgs []completion.Message, token *cancel.Token) (string, error) {
		title := currentTitle(msgs)
		if block[title] {
			started <- title
			<-token.Done()
			return "", cancel.ErrCancelled
		}
		return bodyFor(title), nil
	}
}

func bodyFor(title string) string {
	return title + "についての本文です。"
}

func sections(titles ...string) []SectionSpec {
	out := make([]SectionSpec, 0, len(titles))
	for _, t := range titles {
		out = append(out, SectionSpec{Title: t})
	}
	return out
}

func waitStarted(t *testing.T, started <-chan string) string {
	t.Helper()
	select {
	case title := <-started:
		return title
	case <-time.After(5 * time.Second):
		t.Fatalf("generation never started")
		return ""
	}
}

func assertSection(t *testing.T, snap SessionSnapshot, idx int, status model.SectionStatus, content string) {
	t.Helper()
	got := snap.Sections[idx]
	if got.Status != status || got.Content != content {
		t.Fatalf("section %d: status=%s content=%q, want status=%s content=%q",
			idx, got.Status, got.Content, status, content)
	}
}
