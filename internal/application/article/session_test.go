package article

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/model"
)

type result struct {
	text string
	err  error
}

func generateAsync(s *Session, idx int) <-chan result {
	ch := make(chan result, 1)
	go func() {
		text, err := s.GenerateSection(context.Background(), idx)
		ch <- result{text, err}
	}()
	return ch
}

func TestContextualCancelCascadesToTheEnd(t *testing.T) {
	titles := []string{"節0", "節1", "節2", "節3"}
	for _, cancelAt := range []int{1, 3} {
		started := make(chan string, 1)
		fc := &fakeCompleter{respond: blockingResponder(map[string]bool{"節3": true}, started)}
		reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
		s, err := reg.Create(SessionInput{Theme: "Go", Mode: model.ModeContextual, Sections: sections(titles...)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if _, err := s.GenerateSection(ctx, i); err != nil {
				t.Fatalf("section %d: %v", i, err)
			}
		}

		pending := generateAsync(s, 3)
		waitStarted(t, started)
		if err := s.Cancel(ctx, cancelAt); err != nil {
			t.Fatalf("Cancel(%d): %v", cancelAt, err)
		}
		if r := <-pending; !cancel.IsCancelled(r.err) || r.text != "" {
			t.Fatalf("in-flight section returned %q, %v", r.text, r.err)
		}

		snap := s.Snapshot()
		for i := 0; i < cancelAt; i++ {
			assertSection(t, snap, i, model.StatusDone, bodyFor(titles[i]))
		}
		for i := cancelAt; i < len(titles); i++ {
			assertSection(t, snap, i, model.StatusIdle, "")
		}
	}
}

func TestContextualCancelStopsBatchChain(t *testing.T) {
	started := make(chan string, 1)
	fc := &fakeCompleter{respond: blockingResponder(map[string]bool{"節2": true}, started)}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Mode: model.ModeContextual, Sections: sections("節0", "節1", "節2", "節3")})

	done := make(chan error, 1)
	go func() { done <- s.GenerateAll(context.Background()) }()
	waitStarted(t, started)

	if _, err := s.GenerateSection(context.Background(), 3); !errors.Is(err, ErrBatchRunning) {
		t.Fatalf("single-section start during chain: %v", err)
	}
	if err := s.Cancel(context.Background(), 1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := <-done; !cancel.IsCancelled(err) {
		t.Fatalf("GenerateAll err=%v", err)
	}

	snap := s.Snapshot()
	assertSection(t, snap, 0, model.StatusDone, bodyFor("節0"))
	for i := 1; i < 4; i++ {
		assertSection(t, snap, i, model.StatusIdle, "")
	}
	if snap.Batch {
		t.Fatalf("batch still marked running")
	}
}

func TestContextualSingleStartRejectedWhileOtherSectionRuns(t *testing.T) {
	titles := []string{"節0", "節1", "節2", "節3"}
	started := make(chan string, 1)
	fc := &fakeCompleter{respond: blockingResponder(map[string]bool{"節3": true}, started)}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Mode: model.ModeContextual, Sections: sections(titles...)})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.GenerateSection(ctx, i); err != nil {
			t.Fatalf("section %d: %v", i, err)
		}
	}

	pending := generateAsync(s, 3)
	waitStarted(t, started)
	if _, err := s.GenerateSection(ctx, 1); !errors.Is(err, ErrSectionBusy) {
		t.Fatalf("regenerate 1 while 3 in flight: %v", err)
	}
	snap := s.Snapshot()
	assertSection(t, snap, 1, model.StatusDone, bodyFor("節1"))
	assertSection(t, snap, 2, model.StatusDone, bodyFor("節2"))
	if snap.Sections[3].Status != model.StatusGenerating {
		t.Fatalf("section 3=%s", snap.Sections[3].Status)
	}

	if err := s.Cancel(ctx, 3); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	<-pending
}

func TestContextualRegenerateClearsLaterSections(t *testing.T) {
	titles := []string{"節0", "節1", "節2"}
	fc := &fakeCompleter{respond: blockingResponder(nil, nil)}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Mode: model.ModeContextual, Sections: sections(titles...)})
	ctx := context.Background()
	for i := range titles {
		if _, err := s.GenerateSection(ctx, i); err != nil {
			t.Fatalf("section %d: %v", i, err)
		}
	}

	if _, err := s.GenerateSection(ctx, 0); err != nil {
		t.Fatalf("regenerate 0: %v", err)
	}
	snap := s.Snapshot()
	assertSection(t, snap, 0, model.StatusDone, bodyFor("節0"))
	assertSection(t, snap, 1, model.StatusIdle, "")
	assertSection(t, snap, 2, model.StatusIdle, "")
}

func TestBatchDoesNotStartSectionPastStopPoint(t *testing.T) {
	fc := &fakeCompleter{respond: blockingResponder(nil, nil)}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Mode: model.ModeContextual, Sections: sections("節0", "節1", "節2")})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := s.GenerateSection(ctx, i); err != nil {
			t.Fatalf("section %d: %v", i, err)
		}
	}

	// 批次已被 Cancel(2) 截停，但令牌未取消
	b := &batch{token: cancel.New(nil), stopAt: 2, done: make(chan struct{})}
	s.mu.Lock()
	s.batch = b
	s.mu.Unlock()

	before := fc.callCount()
	if _, err := s.generate(ctx, 2, b); !cancel.IsCancelled(err) {
		t.Fatalf("section past stop point: %v", err)
	}
	if fc.callCount() != before {
		t.Fatalf("completions=%d want %d", fc.callCount(), before)
	}
	assertSection(t, s.Snapshot(), 2, model.StatusIdle, "")
}

func TestContextualGenerateAllRunsLeftToRight(t *testing.T) {
	fc := &fakeCompleter{respond: func(_ int, msgs []completion.Message, _ *cancel.Token) (string, error) {
		return bodyFor(currentTitle(msgs)), nil
	}}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Mode: model.ModeContextual, Sections: sections("節0", "節1", "節2")})

	if err := s.GenerateAll(context.Background()); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	names := []string{"節0", "節1", "節2"}
	for i, msgs := range fc.prompts {
		if got := currentTitle(msgs); got != names[i] {
			t.Fatalf("call %d generated %q, want %q", i, got, names[i])
		}
		for j := 0; j < i; j++ {
			if !strings.Contains(msgs[1].Content, bodyFor(names[j])) {
				t.Fatalf("call %d lacks context of section %d", i, j)
			}
		}
	}
	snap := s.Snapshot()
	for i := range snap.Sections {
		if snap.Sections[i].Status != model.StatusDone {
			t.Fatalf("section %d status=%s", i, snap.Sections[i].Status)
		}
	}
}

func TestContextualSectionNeedsPriorSections(t *testing.T) {
	fc := &fakeCompleter{respond: func(int, []completion.Message, *cancel.Token) (string, error) { return "本文。", nil }}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Mode: model.ModeContextual, Sections: sections("a", "b", "c")})

	if _, err := s.GenerateSection(context.Background(), 2); !errors.Is(err, ErrPriorSectionsIncomplete) {
		t.Fatalf("err=%v", err)
	}
	if fc.callCount() != 0 {
		t.Fatalf("completion called")
	}
}

func TestSimpleCancelAffectsOnlyThatSection(t *testing.T) {
	started := make(chan string, 1)
	fc := &fakeCompleter{respond: blockingResponder(map[string]bool{"A": true}, started)}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Sections: sections("A", "B", "C")})

	if _, err := s.GenerateSection(context.Background(), 1); err != nil {
		t.Fatalf("B: %v", err)
	}
	pending := generateAsync(s, 0)
	waitStarted(t, started)
	if got := s.Snapshot().Sections[0].Status; got != model.StatusGenerating {
		t.Fatalf("status=%s", got)
	}
	if err := s.Cancel(context.Background(), 0); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if r := <-pending; !cancel.IsCancelled(r.err) {
		t.Fatalf("err=%v", r.err)
	}

	snap := s.Snapshot()
	assertSection(t, snap, 0, model.StatusIdle, "")
	assertSection(t, snap, 1, model.StatusDone, bodyFor("B"))
	assertSection(t, snap, 2, model.StatusIdle, "")
}

func TestRestartCancelsInFlightRun(t *testing.T) {
	started := make(chan string, 1)
	var calls atomic.Int32
	fc := &fakeCompleter{respond: func(_ int, _ []completion.Message, token *cancel.Token) (string, error) {
		if calls.Add(1) == 1 {
			started <- "A"
			<-token.Done()
			return "", cancel.ErrCancelled
		}
		return "二回目の本文。", nil
	}}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Sections: sections("A")})

	first := generateAsync(s, 0)
	waitStarted(t, started)

	text, err := s.GenerateSection(context.Background(), 0)
	if err != nil || text != "二回目の本文。" {
		t.Fatalf("restart: %q %v", text, err)
	}
	if r := <-first; !cancel.IsCancelled(r.err) {
		t.Fatalf("first run err=%v", r.err)
	}
	assertSection(t, s.Snapshot(), 0, model.StatusDone, "二回目の本文。")
}

func TestSetModeCancelsBeforeSwitching(t *testing.T) {
	started := make(chan string, 1)
	var s *Session
	var modeWhenCancelled atomic.Value
	fc := &fakeCompleter{respond: func(_ int, msgs []completion.Message, token *cancel.Token) (string, error) {
		started <- currentTitle(msgs)
		<-token.Done()
		modeWhenCancelled.Store(s.Mode())
		return "途中までの本文", nil
	}}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ = reg.Create(SessionInput{Theme: "Go", Mode: model.ModeSimple, Sections: sections("A", "B")})

	pending := generateAsync(s, 0)
	waitStarted(t, started)

	if err := s.SetMode(context.Background(), model.ModeContextual); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if got := modeWhenCancelled.Load(); got != model.ModeSimple {
		t.Fatalf("mode observed at cancellation=%v, want simple", got)
	}
	if s.Mode() != model.ModeContextual {
		t.Fatalf("mode not applied")
	}
	if r := <-pending; !cancel.IsCancelled(r.err) || r.text != "" {
		t.Fatalf("cancelled run returned %q, %v", r.text, r.err)
	}
	assertSection(t, s.Snapshot(), 0, model.StatusIdle, "")
}

func TestSimpleGenerateAllDispatchesIndependently(t *testing.T) {
	fc := &fakeCompleter{respond: func(_ int, msgs []completion.Message, _ *cancel.Token) (string, error) {
		title := currentTitle(msgs)
		if title == "B" {
			return "", completion.Classify(401, "", "denied")
		}
		return bodyFor(title), nil
	}}
	reg := newTestRegistry(fc, testSettings(&sleepRecorder{}))
	s, _ := reg.Create(SessionInput{Theme: "Go", Sections: sections("A", "B", "C")})

	err := s.GenerateAll(context.Background())
	if !completion.IsKind(err, completion.KindFatal) {
		t.Fatalf("err=%v", err)
	}
	snap := s.Snapshot()
	assertSection(t, snap, 0, model.StatusDone, bodyFor("A"))
	assertSection(t, snap, 2, model.StatusDone, bodyFor("C"))
	if snap.Sections[1].Status != model.StatusError || snap.Sections[1].Error == "" {
		t.Fatalf("section B=%+v", snap.Sections[1])
	}
}

func TestRegistryLifecycle(t *testing.T) {
	settings := testSettings(&sleepRecorder{})
	settings.SessionTTL = time.Hour
	reg := newTestRegistry(&fakeCompleter{}, settings)

	if _, err := reg.Create(SessionInput{Theme: "Go"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty sections accepted: %v", err)
	}
	if _, err := reg.Create(SessionInput{Theme: "Go", Mode: "parallel", Sections: sections("a")}); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("bad mode accepted: %v", err)
	}

	in := sections("a")
	s, err := reg.Create(SessionInput{Theme: "Go", Sections: in})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if in[0].TargetLength != (SectionSpec{}).TargetLength {
		t.Fatalf("caller sections modified: %+v", in[0])
	}
	if s.Mode() != model.ModeSimple {
		t.Fatalf("default mode=%s", s.Mode())
	}
	if snap := s.Snapshot(); snap.Sections[0].TargetLength != settings.SectionLength {
		t.Fatalf("default target=%+v", snap.Sections[0].TargetLength)
	}
	if n := reg.Sweep(context.Background(), time.Now()); n != 0 {
		t.Fatalf("fresh session swept")
	}
	if n := reg.Sweep(context.Background(), time.Now().Add(2*time.Hour)); n != 1 {
		t.Fatalf("swept=%d", n)
	}
	if _, err := reg.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after sweep: %v", err)
	}
	if _, err := s.GenerateSection(context.Background(), 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("closed session accepted work: %v", err)
	}
}
