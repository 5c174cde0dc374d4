package article

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/prompt"
)

// memJobStore 内存版 JobStore
type memJobStore struct {
	mu       sync.Mutex
	jobs     map[string]Job
	cancels  map[string]bool
	progress []int
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: map[string]Job{}, cancels: map[string]bool{}}
}

func (s *memJobStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return errors.New("exists")
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *memJobStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	job.CancelRequested = job.CancelRequested || s.cancels[id]
	return &job, nil
}

func (s *memJobStore) Save(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	if job.Status == JobRunning {
		s.progress = append(s.progress, job.Progress)
	}
	return nil
}

func (s *memJobStore) RequestCancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ErrJobNotFound
	}
	s.cancels[id] = true
	return nil
}

func (s *memJobStore) CancelRequested(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels[id], nil
}

func (s *memJobStore) status(id string) JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id].Status
}

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) PublishArticleJob(_ context.Context, jobID string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, jobID)
	return "1-0", nil
}

func TestJobServiceSubmit(t *testing.T) {
	store := newMemJobStore()
	pub := &fakePublisher{}
	svc := NewJobService(store, pub)

	job, err := svc.Submit(context.Background(), articleInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != JobPending || job.ID == "" {
		t.Fatalf("job=%+v", job)
	}
	if len(pub.published) != 1 || pub.published[0] != job.ID {
		t.Fatalf("published=%v", pub.published)
	}

	in := articleInput()
	in.Sections = nil
	if _, err := svc.Submit(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestJobServiceSubmitPublishFailure(t *testing.T) {
	store := newMemJobStore()
	svc := NewJobService(store, &fakePublisher{err: errors.New("redis down")})

	if _, err := svc.Submit(context.Background(), articleInput()); err == nil {
		t.Fatalf("expected publish error")
	}
	for id := range store.jobs {
		if st := store.status(id); st != JobFailed {
			t.Fatalf("status=%s", st)
		}
	}
}

func TestJobServiceCancel(t *testing.T) {
	store := newMemJobStore()
	svc := NewJobService(store, &fakePublisher{})
	ctx := context.Background()

	job, _ := svc.Submit(ctx, articleInput())
	got, err := svc.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != JobCancelled || !got.CancelRequested || got.FinishedAt == nil {
		t.Fatalf("job=%+v", got)
	}

	again, err := svc.Cancel(ctx, job.ID)
	if err != nil || again.Status != JobCancelled {
		t.Fatalf("second cancel: %+v %v", again, err)
	}

	if _, err := svc.Cancel(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func newTestRunner(fc completion.Completer, store JobStore) *JobRunner {
	o := NewOrchestrator(fc, prompt.NewRegistry(), testSettings(&sleepRecorder{}))
	return NewJobRunner(store, o, 5*time.Millisecond)
}

func submitPending(t *testing.T, store *memJobStore) string {
	t.Helper()
	job, err := NewJobService(store, &fakePublisher{}).Submit(context.Background(), articleInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return job.ID
}

func TestJobRunnerCompletes(t *testing.T) {
	store := newMemJobStore()
	id := submitPending(t, store)
	fc := &fakeCompleter{respond: lengthResponder(3, func(int) int { return 900 })}

	if err := newTestRunner(fc, store).Run(context.Background(), id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, _ := store.Get(context.Background(), id)
	if job.Status != JobCompleted || job.Progress != 100 || job.Result == nil {
		t.Fatalf("job=%+v", job)
	}
	want := []int{0, 20, 40, 60, 80, 100}
	if len(store.progress) != len(want) {
		t.Fatalf("progress=%v", store.progress)
	}
	for i := range want {
		if store.progress[i] != want[i] {
			t.Fatalf("progress=%v, want %v", store.progress, want)
		}
	}
}

func TestJobRunnerRecordsLengthViolation(t *testing.T) {
	store := newMemJobStore()
	id := submitPending(t, store)
	fc := &fakeCompleter{respond: lengthResponder(3, func(i int) int {
		if i == 1 {
			return 100
		}
		return 900
	})}

	if err := newTestRunner(fc, store).Run(context.Background(), id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, _ := store.Get(context.Background(), id)
	if job.Status != JobFailed || !strings.Contains(job.Error, "チャネル") {
		t.Fatalf("job=%+v", job)
	}
}

func TestJobRunnerObservesCancelFlag(t *testing.T) {
	store := newMemJobStore()
	id := submitPending(t, store)
	started := make(chan struct{})
	fc := &fakeCompleter{respond: func(_ int, _ []completion.Message, token *cancel.Token) (string, error) {
		close(started)
		<-token.Done()
		return "", cancel.ErrCancelled
	}}

	done := make(chan error, 1)
	go func() { done <- newTestRunner(fc, store).Run(context.Background(), id) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("job never started")
	}
	if err := store.RequestCancel(context.Background(), id); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runner ignored cancel flag")
	}
	if st := store.status(id); st != JobCancelled {
		t.Fatalf("status=%s", st)
	}
	if fc.callCount() != 1 {
		t.Fatalf("calls=%d", fc.callCount())
	}
}

func TestJobRunnerSkipsFinishedAndMissingJobs(t *testing.T) {
	store := newMemJobStore()
	fc := &fakeCompleter{respond: func(int, []completion.Message, *cancel.Token) (string, error) {
		t.Errorf("completion should not be called")
		return "", nil
	}}
	runner := newTestRunner(fc, store)
	ctx := context.Background()

	if err := runner.Run(ctx, "missing"); err != nil {
		t.Fatalf("missing job: %v", err)
	}

	id := submitPending(t, store)
	if _, err := NewJobService(store, &fakePublisher{}).Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := runner.Run(ctx, id); err != nil {
		t.Fatalf("cancelled job: %v", err)
	}
	if st := store.status(id); st != JobCancelled {
		t.Fatalf("status=%s", st)
	}
}

func TestJobRunnerLeavesInterruptedJobRunning(t *testing.T) {
	store := newMemJobStore()
	id := submitPending(t, store)
	started := make(chan struct{})
	fc := &fakeCompleter{respond: func(_ int, _ []completion.Message, token *cancel.Token) (string, error) {
		close(started)
		<-token.Done()
		return "", cancel.ErrCancelled
	}}

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newTestRunner(fc, store).Run(ctx, id) }()

	<-started
	stop()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run err=%v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runner ignored shutdown")
	}
	if st := store.status(id); st != JobRunning {
		t.Fatalf("status=%s, want running for redelivery", st)
	}
}
