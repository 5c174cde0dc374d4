package redis

import (
	"testing"
	"time"

	"blog-gen-ai-api/internal/application/article"
	"blog-gen-ai-api/internal/workflow/model"
)

func TestJobKeys(t *testing.T) {
	if got := jobKey("j1"); got != "article:job:j1" {
		t.Fatalf("jobKey=%s", got)
	}
	if got := cancelKey("j1"); got != "article:job:j1:cancel" {
		t.Fatalf("cancelKey=%s", got)
	}
}

func TestJobEncoding(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &article.Job{
		ID:       "j1",
		Status:   article.JobRunning,
		Progress: 40,
		Input: model.ArticleInput{
			Title:    "Go の並行処理",
			Theme:    "goroutine",
			Sections: []model.SectionSkeleton{{Title: "チャネル", TargetLength: model.LengthRange{Min: 800, Max: 1200}}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := encodeJob(job)
	if err != nil {
		t.Fatalf("encodeJob() error: %v", err)
	}
	got, err := decodeJob(data)
	if err != nil {
		t.Fatalf("decodeJob() error: %v", err)
	}
	if got.ID != job.ID || got.Status != job.Status || got.Progress != 40 {
		t.Fatalf("decoded=%+v", got)
	}
	if len(got.Input.Sections) != 1 || got.Input.Sections[0].TargetLength.Max != 1200 {
		t.Fatalf("sections=%+v", got.Input.Sections)
	}
	if _, err := decodeJob([]byte("{")); err == nil {
		t.Fatalf("expected error for truncated record")
	}
}

func TestNewJobStoreDefaultTTL(t *testing.T) {
	if s := NewJobStore(nil, 0); s.ttl != defaultJobTTL {
		t.Fatalf("ttl=%v", s.ttl)
	}
}

func TestBuildRateLimitKey(t *testing.T) {
	if got := BuildRateLimitKey("10.0.0.1", "/v1/titles"); got != "ratelimit:10.0.0.1:/v1/titles" {
		t.Fatalf("key=%s", got)
	}
}
