package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"blog-gen-ai-api/internal/application/article"
)

const defaultJobTTL = 24 * time.Hour

// JobStore 文章任务记录：记录本体为 JSON 字符串，取消标记单独一个键
type JobStore struct {
	client *Client
	ttl    time.Duration
}

// NewJobStore 创建任务存储；ttl<=0 时保留 24 小时
func NewJobStore(client *Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	return &JobStore{client: client, ttl: ttl}
}

// Create 新建任务，ID 已存在时报错
func (s *JobStore) Create(ctx context.Context, job *article.Job) error {
	ctx, span := s.start(ctx, "jobstore.Create", job.ID)
	defer span.End()

	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	ok, err := s.client.rdb.SetNX(ctx, jobKey(job.ID), data, s.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return fmt.Errorf("article job %s already exists", job.ID)
	}
	return nil
}

// Get 读取任务及其取消标记
func (s *JobStore) Get(ctx context.Context, id string) (*article.Job, error) {
	ctx, span := s.start(ctx, "jobstore.Get", id)
	defer span.End()

	pipe := s.client.rdb.Pipeline()
	dataCmd := pipe.Get(ctx, jobKey(id))
	flagCmd := pipe.Exists(ctx, cancelKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !IsNil(err) {
		span.RecordError(err)
		return nil, err
	}

	data, err := dataCmd.Bytes()
	if err != nil {
		if IsNil(err) {
			return nil, article.ErrJobNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	job, err := decodeJob(data)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	job.CancelRequested = job.CancelRequested || flagCmd.Val() > 0
	return job, nil
}

// Save 覆盖任务记录并刷新保留时长
func (s *JobStore) Save(ctx context.Context, job *article.Job) error {
	ctx, span := s.start(ctx, "jobstore.Save", job.ID)
	defer span.End()
	span.SetAttributes(
		attribute.String("job.status", string(job.Status)),
		attribute.Int("job.progress", job.Progress),
	)

	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := s.client.rdb.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// RequestCancel 设置取消标记
func (s *JobStore) RequestCancel(ctx context.Context, id string) error {
	ctx, span := s.start(ctx, "jobstore.RequestCancel", id)
	defer span.End()

	n, err := s.client.rdb.Exists(ctx, jobKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if n == 0 {
		return article.ErrJobNotFound
	}
	if err := s.client.rdb.Set(ctx, cancelKey(id), "1", s.ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// CancelRequested worker 轮询用
func (s *JobStore) CancelRequested(ctx context.Context, id string) (bool, error) {
	n, err := s.client.rdb.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *JobStore) start(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("job.id", id)))
}

func jobKey(id string) string { return "article:job:" + id }

func cancelKey(id string) string { return "article:job:" + id + ":cancel" }

func encodeJob(job *article.Job) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal article job: %w", err)
	}
	return data, nil
}

func decodeJob(data []byte) (*article.Job, error) {
	var job article.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article job: %w", err)
	}
	return &job, nil
}

var _ article.JobStore = (*JobStore)(nil)
