package article

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/model"
	"blog-gen-ai-api/pkg/logger"
	"blog-gen-ai-api/pkg/metrics"
)

// JobStatus 文章任务状态
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal 已结束的任务不再变化
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job 无人值守的整篇生成任务
type Job struct {
	ID              string                  `json:"id"`
	Status          JobStatus               `json:"status"`
	Progress        int                     `json:"progress"`
	Input           model.ArticleInput      `json:"input"`
	Result          *model.ArticleStructure `json:"result,omitempty"`
	Error           string                  `json:"error,omitempty"`
	CancelRequested bool                    `json:"cancel_requested"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	FinishedAt      *time.Time              `json:"finished_at,omitempty"`
}

// JobStore 任务记录存储；取消标记与记录本体分开保存，
// 以免 worker 写进度时覆盖掉 API 侧的取消请求
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	// Get 不存在时返回 ErrJobNotFound
	Get(ctx context.Context, id string) (*Job, error)
	Save(ctx context.Context, job *Job) error
	RequestCancel(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) (bool, error)
}

// JobPublisher 把任务投递给 worker
type JobPublisher interface {
	PublishArticleJob(ctx context.Context, jobID string) (string, error)
}

// JobService API 侧的任务提交、查询与取消
type JobService struct {
	store     JobStore
	publisher JobPublisher
	now       func() time.Time
}

// NewJobService 创建任务服务
func NewJobService(store JobStore, publisher JobPublisher) *JobService {
	return &JobService{store: store, publisher: publisher, now: time.Now}
}

// Submit 校验输入，落库为 pending 并投递
func (s *JobService) Submit(ctx context.Context, in model.ArticleInput) (*Job, error) {
	if err := validateArticleInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobPending,
		Input:     in,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create article job: %w", err)
	}

	ctx = logger.WithContext(ctx, logger.JobIDKey, job.ID)
	if _, err := s.publisher.PublishArticleJob(ctx, job.ID); err != nil {
		job.Status = JobFailed
		job.Error = "enqueue failed: " + err.Error()
		finish(job, s.now())
		if saveErr := s.store.Save(ctx, job); saveErr != nil {
			logger.Error(ctx, "failed to mark unpublished job", saveErr)
		}
		metrics.ArticleJobsTotal.WithLabelValues(string(JobFailed)).Inc()
		return nil, fmt.Errorf("publish article job: %w", err)
	}

	metrics.ArticleJobsTotal.WithLabelValues(string(JobPending)).Inc()
	logger.Info(ctx, "article job submitted", "sections", len(in.Sections))
	return job, nil
}

// Get 查询任务
func (s *JobService) Get(ctx context.Context, id string) (*Job, error) {
	return s.store.Get(ctx, id)
}

// Cancel 请求取消：pending 直接置为 cancelled，running 由 worker 轮询到标记后停止；
// 已结束的任务原样返回
func (s *JobService) Cancel(ctx context.Context, id string) (*Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}
	if err := s.store.RequestCancel(ctx, id); err != nil {
		return nil, fmt.Errorf("request cancel: %w", err)
	}
	job.CancelRequested = true

	if job.Status == JobPending {
		job.Status = JobCancelled
		finish(job, s.now())
		if err := s.store.Save(ctx, job); err != nil {
			return nil, fmt.Errorf("save cancelled job: %w", err)
		}
		metrics.ArticleJobsTotal.WithLabelValues(string(JobCancelled)).Inc()
	}
	logger.Info(logger.WithContext(ctx, logger.JobIDKey, id), "article job cancel requested", "status", string(job.Status))
	return job, nil
}

// JobRunner worker 侧执行任务
type JobRunner struct {
	store        JobStore
	orchestrator *Orchestrator
	pollInterval time.Duration
	now          func() time.Time
}

// NewJobRunner 创建任务执行器；pollInterval 为取消标记的轮询间隔
func NewJobRunner(store JobStore, orchestrator *Orchestrator, pollInterval time.Duration) *JobRunner {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &JobRunner{store: store, orchestrator: orchestrator, pollInterval: pollInterval, now: time.Now}
}

// Run 执行一个任务。生成失败记录在任务上并返回 nil；
// 只有存储层错误才返回，交给消息层重投
func (r *JobRunner) Run(ctx context.Context, id string) error {
	ctx = logger.WithContext(ctx, logger.JobIDKey, id)

	job, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			logger.Warn(ctx, "article job expired before it ran")
			return nil
		}
		return err
	}
	if job.Status.Terminal() {
		logger.Info(ctx, "article job already finished", "status", string(job.Status))
		return nil
	}
	if job.CancelRequested {
		return r.complete(ctx, job, JobCancelled, nil, nil)
	}

	job.Status = JobRunning
	job.Progress = 0
	job.UpdatedAt = r.now()
	if err := r.store.Save(ctx, job); err != nil {
		return err
	}
	metrics.ArticleJobsTotal.WithLabelValues(string(JobRunning)).Inc()
	logger.Info(ctx, "article job started", "sections", len(job.Input.Sections))

	token := cancel.New(nil)
	stopWatch := r.watchCancel(ctx, id, token)

	var mu sync.Mutex
	onProgress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		job.Progress = done * 100 / total
		job.UpdatedAt = r.now()
		if err := r.store.Save(ctx, job); err != nil {
			logger.Warn(ctx, "failed to save job progress", "error", err.Error())
		}
	}

	result, genErr := r.orchestrator.Generate(ctx, token, job.Input, onProgress)
	stopWatch()

	if ctxErr := ctx.Err(); ctxErr != nil && genErr != nil {
		// worker 退出：任务保持 running，消息留在 pending 等待重投
		logger.Warn(ctx, "article job interrupted", "error", ctxErr.Error())
		return ctxErr
	}

	switch {
	case genErr == nil:
		return r.complete(ctx, job, JobCompleted, result, nil)
	case cancel.IsCancelled(genErr) || token.Cancelled():
		return r.complete(ctx, job, JobCancelled, nil, nil)
	default:
		return r.complete(ctx, job, JobFailed, nil, genErr)
	}
}

// watchCancel 按间隔轮询取消标记，命中后取消令牌；返回的函数停止轮询
func (r *JobRunner) watchCancel(ctx context.Context, id string, token *cancel.Token) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				token.Cancel()
				return
			case <-ticker.C:
				requested, err := r.store.CancelRequested(ctx, id)
				if err != nil {
					logger.Warn(ctx, "failed to poll job cancel flag", "error", err.Error())
					continue
				}
				if requested {
					logger.Info(ctx, "article job cancel observed")
					token.Cancel()
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (r *JobRunner) complete(ctx context.Context, job *Job, status JobStatus, result *model.ArticleStructure, genErr error) error {
	job.Status = status
	job.Result = result
	if status == JobCompleted {
		job.Progress = 100
	}
	if genErr != nil {
		job.Error = genErr.Error()
	}
	finish(job, r.now())

	metrics.ArticleJobsTotal.WithLabelValues(string(status)).Inc()
	if genErr != nil {
		logger.Error(ctx, "article job failed", genErr)
	} else {
		logger.Info(ctx, "article job finished", "status", string(status))
	}
	return r.store.Save(ctx, job)
}

func finish(job *Job, now time.Time) {
	job.UpdatedAt = now
	job.FinishedAt = &now
}

func validateArticleInput(in model.ArticleInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Theme) == "" {
		return fmt.Errorf("%w: theme is required", ErrInvalidInput)
	}
	if len(in.Sections) == 0 {
		return fmt.Errorf("%w: article needs at least one main section", ErrInvalidInput)
	}
	for i, s := range in.Sections {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("%w: section %d has no title", ErrInvalidInput, i)
		}
	}
	return nil
}
