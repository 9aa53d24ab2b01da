package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glassline/internal/constants"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrMatchingQueueStopped 队列已停止
var ErrMatchingQueueStopped = errors.New("matching queue stopped")

// JobResult 匹配任务执行结果
type JobResult struct {
	Success      bool
	MatchedCount int
	ShouldRetry  bool
	Err          error
}

// JobFunc 匹配任务执行函数
type JobFunc func(ctx context.Context) JobResult

// JobMetadata 匹配任务元数据
type JobMetadata struct {
	GlassOrderID    uint     `json:"glass_order_id,omitempty"`
	GlassDeliveryID uint     `json:"glass_delivery_id,omitempty"`
	OrderNumbers    []string `json:"order_numbers,omitempty"`
	Source          string   `json:"source,omitempty"`
}

// JobSpec 入队参数
type JobSpec struct {
	Type       string
	Priority   int
	MaxRetries int
	Metadata   JobMetadata
	Execute    JobFunc
}

// JobSnapshot 任务快照（对外展示）
type JobSnapshot struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Priority   int         `json:"priority"`
	Metadata   JobMetadata `json:"metadata"`
	RetryCount int         `json:"retry_count"`
	MaxRetries int         `json:"max_retries"`
	LastError  string      `json:"last_error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	RetryAfter *time.Time  `json:"retry_after,omitempty"`
	FailedAt   *time.Time  `json:"failed_at,omitempty"`
}

// MatchingQueueStats 队列统计
type MatchingQueueStats struct {
	Pending             int     `json:"pending"`
	Processing          int     `json:"processing"`
	Completed           int     `json:"completed"`
	Failed              int     `json:"failed"`
	Retrying            int     `json:"retrying"`
	TotalProcessed      int     `json:"total_processed"`
	AverageProcessingMS int64   `json:"average_processing_ms"`
	Paused              bool    `json:"paused"`
	CurrentJob          *string `json:"current_job,omitempty"`
}

// MatchingQueueOptions 队列参数
type MatchingQueueOptions struct {
	DelayBetweenJobs  time.Duration
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
	DefaultMaxRetries int
	FailedHistorySize int
	Logger            *zap.SugaredLogger
	Now               func() time.Time
}

type matchingJob struct {
	JobSnapshot
	seq     uint64
	readyAt time.Time
	execute JobFunc
}

// MatchingQueue 进程内单 worker 优先级匹配队列
type MatchingQueue struct {
	opts MatchingQueueOptions

	mu             sync.Mutex
	pending        jobHeap
	retrying       []*matchingJob
	failedJobs     []JobSnapshot
	current        *matchingJob
	completed      int
	failed         int
	totalDuration  time.Duration
	paused         bool
	seq            uint64
	stopped        bool
	running        bool
	wake           chan struct{}
	stopCh         chan struct{}
	stopOnce       sync.Once
	workerFinished chan struct{}
}

// NewMatchingQueue 创建匹配队列
func NewMatchingQueue(opts MatchingQueueOptions) *MatchingQueue {
	if opts.DelayBetweenJobs < 0 {
		opts.DelayBetweenJobs = 0
	}
	if opts.BaseRetryDelay <= 0 {
		opts.BaseRetryDelay = 5 * time.Second
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = 60 * time.Second
	}
	if opts.MaxRetryDelay < opts.BaseRetryDelay {
		opts.MaxRetryDelay = opts.BaseRetryDelay
	}
	if opts.DefaultMaxRetries < 0 {
		opts.DefaultMaxRetries = 0
	}
	if opts.FailedHistorySize <= 0 {
		opts.FailedHistorySize = 100
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MatchingQueue{
		opts:           opts,
		wake:           make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		workerFinished: make(chan struct{}),
	}
}

// Name 服务名称
func (q *MatchingQueue) Name() string {
	return "matching-queue"
}

// Enqueue 入队任务，返回任务 ID
func (q *MatchingQueue) Enqueue(spec JobSpec) (string, error) {
	if spec.Execute == nil {
		return "", errors.New("matching job execute is nil")
	}
	if spec.Type == "" {
		spec.Type = constants.MatchingJobOrderRematch
	}
	maxRetries := spec.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.opts.DefaultMaxRetries
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return "", ErrMatchingQueueStopped
	}
	q.seq++
	job := &matchingJob{
		JobSnapshot: JobSnapshot{
			ID:         uuid.NewString(),
			Type:       spec.Type,
			Priority:   spec.Priority,
			Metadata:   spec.Metadata,
			MaxRetries: maxRetries,
			CreatedAt:  q.opts.Now(),
		},
		seq:     q.seq,
		execute: spec.Execute,
	}
	heap.Push(&q.pending, job)
	pending := q.pending.Len()
	q.mu.Unlock()

	q.opts.Logger.Infow("matching_queue_job_enqueued",
		"job_id", job.ID,
		"type", job.Type,
		"priority", job.Priority,
		"order_numbers", job.Metadata.OrderNumbers,
		"pending", pending,
	)
	q.signal()
	return job.ID, nil
}

// Start 启动 worker，阻塞直到 ctx 结束或 Stop
func (q *MatchingQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running || q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.running = true
	q.mu.Unlock()
	defer close(q.workerFinished)

	for {
		ran, wait := q.RunOnce(ctx)
		if ran {
			if !q.sleep(ctx, q.opts.DelayBetweenJobs) {
				return nil
			}
			continue
		}
		if !q.waitForWork(ctx, wait) {
			return nil
		}
	}
}

// Stop 停止 worker，未执行的任务随进程退出丢弃
func (q *MatchingQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	running := q.running
	q.mu.Unlock()
	q.stopOnce.Do(func() { close(q.stopCh) })
	if !running {
		return nil
	}
	select {
	case <-q.workerFinished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 执行一个就绪任务；未执行时返回距下一次重试的等待时长（0 表示无待重试任务）
func (q *MatchingQueue) RunOnce(ctx context.Context) (bool, time.Duration) {
	job, wait := q.next()
	if job == nil {
		return false, wait
	}
	q.execute(ctx, job)
	return true, 0
}

// Pause 暂停取出新任务
func (q *MatchingQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	q.opts.Logger.Infow("matching_queue_paused")
}

// Resume 恢复处理
func (q *MatchingQueue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.opts.Logger.Infow("matching_queue_resumed")
	q.signal()
}

// Clear 清空待执行与待重试任务，返回清理数量
func (q *MatchingQueue) Clear() int {
	q.mu.Lock()
	cleared := q.pending.Len() + len(q.retrying)
	q.pending = nil
	q.retrying = nil
	q.mu.Unlock()
	q.opts.Logger.Warnw("matching_queue_cleared", "cleared", cleared)
	return cleared
}

// Stats 队列统计
func (q *MatchingQueue) Stats() MatchingQueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := MatchingQueueStats{
		Pending:        q.pending.Len(),
		Completed:      q.completed,
		Failed:         q.failed,
		Retrying:       len(q.retrying),
		TotalProcessed: q.completed + q.failed,
		Paused:         q.paused,
	}
	if q.current != nil {
		stats.Processing = 1
		id := q.current.ID
		stats.CurrentJob = &id
	}
	if q.completed > 0 {
		stats.AverageProcessingMS = (q.totalDuration / time.Duration(q.completed)).Milliseconds()
	}
	return stats
}

// PendingJobs 待执行任务（按执行顺序）
func (q *MatchingQueue) PendingJobs() []JobSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	ordered := make(jobHeap, len(q.pending))
	copy(ordered, q.pending)
	result := make([]JobSnapshot, 0, len(ordered))
	for ordered.Len() > 0 {
		result = append(result, heap.Pop(&ordered).(*matchingJob).JobSnapshot)
	}
	return result
}

// RetryJobs 等待重试的任务
func (q *MatchingQueue) RetryJobs() []JobSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]JobSnapshot, 0, len(q.retrying))
	for _, job := range q.retrying {
		result = append(result, job.JobSnapshot)
	}
	return result
}

// FailedJobs 最终失败的任务（保留最近若干条）
func (q *MatchingQueue) FailedJobs() []JobSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]JobSnapshot, len(q.failedJobs))
	copy(result, q.failedJobs)
	return result
}

func (q *MatchingQueue) next() (*matchingJob, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.opts.Now()

	remaining := q.retrying[:0]
	var wait time.Duration
	for _, job := range q.retrying {
		if !job.readyAt.After(now) {
			heap.Push(&q.pending, job)
			continue
		}
		remaining = append(remaining, job)
		if d := job.readyAt.Sub(now); wait == 0 || d < wait {
			wait = d
		}
	}
	q.retrying = remaining

	if q.paused || q.pending.Len() == 0 {
		return nil, wait
	}
	job := heap.Pop(&q.pending).(*matchingJob)
	q.current = job
	return job, 0
}

func (q *MatchingQueue) execute(ctx context.Context, job *matchingJob) {
	log := q.opts.Logger.With("job_id", job.ID, "type", job.Type, "retry_count", job.RetryCount)
	log.Infow("matching_queue_job_started", "metadata", job.Metadata)

	started := time.Now()
	result := safeExecute(ctx, job.execute)
	elapsed := time.Since(started)

	q.mu.Lock()
	q.current = nil
	if result.Success {
		q.completed++
		q.totalDuration += elapsed
		q.mu.Unlock()
		log.Infow("matching_queue_job_completed",
			"processing_ms", elapsed.Milliseconds(),
			"matched_count", result.MatchedCount,
		)
		return
	}

	errMsg := "unknown error"
	if result.Err != nil {
		errMsg = result.Err.Error()
	}
	job.LastError = errMsg
	job.RetryCount++

	if result.ShouldRetry && job.RetryCount <= job.MaxRetries {
		delay := q.retryDelay(job.RetryCount)
		job.readyAt = q.opts.Now().Add(delay)
		retryAfter := job.readyAt
		job.RetryAfter = &retryAfter
		q.retrying = append(q.retrying, job)
		q.mu.Unlock()
		log.Warnw("matching_queue_job_retry",
			"error", errMsg,
			"attempt", fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries),
			"retry_in_ms", delay.Milliseconds(),
		)
		return
	}

	q.failed++
	failedAt := q.opts.Now()
	job.FailedAt = &failedAt
	job.RetryAfter = nil
	q.failedJobs = append(q.failedJobs, job.JobSnapshot)
	if overflow := len(q.failedJobs) - q.opts.FailedHistorySize; overflow > 0 {
		q.failedJobs = append([]JobSnapshot(nil), q.failedJobs[overflow:]...)
	}
	q.mu.Unlock()
	log.Errorw("matching_queue_job_failed",
		"error", errMsg,
		"attempts", job.RetryCount,
		"glass_order_id", job.Metadata.GlassOrderID,
		"glass_delivery_id", job.Metadata.GlassDeliveryID,
		"order_numbers", job.Metadata.OrderNumbers,
		"final_failure", true,
	)
}

// RetryDelay 第 n 次重试的退避时长
func (q *MatchingQueue) RetryDelay(n int) time.Duration {
	return q.retryDelay(n)
}

func (q *MatchingQueue) retryDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := q.opts.BaseRetryDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= q.opts.MaxRetryDelay {
			return q.opts.MaxRetryDelay
		}
	}
	if delay > q.opts.MaxRetryDelay {
		return q.opts.MaxRetryDelay
	}
	return delay
}

func (q *MatchingQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *MatchingQueue) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-q.stopCh:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-q.stopCh:
		return false
	case <-t.C:
		return true
	}
}

// waitForWork 等待新任务或最近一次重试到期，wait 为 0 时只等待唤醒
func (q *MatchingQueue) waitForWork(ctx context.Context, wait time.Duration) bool {
	var timeout <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-ctx.Done():
		return false
	case <-q.stopCh:
		return false
	case <-q.wake:
		return true
	case <-timeout:
		return true
	}
}

func safeExecute(ctx context.Context, fn JobFunc) (result JobResult) {
	defer func() {
		if r := recover(); r != nil {
			result = JobResult{Success: false, ShouldRetry: true, Err: fmt.Errorf("matching job panic: %v", r)}
		}
	}()
	return fn(ctx)
}

// jobHeap 按优先级（小者优先）和入队顺序排序
type jobHeap []*matchingJob

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x interface{}) {
	*h = append(*h, x.(*matchingJob))
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
