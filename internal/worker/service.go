package worker

import (
	"context"
	"errors"
	"time"

	"github.com/glassline/internal/config"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/queue"

	"github.com/hibiken/asynq"
)

const shutdownTimeout = 15 * time.Second

// Service asynq 重新匹配任务消费服务
type Service struct {
	name        string
	server      *asynq.Server
	mux         *asynq.ServeMux
	concurrency int
	queues      map[string]int
}

// NewService 创建异步队列服务，重试间隔与进程内匹配队列一致
func NewService(cfg *config.QueueConfig, consumer *Consumer, retryDelay func(n int) time.Duration) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg, retryDelay)
	serverCfg.Logger = logger.Named("asynq")
	serverCfg.ShutdownTimeout = shutdownTimeout
	serverCfg.ErrorHandler = asynq.ErrorHandlerFunc(reportTaskError)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:        "worker",
		server:      asynq.NewServer(opt, serverCfg),
		mux:         mux,
		concurrency: serverCfg.Concurrency,
		queues:      serverCfg.Queues,
	}, nil
}

// reportTaskError 记录任务失败；最后一次重试失败时升级为 error
func reportTaskError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)
	kv := []interface{}{
		"task_id", taskID,
		"task_type", task.Type(),
		"retried", retried,
		"max_retry", maxRetry,
		"error", err,
	}
	if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
		logger.Errorw("worker_task_final_failure", kv...)
		return
	}
	logger.Warnw("worker_task_failed", kv...)
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务，阻塞直到 Stop
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	logger.Infow("worker_start", "concurrency", s.concurrency, "queues", s.queues)
	return s.server.Run(s.mux)
}

// Stop 停止服务，等待进行中的任务至多 shutdownTimeout
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}
