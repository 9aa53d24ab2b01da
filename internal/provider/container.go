package provider

import (
	"errors"
	"time"

	"github.com/glassline/internal/cache"
	"github.com/glassline/internal/config"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/queue"
	"github.com/glassline/internal/repository"
	"github.com/glassline/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config        *config.Config
	QueueClient   *queue.Client
	MatchingQueue *queue.MatchingQueue
	ImportLock    *cache.ImportLock

	// Repositories
	ProductionOrderRepo repository.ProductionOrderRepository
	GlassOrderRepo      repository.GlassOrderRepository
	GlassDeliveryRepo   repository.GlassDeliveryRepository
	GlassValidationRepo repository.GlassValidationRepository

	// Services
	GlassOrderService      *service.GlassOrderService
	GlassDeliveryService   *service.GlassDeliveryService
	GlassRematchService    *service.GlassRematchService
	GlassValidationService *service.GlassValidationService
	RematchDispatcher      *service.GlassRematchDispatcher
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，未启用时返回禁用状态的客户端
	queueClient, err := queue.NewClient(&cfg.Queue, cfg.Matching.DefaultMaxRetries)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil, 0)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		ImportLock:  cache.NewImportLock(time.Duration(cfg.ImportLock.TTLSeconds) * time.Second),
	}
	if !queueClient.Enabled() {
		c.MatchingQueue = NewMatchingQueue(cfg.Matching)
	}

	// 1. 初始化 Repositories
	c.initRepositories(models.DB)

	// 2. 初始化 Services
	c.initServices()

	return c
}

// NewMatchingQueue 按配置创建进程内匹配队列
func NewMatchingQueue(cfg config.MatchingConfig) *queue.MatchingQueue {
	return queue.NewMatchingQueue(queue.MatchingQueueOptions{
		DelayBetweenJobs:  time.Duration(cfg.DelayBetweenJobsMS) * time.Millisecond,
		BaseRetryDelay:    time.Duration(cfg.BaseRetryDelayMS) * time.Millisecond,
		MaxRetryDelay:     time.Duration(cfg.MaxRetryDelayMS) * time.Millisecond,
		DefaultMaxRetries: cfg.DefaultMaxRetries,
		FailedHistorySize: cfg.FailedHistorySize,
		Logger:            logger.Named("matching_queue"),
	})
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.ProductionOrderRepo = repository.NewProductionOrderRepository(db)
	c.GlassOrderRepo = repository.NewGlassOrderRepository(db)
	c.GlassDeliveryRepo = repository.NewGlassDeliveryRepository(db)
	c.GlassValidationRepo = repository.NewGlassValidationRepository(db)
}

func (c *Container) initServices() {
	opts := service.GlassServiceOptions{
		TransactionTimeout: time.Duration(c.Config.Matching.TransactionTimeoutSeconds) * time.Second,
		SummaryTTL:         time.Duration(c.Config.Redis.SummaryTTLSeconds) * time.Second,
	}

	c.GlassRematchService = service.NewGlassRematchService(c.ProductionOrderRepo, c.GlassOrderRepo, c.GlassDeliveryRepo, c.GlassValidationRepo, opts)
	c.RematchDispatcher = service.NewGlassRematchDispatcher(c.QueueClient, c.MatchingQueue, c.GlassRematchService, c.Config.Matching.DefaultMaxRetries)
	c.GlassOrderService = service.NewGlassOrderService(c.ProductionOrderRepo, c.GlassOrderRepo, c.GlassDeliveryRepo, c.GlassValidationRepo, c.RematchDispatcher, opts)
	c.GlassDeliveryService = service.NewGlassDeliveryService(c.ProductionOrderRepo, c.GlassOrderRepo, c.GlassDeliveryRepo, c.GlassValidationRepo, c.RematchDispatcher, opts)
	c.GlassValidationService = service.NewGlassValidationService(c.GlassValidationRepo, c.GlassOrderRepo, c.GlassDeliveryRepo)
}

// Close 释放队列客户端与 Redis 连接
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.QueueClient != nil {
		errs = append(errs, c.QueueClient.Close())
	}
	errs = append(errs, cache.Close())
	return errors.Join(errs...)
}

// RematchRetryDelay asynq 重试与进程内匹配队列共用的退避策略
func RematchRetryDelay(cfg config.MatchingConfig) func(n int) time.Duration {
	return NewMatchingQueue(cfg).RetryDelay
}
