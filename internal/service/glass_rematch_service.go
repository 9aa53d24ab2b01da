package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/queue"
	"github.com/glassline/internal/repository"

	"gorm.io/gorm"
)

// RematchRequest 重新匹配调度请求
type RematchRequest struct {
	JobType         string
	Priority        int
	GlassOrderID    uint
	GlassDeliveryID uint
	OrderNumbers    []string
	Source          string
}

// RematchScheduler 提交后调度重新匹配
type RematchScheduler interface {
	ScheduleRematch(ctx context.Context, req RematchRequest) (string, error)
}

// RematchResult 重新匹配结果
type RematchResult struct {
	OrderNumbers   []string `json:"order_numbers"`
	Rematched      int      `json:"rematched"`
	Conflict       int      `json:"conflict"`
	StillUnmatched int      `json:"still_unmatched"`
}

// GlassRematchService 未匹配到货玻璃的重新匹配
type GlassRematchService struct {
	repos glassRepositories
	opts  GlassServiceOptions
}

// NewGlassRematchService 创建重新匹配服务
func NewGlassRematchService(
	productionRepo repository.ProductionOrderRepository,
	orderRepo repository.GlassOrderRepository,
	deliveryRepo repository.GlassDeliveryRepository,
	validationRepo repository.GlassValidationRepository,
	opts GlassServiceOptions,
) *GlassRematchService {
	return &GlassRematchService{
		repos: glassRepositories{
			productionRepo: productionRepo,
			orderRepo:      orderRepo,
			deliveryRepo:   deliveryRepo,
			validationRepo: validationRepo,
		},
		opts: opts,
	}
}

// RematchUnmatchedForOrders 对指定生产订单的未匹配到货玻璃重新匹配
func (s *GlassRematchService) RematchUnmatchedForOrders(ctx context.Context, orderNumbers []string) (*RematchResult, error) {
	numbers := normalizeOrderNumbers(orderNumbers)
	if len(numbers) == 0 {
		return nil, ErrRematchInvalid
	}
	result := &RematchResult{OrderNumbers: numbers}
	var touchedIDs []uint
	err := runGlassTx(ctx, s.opts.TransactionTimeout, func(tx *gorm.DB) error {
		uow := s.repos.begin(tx)
		panes, err := uow.deliveryRepo.ListUnmatchedByOrderNumbers(numbers)
		if err != nil {
			return err
		}
		if len(panes) == 0 {
			return nil
		}
		outcome, err := uow.matchPanes(panes, matchModeRematch)
		if err != nil {
			return err
		}
		result.Rematched = outcome.Rematched
		result.Conflict = outcome.Conflict
		result.StillUnmatched = outcome.Unmatched
		if err := uow.refreshStatuses(); err != nil {
			return err
		}
		if err := uow.refreshGlassOrderStatuses(); err != nil {
			return err
		}
		touchedIDs = uow.touchedGlassOrderIDs()
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateGlassSummaries(ctx, touchedIDs)
	if result.Rematched > 0 {
		logger.Infow("glass_rematch_completed",
			"order_numbers", numbers,
			"rematched", result.Rematched,
			"conflict", result.Conflict,
			"still_unmatched", result.StillUnmatched,
		)
	}
	return result, nil
}

// GlassRematchDispatcher 重新匹配调度：启用 asynq 时投递任务，否则进入进程内匹配队列
type GlassRematchDispatcher struct {
	queueClient    *queue.Client
	matchingQueue  *queue.MatchingQueue
	rematchService *GlassRematchService
	maxRetries     int
}

// NewGlassRematchDispatcher 创建重新匹配调度器
func NewGlassRematchDispatcher(queueClient *queue.Client, matchingQueue *queue.MatchingQueue, rematchService *GlassRematchService, maxRetries int) *GlassRematchDispatcher {
	return &GlassRematchDispatcher{
		queueClient:    queueClient,
		matchingQueue:  matchingQueue,
		rematchService: rematchService,
		maxRetries:     maxRetries,
	}
}

// ScheduleRematch 调度重新匹配任务，返回任务 ID
func (d *GlassRematchDispatcher) ScheduleRematch(ctx context.Context, req RematchRequest) (string, error) {
	numbers := normalizeOrderNumbers(req.OrderNumbers)
	if len(numbers) == 0 {
		return "", ErrRematchInvalid
	}
	if req.JobType == "" {
		req.JobType = constants.MatchingJobOrderRematch
	}
	if d.queueClient.Enabled() {
		return d.queueClient.EnqueueGlassRematch(queue.GlassRematchPayload{
			JobType:         req.JobType,
			GlassOrderID:    req.GlassOrderID,
			GlassDeliveryID: req.GlassDeliveryID,
			OrderNumbers:    numbers,
			Source:          req.Source,
		}, 0)
	}
	if d.matchingQueue == nil {
		if _, err := d.rematchService.RematchUnmatchedForOrders(ctx, numbers); err != nil {
			return "", err
		}
		return "", nil
	}
	return d.matchingQueue.Enqueue(queue.JobSpec{
		Type:       req.JobType,
		Priority:   req.Priority,
		MaxRetries: d.maxRetries,
		Metadata: queue.JobMetadata{
			GlassOrderID:    req.GlassOrderID,
			GlassDeliveryID: req.GlassDeliveryID,
			OrderNumbers:    numbers,
			Source:          req.Source,
		},
		Execute: d.rematchJob(numbers),
	})
}

// rematchJob 失败一律按原元数据重排，由重试上限兜底；只有参数无效的任务直接失败
func (d *GlassRematchDispatcher) rematchJob(orderNumbers []string) queue.JobFunc {
	return func(ctx context.Context) queue.JobResult {
		result, err := d.rematchService.RematchUnmatchedForOrders(ctx, orderNumbers)
		if err != nil {
			return queue.JobResult{Err: err, ShouldRetry: !errors.Is(err, ErrRematchInvalid)}
		}
		return queue.JobResult{Success: true, MatchedCount: result.Rematched}
	}
}

func normalizeOrderNumbers(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	numbers := make([]string, 0, len(raw))
	for _, number := range raw {
		number = strings.TrimSpace(number)
		if number == "" {
			continue
		}
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)
	return numbers
}
