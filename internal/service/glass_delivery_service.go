package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/repository"

	"gorm.io/gorm"
)

// GlassDeliveryService 玻璃到货服务
type GlassDeliveryService struct {
	repos     glassRepositories
	scheduler RematchScheduler
	opts      GlassServiceOptions
}

// NewGlassDeliveryService 创建玻璃到货服务
func NewGlassDeliveryService(
	productionRepo repository.ProductionOrderRepository,
	orderRepo repository.GlassOrderRepository,
	deliveryRepo repository.GlassDeliveryRepository,
	validationRepo repository.GlassValidationRepository,
	scheduler RematchScheduler,
	opts GlassServiceOptions,
) *GlassDeliveryService {
	return &GlassDeliveryService{
		repos: glassRepositories{
			productionRepo: productionRepo,
			orderRepo:      orderRepo,
			deliveryRepo:   deliveryRepo,
			validationRepo: validationRepo,
		},
		scheduler: scheduler,
		opts:      opts,
	}
}

// GlassDeliveryItemInput 到货明细输入
type GlassDeliveryItemInput struct {
	OrderNumber      string
	OrderSuffix      string
	Position         string
	WidthMM          int
	HeightMM         int
	Quantity         int
	GlassComposition string
	SerialNumber     string
}

// ImportGlassDeliveryInput 到货批次导入输入
type ImportGlassDeliveryInput struct {
	RackNumber          string
	CustomerOrderNumber string
	SupplierOrderNumber string
	DeliveryDate        time.Time
	Items               []GlassDeliveryItemInput
}

// GlassDeliveryImportSummary 最近一次到货导入概要
type GlassDeliveryImportSummary struct {
	Delivery      *models.GlassDelivery `json:"delivery"`
	ItemCount     int64                 `json:"item_count"`
	TotalQuantity int                   `json:"total_quantity"`
	ByStatus      map[string]int64      `json:"by_status"`
	OpenIssues    int64                 `json:"open_issues"`
}

// ImportDeliveryBatch 导入到货批次并逐块匹配
func (s *GlassDeliveryService) ImportDeliveryBatch(ctx context.Context, input ImportGlassDeliveryInput) (*GlassImportResult, error) {
	delivery, err := buildGlassDelivery(input)
	if err != nil {
		return nil, err
	}
	result := &GlassImportResult{ItemCount: len(delivery.Items)}
	for _, item := range delivery.Items {
		result.TotalQuantity += item.Quantity
	}

	var touchedIDs []uint
	var unmatchedNumbers []string
	err = runGlassTx(ctx, s.opts.TransactionTimeout, func(tx *gorm.DB) error {
		uow := s.repos.begin(tx)
		if err := uow.deliveryRepo.Create(delivery); err != nil {
			return err
		}
		outcome, err := uow.matchPanes(delivery.Items, matchModeImport)
		if err != nil {
			return err
		}
		result.Matched = outcome.Matched
		result.Conflict = outcome.Conflict
		result.Unmatched = outcome.Unmatched
		result.Issues = outcome.Issues
		unmatchedNumbers = outcome.UnmatchedOrderNumbers
		if err := uow.refreshStatuses(); err != nil {
			return err
		}
		if err := uow.refreshGlassOrderStatuses(); err != nil {
			return err
		}
		result.OrderNumbers = uow.touchedOrderNumbers()
		touchedIDs = uow.touchedGlassOrderIDs()
		return nil
	})
	if err != nil {
		logger.Errorw("glass_delivery_import_failed",
			"rack_number", delivery.RackNumber,
			"customer_order_number", delivery.CustomerOrderNumber,
			"error", err,
		)
		return nil, err
	}
	result.GlassDeliveryID = delivery.ID
	invalidateGlassSummaries(ctx, touchedIDs)

	// 与并发导入的采购批次存在竞争时由后续重新匹配补齐
	if len(unmatchedNumbers) > 0 {
		result.RematchJobID = s.scheduleRematch(ctx, RematchRequest{
			JobType:         constants.MatchingJobGlassDelivery,
			Priority:        constants.MatchingPriorityLow,
			GlassDeliveryID: delivery.ID,
			OrderNumbers:    unmatchedNumbers,
			Source:          constants.RematchSourceAuto,
		})
	}
	logger.Infow("glass_delivery_imported",
		"glass_delivery_id", delivery.ID,
		"rack_number", delivery.RackNumber,
		"items", result.ItemCount,
		"matched", result.Matched,
		"conflict", result.Conflict,
		"unmatched", result.Unmatched,
	)
	return result, nil
}

// DeleteDeliveryBatch 软删除到货批次并撤销已计入的到货数量
func (s *GlassDeliveryService) DeleteDeliveryBatch(ctx context.Context, id uint) (*GlassDeleteResult, error) {
	if id == 0 {
		return nil, ErrGlassDeliveryNotFound
	}
	result := &GlassDeleteResult{ID: id}
	var touchedIDs []uint
	err := runGlassTx(ctx, s.opts.TransactionTimeout, func(tx *gorm.DB) error {
		uow := s.repos.begin(tx)
		existing, err := uow.deliveryRepo.GetByID(id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrGlassDeliveryNotFound
		}
		for _, item := range existing.Items {
			if countsTowardDelivery(item.MatchStatus) && item.GlassOrderID != nil {
				uow.touchGlassOrder(*item.GlassOrderID)
			}
		}
		sums, err := uow.deliveryRepo.SumCountedQuantityByOrderNumber(id)
		if err != nil {
			return err
		}
		for _, sum := range sums {
			result.OrderNumbers = append(result.OrderNumbers, sum.OrderNumber)
			result.Quantity += sum.Quantity
			if err := uow.addDelivered(sum.OrderNumber, -sum.Quantity); err != nil {
				return err
			}
		}
		resolved, err := uow.validationRepo.ResolveOpenByGlassDelivery(id, systemResolver, uow.now)
		if err != nil {
			return err
		}
		result.ResolvedIssues = resolved
		if err := uow.deliveryRepo.SoftDelete(id); err != nil {
			return err
		}
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
		if !errors.Is(err, ErrGlassDeliveryNotFound) {
			logger.Errorw("glass_delivery_delete_failed", "glass_delivery_id", id, "error", err)
		}
		return nil, err
	}
	invalidateGlassSummaries(ctx, touchedIDs)
	logger.Infow("glass_delivery_deleted",
		"glass_delivery_id", id,
		"order_numbers", result.OrderNumbers,
		"quantity", result.Quantity,
		"resolved_issues", result.ResolvedIssues,
	)
	return result, nil
}

// LatestImportSummary 最近一次到货导入的匹配统计
func (s *GlassDeliveryService) LatestImportSummary() (*GlassDeliveryImportSummary, error) {
	latest, err := s.repos.deliveryRepo.GetLatest()
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	if latest == nil {
		return nil, ErrGlassDeliveryNotFound
	}
	counts, err := s.repos.deliveryRepo.CountByMatchStatus(latest.ID)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	summary := &GlassDeliveryImportSummary{
		Delivery: latest,
		ByStatus: make(map[string]int64, len(counts)),
	}
	for _, row := range counts {
		summary.ByStatus[row.MatchStatus] = row.Items
		summary.ItemCount += row.Items
		summary.TotalQuantity += row.Quantity
	}
	unresolved := false
	_, open, err := s.repos.validationRepo.List(repository.GlassValidationListFilter{
		GlassDeliveryID: latest.ID,
		Resolved:        &unresolved,
		Page:            1,
		PageSize:        1,
	})
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	summary.OpenIssues = open
	return summary, nil
}

// Get 获取到货批次详情
func (s *GlassDeliveryService) Get(id uint) (*models.GlassDelivery, error) {
	if id == 0 {
		return nil, ErrGlassDeliveryNotFound
	}
	delivery, err := s.repos.deliveryRepo.GetByID(id)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	if delivery == nil {
		return nil, ErrGlassDeliveryNotFound
	}
	return delivery, nil
}

// List 到货批次列表
func (s *GlassDeliveryService) List(filter repository.GlassDeliveryListFilter) ([]models.GlassDelivery, int64, error) {
	deliveries, total, err := s.repos.deliveryRepo.List(filter)
	if err != nil {
		return nil, 0, wrapGlassStorageError(err)
	}
	return deliveries, total, nil
}

func (s *GlassDeliveryService) scheduleRematch(ctx context.Context, req RematchRequest) string {
	if s.scheduler == nil || len(req.OrderNumbers) == 0 {
		return ""
	}
	jobID, err := s.scheduler.ScheduleRematch(ctx, req)
	if err != nil {
		logger.Warnw("glass_rematch_schedule_failed",
			"job_type", req.JobType,
			"glass_delivery_id", req.GlassDeliveryID,
			"order_numbers", req.OrderNumbers,
			"error", err,
		)
		return ""
	}
	return jobID
}

func buildGlassDelivery(input ImportGlassDeliveryInput) (*models.GlassDelivery, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrGlassImportInvalid)
	}
	deliveryDate := input.DeliveryDate
	if deliveryDate.IsZero() {
		deliveryDate = time.Now()
	}
	delivery := &models.GlassDelivery{
		RackNumber:          strings.TrimSpace(input.RackNumber),
		CustomerOrderNumber: strings.TrimSpace(input.CustomerOrderNumber),
		SupplierOrderNumber: strings.TrimSpace(input.SupplierOrderNumber),
		DeliveryDate:        deliveryDate,
		Items:               make([]models.GlassDeliveryItem, 0, len(input.Items)),
	}
	for i, raw := range input.Items {
		orderNumber := strings.TrimSpace(raw.OrderNumber)
		if orderNumber == "" {
			return nil, fmt.Errorf("%w: item %d order number required", ErrGlassImportInvalid, i+1)
		}
		if raw.WidthMM <= 0 || raw.HeightMM <= 0 || raw.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d dimensions and quantity must be positive", ErrGlassImportInvalid, i+1)
		}
		delivery.Items = append(delivery.Items, models.GlassDeliveryItem{
			OrderNumber:      orderNumber,
			OrderSuffix:      normalizeSuffix(raw.OrderSuffix),
			Position:         strings.TrimSpace(raw.Position),
			WidthMM:          raw.WidthMM,
			HeightMM:         raw.HeightMM,
			Quantity:         raw.Quantity,
			GlassComposition: strings.TrimSpace(raw.GlassComposition),
			SerialNumber:     strings.TrimSpace(raw.SerialNumber),
			MatchStatus:      constants.MatchStatusPending,
		})
	}
	return delivery, nil
}
