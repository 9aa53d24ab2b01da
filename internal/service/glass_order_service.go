package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/glassline/internal/cache"
	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GlassServiceOptions 对账服务参数
type GlassServiceOptions struct {
	TransactionTimeout time.Duration
	SummaryTTL         time.Duration
}

// GlassOrderService 玻璃采购批次服务
type GlassOrderService struct {
	repos     glassRepositories
	scheduler RematchScheduler
	opts      GlassServiceOptions
}

// NewGlassOrderService 创建玻璃采购批次服务
func NewGlassOrderService(
	productionRepo repository.ProductionOrderRepository,
	orderRepo repository.GlassOrderRepository,
	deliveryRepo repository.GlassDeliveryRepository,
	validationRepo repository.GlassValidationRepository,
	scheduler RematchScheduler,
	opts GlassServiceOptions,
) *GlassOrderService {
	return &GlassOrderService{
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

// GlassOrderItemInput 订购明细输入
type GlassOrderItemInput struct {
	OrderNumber string
	OrderSuffix string
	Position    string
	GlassType   string
	WidthMM     int
	HeightMM    int
	Quantity    int
}

// ImportGlassOrderInput 采购批次导入输入
type ImportGlassOrderInput struct {
	GlassOrderNumber     string
	OrderDate            time.Time
	Supplier             string
	OrderedBy            string
	ExpectedDeliveryDate *time.Time
	Notes                string
	Items                []GlassOrderItemInput
}

// GlassImportResult 导入结果
type GlassImportResult struct {
	GlassOrderID         uint     `json:"glass_order_id,omitempty"`
	GlassDeliveryID      uint     `json:"glass_delivery_id,omitempty"`
	ReplacedGlassOrderID uint     `json:"replaced_glass_order_id,omitempty"`
	ItemCount            int      `json:"item_count"`
	TotalQuantity        int      `json:"total_quantity"`
	OrderNumbers         []string `json:"order_numbers"`
	Matched              int      `json:"matched"`
	Conflict             int      `json:"conflict"`
	Unmatched            int      `json:"unmatched"`
	Issues               int      `json:"issues"`
	Warnings             []string `json:"warnings,omitempty"`
	RematchJobID         string   `json:"rematch_job_id,omitempty"`
}

// GlassDeleteResult 删除结果
type GlassDeleteResult struct {
	ID             uint     `json:"id"`
	OrderNumbers   []string `json:"order_numbers"`
	Quantity       int      `json:"quantity"`
	ResolvedIssues int64    `json:"resolved_issues"`
}

// ImportSupplierBatch 导入采购批次；批次号已存在时需 replaceExisting 才会替换
func (s *GlassOrderService) ImportSupplierBatch(ctx context.Context, input ImportGlassOrderInput, replaceExisting bool) (*GlassImportResult, error) {
	order, err := buildGlassOrder(input)
	if err != nil {
		return nil, err
	}
	result := &GlassImportResult{
		ItemCount:    len(order.Items),
		OrderNumbers: glassOrderNumbers(order.Items),
	}
	for _, item := range order.Items {
		result.TotalQuantity += item.Quantity
	}

	var touchedIDs []uint
	err = runGlassTx(ctx, s.opts.TransactionTimeout, func(tx *gorm.DB) error {
		uow := s.repos.begin(tx)
		existing, err := uow.orderRepo.GetByNumber(order.GlassOrderNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			if !replaceExisting {
				return &GlassOrderConflictError{
					Existing: summarizeGlassOrder(existing),
					Incoming: summarizeGlassOrder(order),
				}
			}
			if _, err := uow.reverseGlassOrder(existing); err != nil {
				return err
			}
			result.ReplacedGlassOrderID = existing.ID
		}

		if err := uow.orderRepo.Create(order); err != nil {
			return err
		}
		uow.touchGlassOrder(order.ID)

		sums, err := uow.orderRepo.SumQuantityByOrderNumber(order.ID)
		if err != nil {
			return err
		}
		productionOrders, err := uow.productionRepo.FindByOrderNumbers(result.OrderNumbers)
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(productionOrders))
		for _, po := range productionOrders {
			known[po.OrderNumber] = struct{}{}
		}

		issues := make([]models.GlassOrderValidation, 0)
		knownNumbers := make([]string, 0, len(sums))
		for _, sum := range sums {
			if _, ok := known[sum.OrderNumber]; !ok {
				issues = append(issues, newMissingProductionOrderIssue(sum.OrderNumber, order.ID, sum.Quantity))
				result.Warnings = append(result.Warnings, fmt.Sprintf("production order %s not found", sum.OrderNumber))
				continue
			}
			knownNumbers = append(knownNumbers, sum.OrderNumber)
			if err := uow.addOrdered(sum.OrderNumber, sum.Quantity); err != nil {
				return err
			}
		}
		if order.ExpectedDeliveryDate != nil {
			if _, err := uow.productionRepo.SetGlassDeliveryDateIfEmpty(knownNumbers, *order.ExpectedDeliveryDate); err != nil {
				return err
			}
		}
		if err := uow.validationRepo.CreateBatch(issues); err != nil {
			return err
		}
		result.Issues = len(issues)
		if err := uow.refreshStatuses(); err != nil {
			return err
		}
		touchedIDs = uow.touchedGlassOrderIDs()
		return nil
	})
	if err != nil {
		var conflict *GlassOrderConflictError
		if !errors.As(err, &conflict) {
			logger.Errorw("glass_order_import_failed",
				"glass_order_number", order.GlassOrderNumber,
				"replace_existing", replaceExisting,
				"error", err,
			)
		}
		return nil, err
	}
	result.GlassOrderID = order.ID
	invalidateGlassSummaries(ctx, touchedIDs)

	result.RematchJobID = s.scheduleRematch(ctx, RematchRequest{
		JobType:      constants.MatchingJobGlassOrder,
		Priority:     constants.MatchingPriorityNormal,
		GlassOrderID: order.ID,
		OrderNumbers: result.OrderNumbers,
		Source:       constants.RematchSourceAuto,
	})
	logger.Infow("glass_order_imported",
		"glass_order_id", order.ID,
		"glass_order_number", order.GlassOrderNumber,
		"replaced_glass_order_id", result.ReplacedGlassOrderID,
		"items", result.ItemCount,
		"quantity", result.TotalQuantity,
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// DeleteSupplierBatch 软删除采购批次并撤销订购计数
func (s *GlassOrderService) DeleteSupplierBatch(ctx context.Context, id uint) (*GlassDeleteResult, error) {
	if id == 0 {
		return nil, ErrGlassOrderNotFound
	}
	result := &GlassDeleteResult{ID: id}
	var touchedIDs []uint
	err := runGlassTx(ctx, s.opts.TransactionTimeout, func(tx *gorm.DB) error {
		uow := s.repos.begin(tx)
		existing, err := uow.orderRepo.GetByID(id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrGlassOrderNotFound
		}
		for _, item := range existing.Items {
			result.Quantity += item.Quantity
		}
		result.OrderNumbers = glassOrderNumbers(existing.Items)
		resolved, err := uow.reverseGlassOrder(existing)
		if err != nil {
			return err
		}
		result.ResolvedIssues = resolved
		if err := uow.refreshStatuses(); err != nil {
			return err
		}
		touchedIDs = uow.touchedGlassOrderIDs()
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrGlassOrderNotFound) {
			logger.Errorw("glass_order_delete_failed", "glass_order_id", id, "error", err)
		}
		return nil, err
	}
	invalidateGlassSummaries(ctx, touchedIDs)
	logger.Infow("glass_order_deleted",
		"glass_order_id", id,
		"order_numbers", result.OrderNumbers,
		"quantity", result.Quantity,
		"resolved_issues", result.ResolvedIssues,
	)
	return result, nil
}

// GlassSummaryLine 履约汇总明细行
type GlassSummaryLine struct {
	OrderItemID       uint        `json:"order_item_id"`
	OrderNumber       string      `json:"order_number"`
	OrderSuffix       *string     `json:"order_suffix"`
	Position          string      `json:"position"`
	GlassType         string      `json:"glass_type,omitempty"`
	WidthMM           int         `json:"width_mm"`
	HeightMM          int         `json:"height_mm"`
	OrderedQuantity   int         `json:"ordered_quantity"`
	DeliveredQuantity int         `json:"delivered_quantity"`
	OrderedAreaM2     models.Area `json:"ordered_area_m2"`
	DeliveredAreaM2   models.Area `json:"delivered_area_m2"`
	Status            string      `json:"status"`
}

// GlassFulfillmentSummary 采购批次履约汇总
type GlassFulfillmentSummary struct {
	GlassOrderID     uint                          `json:"glass_order_id"`
	GlassOrderNumber string                        `json:"glass_order_number"`
	Supplier         string                        `json:"supplier"`
	Status           string                        `json:"status"`
	OrderedTotal     int                           `json:"ordered_total"`
	DeliveredTotal   int                           `json:"delivered_total"`
	OrderedAreaM2    models.Area                   `json:"ordered_area_m2"`
	DeliveredAreaM2  models.Area                   `json:"delivered_area_m2"`
	Breakdown        []GlassSummaryLine            `json:"breakdown"`
	OpenIssues       []models.GlassOrderValidation `json:"open_issues"`
}

// GetFulfillmentSummary 获取采购批次的订购与到货汇总
func (s *GlassOrderService) GetFulfillmentSummary(ctx context.Context, id uint) (*GlassFulfillmentSummary, error) {
	if id == 0 {
		return nil, ErrGlassOrderNotFound
	}
	var cached GlassFulfillmentSummary
	if hit, err := cache.GetGlassSummary(ctx, id, &cached); err != nil {
		logger.Warnw("glass_summary_cache_get_failed", "glass_order_id", id, "error", err)
	} else if hit {
		return &cached, nil
	}

	order, err := s.repos.orderRepo.GetByID(id)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	if order == nil {
		return nil, ErrGlassOrderNotFound
	}
	delivered, err := s.repos.deliveryRepo.ListCountedByGlassOrder(id)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	deliveredByItem := make(map[uint]int, len(delivered))
	for _, pane := range delivered {
		if pane.MatchedItemID != nil {
			deliveredByItem[*pane.MatchedItemID] += pane.Quantity
		}
	}
	unresolved := false
	issues, _, err := s.repos.validationRepo.List(repository.GlassValidationListFilter{
		GlassOrderID: id,
		Resolved:     &unresolved,
	})
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}

	summary := &GlassFulfillmentSummary{
		GlassOrderID:     order.ID,
		GlassOrderNumber: order.GlassOrderNumber,
		Supplier:         order.Supplier,
		Status:           order.Status,
		OrderedAreaM2:    models.NewAreaFromDecimal(decimal.Zero),
		DeliveredAreaM2:  models.NewAreaFromDecimal(decimal.Zero),
		Breakdown:        make([]GlassSummaryLine, 0, len(order.Items)),
		OpenIssues:       issues,
	}
	for _, item := range order.Items {
		deliveredQty := deliveredByItem[item.ID]
		line := GlassSummaryLine{
			OrderItemID:       item.ID,
			OrderNumber:       item.OrderNumber,
			OrderSuffix:       item.OrderSuffix,
			Position:          item.Position,
			GlassType:         item.GlassType,
			WidthMM:           item.WidthMM,
			HeightMM:          item.HeightMM,
			OrderedQuantity:   item.Quantity,
			DeliveredQuantity: deliveredQty,
			OrderedAreaM2:     item.AreaM2,
			DeliveredAreaM2:   models.PaneArea(item.WidthMM, item.HeightMM, deliveredQty),
			Status:            calcDiscrepancyStatus(item.Quantity, deliveredQty),
		}
		summary.OrderedTotal += line.OrderedQuantity
		summary.DeliveredTotal += line.DeliveredQuantity
		summary.OrderedAreaM2 = summary.OrderedAreaM2.Add(line.OrderedAreaM2)
		summary.DeliveredAreaM2 = summary.DeliveredAreaM2.Add(line.DeliveredAreaM2)
		summary.Breakdown = append(summary.Breakdown, line)
	}

	if err := cache.SetGlassSummary(ctx, id, summary, s.opts.SummaryTTL); err != nil {
		logger.Warnw("glass_summary_cache_set_failed", "glass_order_id", id, "error", err)
	}
	return summary, nil
}

// Get 获取采购批次详情
func (s *GlassOrderService) Get(id uint) (*models.GlassOrder, error) {
	if id == 0 {
		return nil, ErrGlassOrderNotFound
	}
	order, err := s.repos.orderRepo.GetByID(id)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	if order == nil {
		return nil, ErrGlassOrderNotFound
	}
	return order, nil
}

// List 采购批次列表
func (s *GlassOrderService) List(filter repository.GlassOrderListFilter) ([]models.GlassOrder, int64, error) {
	orders, total, err := s.repos.orderRepo.List(filter)
	if err != nil {
		return nil, 0, wrapGlassStorageError(err)
	}
	return orders, total, nil
}

// UpdateStatus 手动更新采购批次状态（如取消）
func (s *GlassOrderService) UpdateStatus(ctx context.Context, id uint, status string) (*models.GlassOrder, error) {
	status = strings.TrimSpace(status)
	switch status {
	case constants.GlassOrderStatusOrdered,
		constants.GlassOrderStatusPartiallyDelivered,
		constants.GlassOrderStatusDelivered,
		constants.GlassOrderStatusCancelled:
	default:
		return nil, ErrGlassOrderStatusInvalid
	}
	order, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if err := s.repos.orderRepo.UpdateStatus(id, status); err != nil {
		return nil, wrapGlassStorageError(err)
	}
	invalidateGlassSummaries(ctx, []uint{id})
	order.Status = status
	return order, nil
}

func (s *GlassOrderService) scheduleRematch(ctx context.Context, req RematchRequest) string {
	if s.scheduler == nil || len(req.OrderNumbers) == 0 {
		return ""
	}
	jobID, err := s.scheduler.ScheduleRematch(ctx, req)
	if err != nil {
		logger.Warnw("glass_rematch_schedule_failed",
			"job_type", req.JobType,
			"glass_order_id", req.GlassOrderID,
			"order_numbers", req.OrderNumbers,
			"error", err,
		)
		return ""
	}
	return jobID
}

func buildGlassOrder(input ImportGlassOrderInput) (*models.GlassOrder, error) {
	number := strings.TrimSpace(input.GlassOrderNumber)
	if number == "" {
		return nil, fmt.Errorf("%w: glass order number required", ErrGlassImportInvalid)
	}
	supplier := strings.TrimSpace(input.Supplier)
	if supplier == "" {
		return nil, fmt.Errorf("%w: supplier required", ErrGlassImportInvalid)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrGlassImportInvalid)
	}
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	order := &models.GlassOrder{
		GlassOrderNumber:     number,
		OrderDate:            orderDate,
		Supplier:             supplier,
		OrderedBy:            strings.TrimSpace(input.OrderedBy),
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		Status:               constants.GlassOrderStatusOrdered,
		Notes:                strings.TrimSpace(input.Notes),
		Items:                make([]models.GlassOrderItem, 0, len(input.Items)),
	}
	for i, raw := range input.Items {
		orderNumber := strings.TrimSpace(raw.OrderNumber)
		if orderNumber == "" {
			return nil, fmt.Errorf("%w: item %d order number required", ErrGlassImportInvalid, i+1)
		}
		if raw.WidthMM <= 0 || raw.HeightMM <= 0 || raw.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d dimensions and quantity must be positive", ErrGlassImportInvalid, i+1)
		}
		order.Items = append(order.Items, models.GlassOrderItem{
			OrderNumber: orderNumber,
			OrderSuffix: normalizeSuffix(raw.OrderSuffix),
			Position:    strings.TrimSpace(raw.Position),
			GlassType:   strings.TrimSpace(raw.GlassType),
			WidthMM:     raw.WidthMM,
			HeightMM:    raw.HeightMM,
			Quantity:    raw.Quantity,
			AreaM2:      models.PaneArea(raw.WidthMM, raw.HeightMM, raw.Quantity),
		})
	}
	return order, nil
}

func glassOrderNumbers(items []models.GlassOrderItem) []string {
	seen := make(map[string]struct{}, len(items))
	numbers := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.OrderNumber]; ok {
			continue
		}
		seen[item.OrderNumber] = struct{}{}
		numbers = append(numbers, item.OrderNumber)
	}
	sort.Strings(numbers)
	return numbers
}

func summarizeGlassOrder(order *models.GlassOrder) GlassBatchSummary {
	summary := GlassBatchSummary{
		GlassOrderNumber:     order.GlassOrderNumber,
		Supplier:             order.Supplier,
		OrderDate:            order.OrderDate,
		ExpectedDeliveryDate: order.ExpectedDeliveryDate,
		ItemCount:            len(order.Items),
		OrderNumbers:         glassOrderNumbers(order.Items),
	}
	for _, item := range order.Items {
		summary.TotalQuantity += item.Quantity
	}
	return summary
}
