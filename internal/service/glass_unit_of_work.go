package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/glassline/internal/cache"
	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/logger"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/repository"

	"gorm.io/gorm"
)

const systemResolver = "system"

type matchMode int

const (
	matchModeImport matchMode = iota
	matchModeRematch
)

// glassRepositories 玻璃对账所需仓库集合
type glassRepositories struct {
	productionRepo repository.ProductionOrderRepository
	orderRepo      repository.GlassOrderRepository
	deliveryRepo   repository.GlassDeliveryRepository
	validationRepo repository.GlassValidationRepository
}

// matchOutcome 一次匹配的统计
type matchOutcome struct {
	Matched   int
	Conflict  int
	Unmatched int
	Rematched int
	Issues    int

	UnmatchedOrderNumbers []string
}

// glassUnitOfWork 事务内的计数与状态更新，导入与重新匹配共用
type glassUnitOfWork struct {
	productionRepo *repository.GormProductionOrderRepository
	orderRepo      *repository.GormGlassOrderRepository
	deliveryRepo   *repository.GormGlassDeliveryRepository
	validationRepo *repository.GormGlassValidationRepository

	now           time.Time
	touched       map[string]struct{}
	glassOrderIDs map[uint]struct{}
}

func (r glassRepositories) begin(tx *gorm.DB) *glassUnitOfWork {
	return &glassUnitOfWork{
		productionRepo: r.productionRepo.WithTx(tx),
		orderRepo:      r.orderRepo.WithTx(tx),
		deliveryRepo:   r.deliveryRepo.WithTx(tx),
		validationRepo: r.validationRepo.WithTx(tx),
		now:            time.Now(),
		touched:        make(map[string]struct{}),
		glassOrderIDs:  make(map[uint]struct{}),
	}
}

func (u *glassUnitOfWork) touch(orderNumber string) {
	u.touched[orderNumber] = struct{}{}
}

func (u *glassUnitOfWork) touchGlassOrder(id uint) {
	if id != 0 {
		u.glassOrderIDs[id] = struct{}{}
	}
}

func (u *glassUnitOfWork) addOrdered(orderNumber string, delta int) error {
	if _, err := u.productionRepo.AdjustOrderedCount(orderNumber, delta); err != nil {
		return err
	}
	u.touch(orderNumber)
	return nil
}

func (u *glassUnitOfWork) addDelivered(orderNumber string, delta int) error {
	if _, err := u.productionRepo.AdjustDeliveredCount(orderNumber, delta); err != nil {
		return err
	}
	u.touch(orderNumber)
	return nil
}

// touchedOrderNumbers 按字典序返回受影响的生产订单号
func (u *glassUnitOfWork) touchedOrderNumbers() []string {
	numbers := make([]string, 0, len(u.touched))
	for number := range u.touched {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)
	return numbers
}

func (u *glassUnitOfWork) touchedGlassOrderIDs() []uint {
	ids := make([]uint, 0, len(u.glassOrderIDs))
	for id := range u.glassOrderIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// refreshStatuses 依据已落库的计数重新计算履约状态
func (u *glassUnitOfWork) refreshStatuses() error {
	numbers := u.touchedOrderNumbers()
	if len(numbers) == 0 {
		return nil
	}
	orders, err := u.productionRepo.FindByOrderNumbers(numbers)
	if err != nil {
		return err
	}
	for _, order := range orders {
		status := CalcGlassOrderStatus(order.OrderedGlassCount, order.DeliveredGlassCount)
		if status == order.GlassOrderStatus {
			continue
		}
		if err := u.productionRepo.UpdateGlassStatus(order.OrderNumber, status); err != nil {
			return err
		}
	}
	return nil
}

// refreshGlassOrderStatuses 依据绑定的到货明细重新计算采购批次状态
func (u *glassUnitOfWork) refreshGlassOrderStatuses() error {
	for _, id := range u.touchedGlassOrderIDs() {
		order, err := u.orderRepo.GetByID(id)
		if err != nil {
			return err
		}
		if order == nil {
			continue
		}
		ordered := 0
		for _, item := range order.Items {
			ordered += item.Quantity
		}
		items, err := u.deliveryRepo.ListCountedByGlassOrder(id)
		if err != nil {
			return err
		}
		delivered := 0
		for _, item := range items {
			delivered += item.Quantity
		}
		status := calcGlassBatchStatus(order.Status, ordered, delivered)
		if status == order.Status {
			continue
		}
		if err := u.orderRepo.UpdateStatus(id, status); err != nil {
			return err
		}
	}
	return nil
}

// reverseGlassOrder 撤销采购批次对订购计数的贡献并软删除
// 导入时缺少生产订单的订单号从未计入，撤销时跳过
func (u *glassUnitOfWork) reverseGlassOrder(order *models.GlassOrder) (int64, error) {
	sums, err := u.orderRepo.SumQuantityByOrderNumber(order.ID)
	if err != nil {
		return 0, err
	}
	uncounted, err := u.validationRepo.ListOpenOrderNumbers(order.ID, constants.ValidationTypeMissingProductionOrder)
	if err != nil {
		return 0, err
	}
	skip := make(map[string]struct{}, len(uncounted))
	for _, number := range uncounted {
		skip[number] = struct{}{}
	}
	for _, sum := range sums {
		if _, ok := skip[sum.OrderNumber]; ok {
			continue
		}
		if err := u.addOrdered(sum.OrderNumber, -sum.Quantity); err != nil {
			return 0, err
		}
	}
	resolved, err := u.validationRepo.ResolveOpenByGlassOrder(order.ID, systemResolver, u.now)
	if err != nil {
		return 0, err
	}
	if err := u.orderRepo.SoftDelete(order.ID); err != nil {
		return 0, err
	}
	u.touchGlassOrder(order.ID)
	return resolved, nil
}

// matchPanes 对到货明细执行匹配并更新计数
// 重新匹配模式下仍未匹配的明细保持原状，不重复生成问题
func (u *glassUnitOfWork) matchPanes(panes []models.GlassDeliveryItem, mode matchMode) (matchOutcome, error) {
	var outcome matchOutcome
	if len(panes) == 0 {
		return outcome, nil
	}
	seen := make(map[string]struct{})
	orderNumbers := make([]string, 0, len(panes))
	for _, pane := range panes {
		if _, ok := seen[pane.OrderNumber]; ok {
			continue
		}
		seen[pane.OrderNumber] = struct{}{}
		orderNumbers = append(orderNumbers, pane.OrderNumber)
	}
	candidates, err := u.orderRepo.ListCandidateItems(orderNumbers)
	if err != nil {
		return outcome, err
	}
	groups := groupCandidatesByOrderNumber(candidates)

	issues := make([]models.GlassOrderValidation, 0)
	unmatchedSeen := make(map[string]struct{})
	for _, pane := range panes {
		decision := MatchDeliveredPane(pane, groups[pane.OrderNumber])
		if decision.Status == constants.MatchStatusUnmatched {
			outcome.Unmatched++
			if _, ok := unmatchedSeen[pane.OrderNumber]; !ok {
				unmatchedSeen[pane.OrderNumber] = struct{}{}
				outcome.UnmatchedOrderNumbers = append(outcome.UnmatchedOrderNumbers, pane.OrderNumber)
			}
			if mode == matchModeRematch {
				continue
			}
			if err := u.deliveryRepo.UpdateItemMatch(pane.ID, decision.Status, nil, nil); err != nil {
				return outcome, err
			}
			issues = append(issues, newUnmatchedDeliveryIssue(pane))
			continue
		}

		candidate := decision.Candidate
		matchedItemID := candidate.ID
		glassOrderID := candidate.GlassOrderID
		if err := u.deliveryRepo.UpdateItemMatch(pane.ID, decision.Status, &matchedItemID, &glassOrderID); err != nil {
			return outcome, err
		}
		if err := u.addDelivered(pane.OrderNumber, pane.Quantity); err != nil {
			return outcome, err
		}
		u.touchGlassOrder(glassOrderID)
		if decision.Status == constants.MatchStatusConflict {
			outcome.Conflict++
			issues = append(issues, newSuffixMismatchIssue(pane, candidate))
		} else {
			outcome.Matched++
		}
		if mode == matchModeRematch {
			outcome.Rematched++
			if _, err := u.validationRepo.ResolveOpenUnmatched(pane.ID, systemResolver, u.now); err != nil {
				return outcome, err
			}
		}
	}
	if err := u.validationRepo.CreateBatch(issues); err != nil {
		return outcome, err
	}
	outcome.Issues = len(issues)
	return outcome, nil
}

// runGlassTx 在带超时的事务中执行对账写入
func runGlassTx(ctx context.Context, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := models.DB.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransactionTimeout, err)
	}
	return wrapGlassStorageError(err)
}

// wrapGlassStorageError 业务错误原样返回，其余归为存储失败
func wrapGlassStorageError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *GlassOrderConflictError
	switch {
	case errors.As(err, &conflict),
		errors.Is(err, ErrGlassOrderNotFound),
		errors.Is(err, ErrGlassDeliveryNotFound),
		errors.Is(err, ErrGlassImportInvalid),
		errors.Is(err, ErrTransactionTimeout),
		errors.Is(err, ErrGlassStorageFailed):
		return err
	}
	return fmt.Errorf("%w: %v", ErrGlassStorageFailed, err)
}

// invalidateGlassSummaries 提交后失效履约汇总缓存
func invalidateGlassSummaries(ctx context.Context, ids []uint) {
	if len(ids) == 0 {
		return
	}
	if err := cache.InvalidateGlassSummaries(ctx, ids...); err != nil {
		logger.Warnw("glass_summary_cache_invalidate_failed", "glass_order_ids", ids, "error", err)
	}
}
