package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type recordingScheduler struct {
	mu       sync.Mutex
	requests []RematchRequest
}

func (s *recordingScheduler) ScheduleRematch(_ context.Context, req RematchRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return fmt.Sprintf("job-%d", len(s.requests)), nil
}

type glassTestEnv struct {
	db          *gorm.DB
	orders      *GlassOrderService
	deliveries  *GlassDeliveryService
	rematch     *GlassRematchService
	validations *GlassValidationService
	scheduler   *recordingScheduler
}

func setupGlassServiceTest(t *testing.T) *glassTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:glass_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	productionRepo := repository.NewProductionOrderRepository(db)
	orderRepo := repository.NewGlassOrderRepository(db)
	deliveryRepo := repository.NewGlassDeliveryRepository(db)
	validationRepo := repository.NewGlassValidationRepository(db)
	opts := GlassServiceOptions{TransactionTimeout: 10 * time.Second}
	scheduler := &recordingScheduler{}
	return &glassTestEnv{
		db:          db,
		orders:      NewGlassOrderService(productionRepo, orderRepo, deliveryRepo, validationRepo, scheduler, opts),
		deliveries:  NewGlassDeliveryService(productionRepo, orderRepo, deliveryRepo, validationRepo, scheduler, opts),
		rematch:     NewGlassRematchService(productionRepo, orderRepo, deliveryRepo, validationRepo, opts),
		validations: NewGlassValidationService(validationRepo, orderRepo, deliveryRepo),
		scheduler:   scheduler,
	}
}

func seedProductionOrders(t *testing.T, db *gorm.DB, numbers ...string) {
	t.Helper()
	for _, number := range numbers {
		order := models.ProductionOrder{
			OrderNumber:      number,
			Client:           "client " + number,
			GlassOrderStatus: constants.GlassStatusNotOrdered,
		}
		if err := db.Create(&order).Error; err != nil {
			t.Fatalf("create production order failed: %v", err)
		}
	}
}

func loadProductionOrder(t *testing.T, db *gorm.DB, number string) models.ProductionOrder {
	t.Helper()
	var order models.ProductionOrder
	if err := db.Where("order_number = ?", number).First(&order).Error; err != nil {
		t.Fatalf("load production order %s failed: %v", number, err)
	}
	return order
}

func countIssues(t *testing.T, db *gorm.DB, validationType string, resolved bool) int64 {
	t.Helper()
	var total int64
	if err := db.Model(&models.GlassOrderValidation{}).
		Where("validation_type = ? AND resolved = ?", validationType, resolved).
		Count(&total).Error; err != nil {
		t.Fatalf("count issues failed: %v", err)
	}
	return total
}

func supplierBatch(number string, expected *time.Time, items ...GlassOrderItemInput) ImportGlassOrderInput {
	return ImportGlassOrderInput{
		GlassOrderNumber:     number,
		OrderDate:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Supplier:             "Glas Trösch",
		OrderedBy:            "planner",
		ExpectedDeliveryDate: expected,
		Items:                items,
	}
}

func deliveryBatch(rack string, items ...GlassDeliveryItemInput) ImportGlassDeliveryInput {
	return ImportGlassDeliveryInput{
		RackNumber:          rack,
		CustomerOrderNumber: "C-" + rack,
		DeliveryDate:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Items:               items,
	}
}

func loadDeliveryItems(t *testing.T, db *gorm.DB, deliveryID uint) []models.GlassDeliveryItem {
	t.Helper()
	var items []models.GlassDeliveryItem
	if err := db.Where("glass_delivery_id = ?", deliveryID).Order("id asc").Find(&items).Error; err != nil {
		t.Fatalf("load delivery items failed: %v", err)
	}
	return items
}

func TestDeliveryExactMatchScenario(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "53472")
	ctx := context.Background()

	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-1", nil,
		GlassOrderItemInput{OrderNumber: "53472", Position: "1", WidthMM: 600, HeightMM: 800, Quantity: 2},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	if po := loadProductionOrder(t, env.db, "53472"); po.OrderedGlassCount != 2 || po.GlassOrderStatus != constants.GlassStatusOrdered {
		t.Fatalf("unexpected production order after supplier import: %+v", po)
	}

	result, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R1",
		GlassDeliveryItemInput{OrderNumber: "53472", Position: "1", WidthMM: 600, HeightMM: 800, Quantity: 2},
	))
	if err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}
	if result.Matched != 1 || result.Conflict != 0 || result.Unmatched != 0 || result.Issues != 0 {
		t.Fatalf("unexpected delivery result: %+v", result)
	}
	items := loadDeliveryItems(t, env.db, result.GlassDeliveryID)
	if items[0].MatchStatus != constants.MatchStatusMatched || items[0].MatchedItemID == nil {
		t.Fatalf("delivered pane should be matched: %+v", items[0])
	}
	po := loadProductionOrder(t, env.db, "53472")
	if po.DeliveredGlassCount != 2 || po.GlassOrderStatus != constants.GlassStatusDelivered {
		t.Fatalf("unexpected production order after delivery: %+v", po)
	}
	if len(env.scheduler.requests) != 1 {
		t.Fatalf("only the supplier import should schedule a rematch, got %+v", env.scheduler.requests)
	}

	var order models.GlassOrder
	if err := env.db.Where("glass_order_number = ?", "GO-1").First(&order).Error; err != nil {
		t.Fatalf("load glass order failed: %v", err)
	}
	if order.Status != constants.GlassOrderStatusDelivered {
		t.Fatalf("glass order should be delivered, got %s", order.Status)
	}
}

func TestDeliverySuffixConflictScenario(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "53472")
	ctx := context.Background()

	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-1", nil,
		GlassOrderItemInput{OrderNumber: "53472", WidthMM: 600, HeightMM: 800, Quantity: 2},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	result, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R1",
		GlassDeliveryItemInput{OrderNumber: "53472", OrderSuffix: "A", WidthMM: 600, HeightMM: 800, Quantity: 2},
	))
	if err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}
	if result.Conflict != 1 || result.Issues != 1 {
		t.Fatalf("unexpected delivery result: %+v", result)
	}
	po := loadProductionOrder(t, env.db, "53472")
	if po.DeliveredGlassCount != 2 || po.GlassOrderStatus != constants.GlassStatusDelivered {
		t.Fatalf("conflict should still count toward delivery: %+v", po)
	}
	if got := countIssues(t, env.db, constants.ValidationTypeSuffixMismatch, false); got != 1 {
		t.Fatalf("expected exactly one suffix mismatch issue, got %d", got)
	}
	issues, total, err := env.validations.ListUnresolved(repository.GlassValidationListFilter{OrderNumber: "53472"})
	if err != nil {
		t.Fatalf("list unresolved failed: %v", err)
	}
	if total != 1 || issues[0].Severity != constants.SeverityWarning || issues[0].GlassOrderID == nil {
		t.Fatalf("unexpected unresolved issues: %+v", issues)
	}
}

func TestDeliveryUnmatchedScenario(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "99999")
	ctx := context.Background()

	result, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R9",
		GlassDeliveryItemInput{OrderNumber: "99999", WidthMM: 500, HeightMM: 500, Quantity: 1},
	))
	if err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}
	if result.Unmatched != 1 || result.Issues != 1 || result.RematchJobID == "" {
		t.Fatalf("unexpected delivery result: %+v", result)
	}
	po := loadProductionOrder(t, env.db, "99999")
	if po.DeliveredGlassCount != 0 || po.GlassOrderStatus != constants.GlassStatusNotOrdered {
		t.Fatalf("unmatched pane must not change counters: %+v", po)
	}
	if got := countIssues(t, env.db, constants.ValidationTypeUnmatchedDelivery, false); got != 1 {
		t.Fatalf("expected one unmatched issue, got %d", got)
	}
	last := env.scheduler.requests[len(env.scheduler.requests)-1]
	if last.JobType != constants.MatchingJobGlassDelivery || len(last.OrderNumbers) != 1 || last.OrderNumbers[0] != "99999" {
		t.Fatalf("unexpected rematch request: %+v", last)
	}
}

func TestRematchBindsLaterOrderExactlyOnce(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "70001")
	ctx := context.Background()

	delivery, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R2",
		GlassDeliveryItemInput{OrderNumber: "70001", WidthMM: 900, HeightMM: 1200, Quantity: 3},
		GlassDeliveryItemInput{OrderNumber: "70001", WidthMM: 400, HeightMM: 400, Quantity: 1},
	))
	if err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}
	if delivery.Unmatched != 2 {
		t.Fatalf("both panes should start unmatched: %+v", delivery)
	}

	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-7", nil,
		GlassOrderItemInput{OrderNumber: "70001", WidthMM: 900, HeightMM: 1200, Quantity: 3},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	if po := loadProductionOrder(t, env.db, "70001"); po.DeliveredGlassCount != 0 {
		t.Fatalf("counters must not change before rematch: %+v", po)
	}

	first, err := env.rematch.RematchUnmatchedForOrders(ctx, []string{"70001"})
	if err != nil {
		t.Fatalf("rematch failed: %v", err)
	}
	if first.Rematched != 1 || first.StillUnmatched != 1 {
		t.Fatalf("unexpected first rematch result: %+v", first)
	}
	second, err := env.rematch.RematchUnmatchedForOrders(ctx, []string{"70001", " 70001 "})
	if err != nil {
		t.Fatalf("second rematch failed: %v", err)
	}
	if second.Rematched != 0 || second.StillUnmatched != 1 {
		t.Fatalf("unexpected second rematch result: %+v", second)
	}

	po := loadProductionOrder(t, env.db, "70001")
	if po.DeliveredGlassCount != 3 || po.GlassOrderStatus != constants.GlassStatusDelivered {
		t.Fatalf("matched pane should be counted exactly once: %+v", po)
	}
	if got := countIssues(t, env.db, constants.ValidationTypeUnmatchedDelivery, false); got != 1 {
		t.Fatalf("still-unmatched pane should keep exactly one open issue, got %d", got)
	}
	if got := countIssues(t, env.db, constants.ValidationTypeUnmatchedDelivery, true); got != 1 {
		t.Fatalf("rebound pane issue should be resolved, got %d", got)
	}
}

func TestSupplierImportDeleteRestoresCounters(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "10001", "10002")
	ctx := context.Background()
	env.db.Model(&models.ProductionOrder{}).Where("order_number = ?", "10001").Update("ordered_glass_count", 4)

	result, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-2", nil,
		GlassOrderItemInput{OrderNumber: "10001", WidthMM: 600, HeightMM: 800, Quantity: 2},
		GlassOrderItemInput{OrderNumber: "10001", WidthMM: 700, HeightMM: 800, Quantity: 1},
		GlassOrderItemInput{OrderNumber: "10002", WidthMM: 600, HeightMM: 800, Quantity: 5},
	), false)
	if err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	if po := loadProductionOrder(t, env.db, "10001"); po.OrderedGlassCount != 7 {
		t.Fatalf("expected ordered 7, got %d", po.OrderedGlassCount)
	}

	deleted, err := env.orders.DeleteSupplierBatch(ctx, result.GlassOrderID)
	if err != nil {
		t.Fatalf("delete supplier batch failed: %v", err)
	}
	if deleted.Quantity != 8 {
		t.Fatalf("unexpected delete result: %+v", deleted)
	}
	if po := loadProductionOrder(t, env.db, "10001"); po.OrderedGlassCount != 4 {
		t.Fatalf("ordered count should return to 4, got %d", po.OrderedGlassCount)
	}
	po := loadProductionOrder(t, env.db, "10002")
	if po.OrderedGlassCount != 0 || po.GlassOrderStatus != constants.GlassStatusNotOrdered {
		t.Fatalf("ordered count should return to 0: %+v", po)
	}
	if _, err := env.orders.DeleteSupplierBatch(ctx, result.GlassOrderID); !errors.Is(err, ErrGlassOrderNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}
	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-2", nil,
		GlassOrderItemInput{OrderNumber: "10002", WidthMM: 600, HeightMM: 800, Quantity: 1},
	), false); err != nil {
		t.Fatalf("deleted batch number should be reusable: %v", err)
	}
}

func TestSupplierImportConflictAndReplace(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "20001")
	ctx := context.Background()

	first, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-3", nil,
		GlassOrderItemInput{OrderNumber: "20001", WidthMM: 600, HeightMM: 800, Quantity: 2},
	), false)
	if err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}

	_, err = env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-3", nil,
		GlassOrderItemInput{OrderNumber: "20001", WidthMM: 600, HeightMM: 800, Quantity: 3},
	), false)
	var conflict *GlassOrderConflictError
	if !errors.As(err, &conflict) || !errors.Is(err, ErrGlassOrderExists) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if conflict.Existing.TotalQuantity != 2 || conflict.Incoming.TotalQuantity != 3 {
		t.Fatalf("unexpected conflict summaries: %+v", conflict)
	}
	if po := loadProductionOrder(t, env.db, "20001"); po.OrderedGlassCount != 2 {
		t.Fatalf("conflict must not change counters, got %d", po.OrderedGlassCount)
	}

	replaced, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-3", nil,
		GlassOrderItemInput{OrderNumber: "20001", WidthMM: 600, HeightMM: 800, Quantity: 3},
	), true)
	if err != nil {
		t.Fatalf("replace supplier batch failed: %v", err)
	}
	if replaced.ReplacedGlassOrderID != first.GlassOrderID || replaced.GlassOrderID == first.GlassOrderID {
		t.Fatalf("unexpected replace result: %+v", replaced)
	}
	if po := loadProductionOrder(t, env.db, "20001"); po.OrderedGlassCount != 3 {
		t.Fatalf("replace must not double count, got %d", po.OrderedGlassCount)
	}
	var live int64
	env.db.Model(&models.GlassOrder{}).Where("glass_order_number = ?", "GO-3").Count(&live)
	if live != 1 {
		t.Fatalf("expected one live batch, got %d", live)
	}
}

func TestSupplierImportMissingProductionOrderWarns(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "30001")
	ctx := context.Background()

	result, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-4", nil,
		GlassOrderItemInput{OrderNumber: "30001", WidthMM: 600, HeightMM: 800, Quantity: 1},
		GlassOrderItemInput{OrderNumber: "30404", WidthMM: 600, HeightMM: 800, Quantity: 2},
	), false)
	if err != nil {
		t.Fatalf("missing production order must not fail import: %v", err)
	}
	if result.Issues != 1 || len(result.Warnings) != 1 {
		t.Fatalf("unexpected import result: %+v", result)
	}
	issues, err := env.validations.ListByOrderNumber("30404")
	if err != nil {
		t.Fatalf("list by order number failed: %v", err)
	}
	if len(issues) != 1 || issues[0].ValidationType != constants.ValidationTypeMissingProductionOrder || issues[0].Severity != constants.SeverityWarning {
		t.Fatalf("unexpected issues: %+v", issues)
	}

	// 生产订单随后建档，另一批次的订购计数不能被旧批次的删除抵扣
	seedProductionOrders(t, env.db, "30404")
	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-5", nil,
		GlassOrderItemInput{OrderNumber: "30404", WidthMM: 600, HeightMM: 800, Quantity: 5},
	), false); err != nil {
		t.Fatalf("import second supplier batch failed: %v", err)
	}

	if _, err := env.orders.DeleteSupplierBatch(ctx, result.GlassOrderID); err != nil {
		t.Fatalf("delete supplier batch failed: %v", err)
	}
	if got := countIssues(t, env.db, constants.ValidationTypeMissingProductionOrder, false); got != 0 {
		t.Fatalf("issues of a deleted batch should be resolved, got %d open", got)
	}
	if po := loadProductionOrder(t, env.db, "30404"); po.OrderedGlassCount != 5 || po.GlassOrderStatus != constants.GlassStatusOrdered {
		t.Fatalf("uncounted order number should not be reversed: %+v", po)
	}
	if po := loadProductionOrder(t, env.db, "30001"); po.OrderedGlassCount != 0 {
		t.Fatalf("counted order number should be reversed: %+v", po)
	}
}

func TestSupplierImportRollsBackOnStorageFailure(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "31001")
	ctx := context.Background()
	if err := env.db.Migrator().DropTable(&models.GlassOrderValidation{}); err != nil {
		t.Fatalf("drop glass_order_validations failed: %v", err)
	}

	_, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-RB", nil,
		GlassOrderItemInput{OrderNumber: "31001", WidthMM: 600, HeightMM: 800, Quantity: 3},
		GlassOrderItemInput{OrderNumber: "31404", WidthMM: 600, HeightMM: 800, Quantity: 1},
	), false)
	if !errors.Is(err, ErrGlassStorageFailed) {
		t.Fatalf("failed issue insert should surface as storage failure, got %v", err)
	}

	po := loadProductionOrder(t, env.db, "31001")
	if po.OrderedGlassCount != 0 || po.GlassOrderStatus != constants.GlassStatusNotOrdered {
		t.Fatalf("counters must roll back with the batch: %+v", po)
	}
	var batches, items int64
	if err := env.db.Unscoped().Model(&models.GlassOrder{}).Count(&batches).Error; err != nil {
		t.Fatalf("count glass orders failed: %v", err)
	}
	if err := env.db.Model(&models.GlassOrderItem{}).Count(&items).Error; err != nil {
		t.Fatalf("count glass order items failed: %v", err)
	}
	if batches != 0 || items != 0 {
		t.Fatalf("no batch rows should be visible: batches=%d items=%d", batches, items)
	}
	if len(env.scheduler.requests) != 0 {
		t.Fatalf("rolled back import must not schedule rematch: %+v", env.scheduler.requests)
	}
}

func TestRunGlassTxTimeout(t *testing.T) {
	setupGlassServiceTest(t)
	err := runGlassTx(context.Background(), time.Nanosecond, func(tx *gorm.DB) error {
		time.Sleep(5 * time.Millisecond)
		return tx.Exec("SELECT 1").Error
	})
	if !errors.Is(err, ErrTransactionTimeout) {
		t.Fatalf("expired transaction should map to ErrTransactionTimeout, got %v", err)
	}
	if !IsRetryableMatchingError(err) {
		t.Fatalf("transaction timeout should be retryable")
	}
}

func TestSupplierImportNeverClearsDeliveryDate(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "40001")
	ctx := context.Background()
	expected := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)

	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-5", &expected,
		GlassOrderItemInput{OrderNumber: "40001", WidthMM: 600, HeightMM: 800, Quantity: 1},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-6", nil,
		GlassOrderItemInput{OrderNumber: "40001", WidthMM: 700, HeightMM: 800, Quantity: 1},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	later := expected.AddDate(0, 0, 7)
	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-7", &later,
		GlassOrderItemInput{OrderNumber: "40001", WidthMM: 800, HeightMM: 800, Quantity: 1},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	po := loadProductionOrder(t, env.db, "40001")
	if po.GlassDeliveryDate == nil || !po.GlassDeliveryDate.Equal(expected) {
		t.Fatalf("delivery date should stay %s, got %v", expected, po.GlassDeliveryDate)
	}
}

func TestDeleteDeliveryBatchReversesCountedPanes(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "50001")
	ctx := context.Background()

	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-8", nil,
		GlassOrderItemInput{OrderNumber: "50001", WidthMM: 600, HeightMM: 800, Quantity: 4},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	delivery, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R5",
		GlassDeliveryItemInput{OrderNumber: "50001", WidthMM: 600, HeightMM: 800, Quantity: 2},
		GlassDeliveryItemInput{OrderNumber: "50001", OrderSuffix: "B", WidthMM: 600, HeightMM: 800, Quantity: 1},
		GlassDeliveryItemInput{OrderNumber: "50001", WidthMM: 100, HeightMM: 100, Quantity: 9},
	))
	if err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}
	po := loadProductionOrder(t, env.db, "50001")
	if po.DeliveredGlassCount != 3 || po.GlassOrderStatus != constants.GlassStatusPartiallyDelivered {
		t.Fatalf("unexpected production order after delivery: %+v", po)
	}

	deleted, err := env.deliveries.DeleteDeliveryBatch(ctx, delivery.GlassDeliveryID)
	if err != nil {
		t.Fatalf("delete delivery batch failed: %v", err)
	}
	if deleted.Quantity != 3 || deleted.ResolvedIssues != 2 {
		t.Fatalf("unexpected delete result: %+v", deleted)
	}
	po = loadProductionOrder(t, env.db, "50001")
	if po.DeliveredGlassCount != 0 || po.GlassOrderStatus != constants.GlassStatusOrdered {
		t.Fatalf("delivery delete should reverse counted panes: %+v", po)
	}
	if _, err := env.deliveries.DeleteDeliveryBatch(ctx, delivery.GlassDeliveryID); !errors.Is(err, ErrGlassDeliveryNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}
}

func TestLatestImportSummary(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "50002")
	ctx := context.Background()

	if _, err := env.deliveries.LatestImportSummary(); !errors.Is(err, ErrGlassDeliveryNotFound) {
		t.Fatalf("empty store should report not found, got %v", err)
	}
	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-9", nil,
		GlassOrderItemInput{OrderNumber: "50002", WidthMM: 600, HeightMM: 800, Quantity: 4},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	if _, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R6",
		GlassDeliveryItemInput{OrderNumber: "50002", WidthMM: 600, HeightMM: 800, Quantity: 1},
	)); err != nil {
		t.Fatalf("import first delivery failed: %v", err)
	}
	if _, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R7",
		GlassDeliveryItemInput{OrderNumber: "50002", WidthMM: 600, HeightMM: 800, Quantity: 2},
		GlassDeliveryItemInput{OrderNumber: "50002", OrderSuffix: "B", WidthMM: 600, HeightMM: 800, Quantity: 1},
		GlassDeliveryItemInput{OrderNumber: "50002", WidthMM: 100, HeightMM: 100, Quantity: 9},
	)); err != nil {
		t.Fatalf("import second delivery failed: %v", err)
	}

	summary, err := env.deliveries.LatestImportSummary()
	if err != nil {
		t.Fatalf("latest import summary failed: %v", err)
	}
	if summary.Delivery.RackNumber != "R7" {
		t.Fatalf("latest should be the last imported rack, got %s", summary.Delivery.RackNumber)
	}
	if summary.ItemCount != 3 || summary.TotalQuantity != 12 || summary.OpenIssues != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, status := range []string{constants.MatchStatusMatched, constants.MatchStatusConflict, constants.MatchStatusUnmatched} {
		if summary.ByStatus[status] != 1 {
			t.Fatalf("expected one %s pane, got %+v", status, summary.ByStatus)
		}
	}
}

func TestFulfillmentSummary(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "60001")
	ctx := context.Background()

	imported, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-9", nil,
		GlassOrderItemInput{OrderNumber: "60001", Position: "1", WidthMM: 1000, HeightMM: 2000, Quantity: 2},
		GlassOrderItemInput{OrderNumber: "60001", Position: "2", WidthMM: 500, HeightMM: 500, Quantity: 1},
	), false)
	if err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	if _, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R6",
		GlassDeliveryItemInput{OrderNumber: "60001", WidthMM: 1000, HeightMM: 2000, Quantity: 1},
	)); err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}

	summary, err := env.orders.GetFulfillmentSummary(ctx, imported.GlassOrderID)
	if err != nil {
		t.Fatalf("get fulfillment summary failed: %v", err)
	}
	if summary.GlassOrderNumber != "GO-9" || summary.OrderedTotal != 3 || summary.DeliveredTotal != 1 {
		t.Fatalf("unexpected summary totals: %+v", summary)
	}
	if summary.OrderedAreaM2.String() != "4.2500" || summary.DeliveredAreaM2.String() != "2.0000" {
		t.Fatalf("unexpected areas: ordered=%s delivered=%s", summary.OrderedAreaM2, summary.DeliveredAreaM2)
	}
	if len(summary.Breakdown) != 2 ||
		summary.Breakdown[0].Status != constants.DiscrepancyPartial ||
		summary.Breakdown[1].Status != constants.DiscrepancyMissing {
		t.Fatalf("unexpected breakdown: %+v", summary.Breakdown)
	}
	if summary.Status != constants.GlassOrderStatusPartiallyDelivered {
		t.Fatalf("glass order should be partially delivered, got %s", summary.Status)
	}
	if _, err := env.orders.GetFulfillmentSummary(ctx, 9999); !errors.Is(err, ErrGlassOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestImportRejectsInvalidInput(t *testing.T) {
	env := setupGlassServiceTest(t)
	ctx := context.Background()

	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("", nil,
		GlassOrderItemInput{OrderNumber: "1", WidthMM: 1, HeightMM: 1, Quantity: 1},
	), false); !errors.Is(err, ErrGlassImportInvalid) {
		t.Fatalf("expected invalid error for empty batch number, got %v", err)
	}
	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-X", nil,
		GlassOrderItemInput{OrderNumber: "1", WidthMM: 1, HeightMM: 1, Quantity: 0},
	), false); !errors.Is(err, ErrGlassImportInvalid) {
		t.Fatalf("expected invalid error for zero quantity, got %v", err)
	}
	if _, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("R0")); !errors.Is(err, ErrGlassImportInvalid) {
		t.Fatalf("expected invalid error for empty delivery, got %v", err)
	}
}
