package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/queue"
	"github.com/glassline/internal/repository"
)

func TestValidationDashboardAndResolve(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "90001")
	ctx := context.Background()

	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-D", nil,
		GlassOrderItemInput{OrderNumber: "90001", WidthMM: 600, HeightMM: 800, Quantity: 1},
		GlassOrderItemInput{OrderNumber: "90404", WidthMM: 600, HeightMM: 800, Quantity: 1},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	if _, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("RD",
		GlassDeliveryItemInput{OrderNumber: "90001", OrderSuffix: "X", WidthMM: 600, HeightMM: 800, Quantity: 1},
		GlassDeliveryItemInput{OrderNumber: "90001", WidthMM: 10, HeightMM: 10, Quantity: 1},
	)); err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}

	dashboard, err := env.validations.Dashboard()
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if dashboard.TotalUnresolved != 3 {
		t.Fatalf("expected 3 open issues, got %+v", dashboard)
	}
	if dashboard.BySeverity[constants.SeverityWarning] != 2 || dashboard.BySeverity[constants.SeverityError] != 1 {
		t.Fatalf("unexpected severity counts: %+v", dashboard.BySeverity)
	}
	if dashboard.ByType[constants.ValidationTypeUnmatchedDelivery] != 1 ||
		dashboard.ByType[constants.ValidationTypeSuffixMismatch] != 1 ||
		dashboard.ByType[constants.ValidationTypeMissingProductionOrder] != 1 {
		t.Fatalf("unexpected type counts: %+v", dashboard.ByType)
	}
	if len(dashboard.Recent) != 3 {
		t.Fatalf("expected 3 recent issues, got %d", len(dashboard.Recent))
	}

	errorsOnly, total, err := env.validations.ListUnresolved(repository.GlassValidationListFilter{Severity: constants.SeverityError})
	if err != nil || total != 1 {
		t.Fatalf("list unresolved errors failed: total=%d err=%v", total, err)
	}
	resolved, err := env.validations.Resolve(ctx, errorsOnly[0].ID, "anna", "broken in transit")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedBy != "anna" || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved issue: %+v", resolved)
	}
	if _, err := env.validations.Resolve(ctx, errorsOnly[0].ID, "anna", ""); !errors.Is(err, ErrValidationResolved) {
		t.Fatalf("second resolve should fail, got %v", err)
	}
	if _, err := env.validations.Resolve(ctx, 4242, "anna", ""); !errors.Is(err, ErrValidationNotFound) {
		t.Fatalf("resolve of unknown id should fail, got %v", err)
	}
	if _, total, _ := env.validations.ListUnresolved(repository.GlassValidationListFilter{}); total != 2 {
		t.Fatalf("expected 2 open issues after resolve, got %d", total)
	}
}

func TestDetailedDiscrepancies(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "91001")
	ctx := context.Background()

	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-E", nil,
		GlassOrderItemInput{OrderNumber: "91001", Position: "1", WidthMM: 600, HeightMM: 800, Quantity: 2},
		GlassOrderItemInput{OrderNumber: "91001", Position: "2", WidthMM: 700, HeightMM: 800, Quantity: 1},
		GlassOrderItemInput{OrderNumber: "91001", Position: "3", WidthMM: 900, HeightMM: 900, Quantity: 1},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	if _, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("RE",
		GlassDeliveryItemInput{OrderNumber: "91001", Position: "1", WidthMM: 600, HeightMM: 800, Quantity: 2},
		GlassDeliveryItemInput{OrderNumber: "91001", Position: "3", WidthMM: 900, HeightMM: 900, Quantity: 2},
		GlassDeliveryItemInput{OrderNumber: "91001", Position: "9", WidthMM: 50, HeightMM: 50, Quantity: 1},
	)); err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}

	report, err := env.validations.DetailedDiscrepancies("91001")
	if err != nil {
		t.Fatalf("detailed discrepancies failed: %v", err)
	}
	if report.OrderedTotal != 4 || report.DeliveredTotal != 4 || report.FullyDelivered {
		t.Fatalf("unexpected report totals: %+v", report)
	}
	want := map[string]string{
		"600x800": constants.DiscrepancyComplete,
		"700x800": constants.DiscrepancyMissing,
		"900x900": constants.DiscrepancyExcess,
	}
	if len(report.Dimensions) != len(want) {
		t.Fatalf("unexpected dimensions: %+v", report.Dimensions)
	}
	for _, d := range report.Dimensions {
		if want[d.Dimensions] != d.Status {
			t.Fatalf("dimension %s want %s got %s", d.Dimensions, want[d.Dimensions], d.Status)
		}
	}
	if len(report.UnmatchedPanes) != 1 || report.UnmatchedPanes[0].Position != "9" {
		t.Fatalf("unexpected unmatched panes: %+v", report.UnmatchedPanes)
	}
	if report.OpenIssueCount != 1 {
		t.Fatalf("expected one open issue, got %d", report.OpenIssueCount)
	}
}

func TestRematchDispatcherUsesMatchingQueue(t *testing.T) {
	env := setupGlassServiceTest(t)
	seedProductionOrders(t, env.db, "92001")
	ctx := context.Background()

	if _, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("RQ",
		GlassDeliveryItemInput{OrderNumber: "92001", WidthMM: 600, HeightMM: 800, Quantity: 1},
	)); err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}

	queueClient, _ := queue.NewClient(nil, 0)
	matchingQueue := queue.NewMatchingQueue(queue.MatchingQueueOptions{DefaultMaxRetries: 2, BaseRetryDelay: time.Millisecond})
	dispatcher := NewGlassRematchDispatcher(queueClient, matchingQueue, env.rematch, 0)

	if _, err := dispatcher.ScheduleRematch(ctx, RematchRequest{}); !errors.Is(err, ErrRematchInvalid) {
		t.Fatalf("empty order numbers should be rejected, got %v", err)
	}
	if _, err := env.orders.ImportSupplierBatch(ctx, supplierBatch("GO-Q", nil,
		GlassOrderItemInput{OrderNumber: "92001", WidthMM: 600, HeightMM: 800, Quantity: 1},
	), false); err != nil {
		t.Fatalf("import supplier batch failed: %v", err)
	}
	jobID, err := dispatcher.ScheduleRematch(ctx, RematchRequest{
		Priority:     constants.MatchingPriorityHigh,
		OrderNumbers: []string{"92001"},
		Source:       constants.RematchSourceAPI,
	})
	if err != nil || jobID == "" {
		t.Fatalf("schedule rematch failed: id=%q err=%v", jobID, err)
	}
	pending := matchingQueue.PendingJobs()
	if len(pending) != 1 || pending[0].Type != constants.MatchingJobOrderRematch || pending[0].MaxRetries != 2 {
		t.Fatalf("unexpected pending jobs: %+v", pending)
	}

	if ran, _ := matchingQueue.RunOnce(ctx); !ran {
		t.Fatalf("queued rematch should run")
	}
	stats := matchingQueue.Stats()
	if stats.Completed != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected queue stats: %+v", stats)
	}
	po := loadProductionOrder(t, env.db, "92001")
	if po.DeliveredGlassCount != 1 || po.GlassOrderStatus != constants.GlassStatusDelivered {
		t.Fatalf("queued rematch should bind the pane: %+v", po)
	}
}

func TestRematchJobStorageFailureIsRequeued(t *testing.T) {
	env := setupGlassServiceTest(t)
	ctx := context.Background()
	if _, err := env.deliveries.ImportDeliveryBatch(ctx, deliveryBatch("RF",
		GlassDeliveryItemInput{OrderNumber: "99999", WidthMM: 600, HeightMM: 800, Quantity: 1},
	)); err != nil {
		t.Fatalf("import delivery batch failed: %v", err)
	}
	if err := env.db.Migrator().DropTable(&models.GlassOrderItem{}); err != nil {
		t.Fatalf("drop glass_order_items failed: %v", err)
	}

	queueClient, _ := queue.NewClient(nil, 0)
	matchingQueue := queue.NewMatchingQueue(queue.MatchingQueueOptions{DefaultMaxRetries: 3, BaseRetryDelay: time.Hour})
	dispatcher := NewGlassRematchDispatcher(queueClient, matchingQueue, env.rematch, 3)

	result := dispatcher.rematchJob([]string{"99999"})(ctx)
	if result.Success || !result.ShouldRetry || !errors.Is(result.Err, ErrGlassStorageFailed) {
		t.Fatalf("storage failure should be retried: %+v", result)
	}
	if invalid := dispatcher.rematchJob(nil)(ctx); invalid.ShouldRetry || !errors.Is(invalid.Err, ErrRematchInvalid) {
		t.Fatalf("invalid rematch should not be retried: %+v", invalid)
	}

	if _, err := dispatcher.ScheduleRematch(ctx, RematchRequest{OrderNumbers: []string{"99999"}, Source: constants.RematchSourceAuto}); err != nil {
		t.Fatalf("schedule rematch failed: %v", err)
	}
	if ran, _ := matchingQueue.RunOnce(ctx); !ran {
		t.Fatalf("queued rematch should run")
	}
	retry := matchingQueue.RetryJobs()
	if len(retry) != 1 || retry[0].RetryCount != 1 || retry[0].Metadata.OrderNumbers[0] != "99999" {
		t.Fatalf("failed rematch should wait for retry with its metadata: %+v", retry)
	}
	if stats := matchingQueue.Stats(); stats.Failed != 0 {
		t.Fatalf("failed rematch should not be final yet: %+v", stats)
	}
}

func TestIsRetryableMatchingError(t *testing.T) {
	if !IsRetryableMatchingError(ErrTransactionTimeout) {
		t.Fatalf("timeout should be retryable")
	}
	if !IsRetryableMatchingError(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatalf("locked database should be retryable")
	}
	if IsRetryableMatchingError(ErrGlassOrderExists) || IsRetryableMatchingError(nil) {
		t.Fatalf("conflict should not be retryable")
	}
}
