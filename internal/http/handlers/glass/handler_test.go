package glass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glassline/internal/cache"
	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/http/response"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/provider"
	"github.com/glassline/internal/queue"
	"github.com/glassline/internal/repository"
	"github.com/glassline/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type apiResponse struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupHandlerTest(t *testing.T) (*Handler, *gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:glass_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	models.DB = db

	c := &provider.Container{
		ImportLock:          cache.NewImportLock(time.Minute),
		MatchingQueue:       queue.NewMatchingQueue(queue.MatchingQueueOptions{DefaultMaxRetries: 1}),
		ProductionOrderRepo: repository.NewProductionOrderRepository(db),
		GlassOrderRepo:      repository.NewGlassOrderRepository(db),
		GlassDeliveryRepo:   repository.NewGlassDeliveryRepository(db),
		GlassValidationRepo: repository.NewGlassValidationRepository(db),
	}
	c.QueueClient, _ = queue.NewClient(nil, 0)
	opts := service.GlassServiceOptions{TransactionTimeout: 10 * time.Second}
	c.GlassRematchService = service.NewGlassRematchService(c.ProductionOrderRepo, c.GlassOrderRepo, c.GlassDeliveryRepo, c.GlassValidationRepo, opts)
	c.RematchDispatcher = service.NewGlassRematchDispatcher(c.QueueClient, c.MatchingQueue, c.GlassRematchService, 1)
	c.GlassOrderService = service.NewGlassOrderService(c.ProductionOrderRepo, c.GlassOrderRepo, c.GlassDeliveryRepo, c.GlassValidationRepo, c.RematchDispatcher, opts)
	c.GlassDeliveryService = service.NewGlassDeliveryService(c.ProductionOrderRepo, c.GlassOrderRepo, c.GlassDeliveryRepo, c.GlassValidationRepo, c.RematchDispatcher, opts)
	c.GlassValidationService = service.NewGlassValidationService(c.GlassValidationRepo, c.GlassOrderRepo, c.GlassDeliveryRepo)

	h := New(c)
	r := gin.New()
	g := r.Group("/api/v1/glass")
	g.POST("/orders/import", h.ImportGlassOrder)
	g.GET("/orders", h.GetGlassOrders)
	g.GET("/orders/:id/summary", h.GetGlassOrderSummary)
	g.PUT("/orders/:id/status", h.UpdateGlassOrderStatus)
	g.DELETE("/orders/:id", h.DeleteGlassOrder)
	g.POST("/deliveries/import", h.ImportGlassDelivery)
	g.GET("/validations/unresolved", h.GetUnresolvedValidations)
	g.POST("/validations/:id/resolve", h.ResolveValidation)
	g.POST("/rematch", h.Rematch)
	g.GET("/queue/stats", h.GetQueueStats)
	return h, r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s http status %d", method, path, w.Code)
	}
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func supplierImportBody(number string, replace bool) gin.H {
	return gin.H{
		"glass_order_number":     number,
		"supplier":               "Glaswerk",
		"order_date":             "2024-03-01",
		"expected_delivery_date": "2024-03-15",
		"replace_existing":       replace,
		"items": []gin.H{
			{"order_number": "53472", "width_mm": 600, "height_mm": 800, "quantity": 2},
		},
	}
}

func TestImportGlassOrderConflictAndReplace(t *testing.T) {
	_, r, db := setupHandlerTest(t)
	db.Create(&models.ProductionOrder{OrderNumber: "53472", GlassOrderStatus: constants.GlassStatusNotOrdered})

	first := doJSON(t, r, http.MethodPost, "/api/v1/glass/orders/import", supplierImportBody("GO-H1", false))
	if first.StatusCode != response.CodeOK {
		t.Fatalf("first import failed: %+v", first)
	}
	var result service.GlassImportResult
	if err := json.Unmarshal(first.Data, &result); err != nil || result.GlassOrderID == 0 {
		t.Fatalf("unexpected import result: %s err=%v", first.Data, err)
	}

	conflict := doJSON(t, r, http.MethodPost, "/api/v1/glass/orders/import", supplierImportBody("GO-H1", false))
	if conflict.StatusCode != response.CodeConflict {
		t.Fatalf("duplicate import should conflict, got %+v", conflict)
	}
	var detail struct {
		Existing service.GlassBatchSummary `json:"existing"`
		Incoming service.GlassBatchSummary `json:"incoming"`
	}
	if err := json.Unmarshal(conflict.Data, &detail); err != nil {
		t.Fatalf("unmarshal conflict detail failed: %v", err)
	}
	if detail.Existing.TotalQuantity != 2 || detail.Incoming.GlassOrderNumber != "GO-H1" {
		t.Fatalf("unexpected conflict detail: %+v", detail)
	}

	replaced := doJSON(t, r, http.MethodPost, "/api/v1/glass/orders/import", supplierImportBody("GO-H1", true))
	if replaced.StatusCode != response.CodeOK {
		t.Fatalf("replace import failed: %+v", replaced)
	}
	var po models.ProductionOrder
	db.Where("order_number = ?", "53472").First(&po)
	if po.OrderedGlassCount != 2 {
		t.Fatalf("replace should keep ordered count at 2, got %d", po.OrderedGlassCount)
	}
}

func TestImportRejectsBadPayloadAndHeldLock(t *testing.T) {
	h, r, _ := setupHandlerTest(t)

	bad := doJSON(t, r, http.MethodPost, "/api/v1/glass/orders/import", gin.H{"supplier": "x"})
	if bad.StatusCode != response.CodeBadRequest {
		t.Fatalf("missing fields should be rejected, got %+v", bad)
	}
	badDate := supplierImportBody("GO-H2", false)
	badDate["order_date"] = "01.03.2024"
	if resp := doJSON(t, r, http.MethodPost, "/api/v1/glass/orders/import", badDate); resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("bad date should be rejected, got %+v", resp)
	}

	release, err := h.ImportLock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire lock failed: %v", err)
	}
	defer release()
	locked := doJSON(t, r, http.MethodPost, "/api/v1/glass/deliveries/import", gin.H{
		"rack_number": "R1",
		"items":       []gin.H{{"order_number": "53472", "width_mm": 600, "height_mm": 800, "quantity": 1}},
	})
	if locked.StatusCode != response.CodeConflict {
		t.Fatalf("held import lock should conflict, got %+v", locked)
	}
	if resp := doJSON(t, r, http.MethodDelete, "/api/v1/glass/orders/1", nil); resp.StatusCode != response.CodeConflict {
		t.Fatalf("delete under held lock should conflict, got %+v", resp)
	}
}

func TestDeliveryImportIssuesAndResolve(t *testing.T) {
	_, r, db := setupHandlerTest(t)
	db.Create(&models.ProductionOrder{OrderNumber: "53472", GlassOrderStatus: constants.GlassStatusNotOrdered})

	doJSON(t, r, http.MethodPost, "/api/v1/glass/orders/import", supplierImportBody("GO-H3", false))
	resp := doJSON(t, r, http.MethodPost, "/api/v1/glass/deliveries/import", gin.H{
		"rack_number":   "R1",
		"delivery_date": "2024-03-16",
		"items": []gin.H{
			{"order_number": "53472", "width_mm": 600, "height_mm": 800, "quantity": 2},
			{"order_number": "99999", "width_mm": 300, "height_mm": 300, "quantity": 1},
		},
	})
	var result service.GlassImportResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal delivery result failed: %v", err)
	}
	if result.Matched != 1 || result.Unmatched != 1 || result.RematchJobID == "" {
		t.Fatalf("unexpected delivery result: %+v", result)
	}

	list := doJSON(t, r, http.MethodGet, "/api/v1/glass/validations/unresolved?severity=error", nil)
	var issues []models.GlassOrderValidation
	if err := json.Unmarshal(list.Data, &issues); err != nil || len(issues) != 1 {
		t.Fatalf("expected one unmatched issue, got %s err=%v", list.Data, err)
	}

	path := fmt.Sprintf("/api/v1/glass/validations/%d/resolve", issues[0].ID)
	if resolved := doJSON(t, r, http.MethodPost, path, gin.H{"resolved_by": "anna", "notes": "wrong rack"}); resolved.StatusCode != response.CodeOK {
		t.Fatalf("resolve failed: %+v", resolved)
	}
	if again := doJSON(t, r, http.MethodPost, path, nil); again.StatusCode != response.CodeConflict {
		t.Fatalf("second resolve should conflict, got %+v", again)
	}

	summary := doJSON(t, r, http.MethodGet, "/api/v1/glass/orders/1/summary", nil)
	var fulfillment service.GlassFulfillmentSummary
	if err := json.Unmarshal(summary.Data, &fulfillment); err != nil {
		t.Fatalf("unmarshal summary failed: %v", err)
	}
	if fulfillment.OrderedTotal != 2 || fulfillment.DeliveredTotal != 2 {
		t.Fatalf("unexpected summary: %+v", fulfillment)
	}
	if missing := doJSON(t, r, http.MethodGet, "/api/v1/glass/orders/999/summary", nil); missing.StatusCode != response.CodeNotFound {
		t.Fatalf("unknown batch should be 404, got %+v", missing)
	}
}

func TestRematchAndQueueStats(t *testing.T) {
	_, r, _ := setupHandlerTest(t)

	if resp := doJSON(t, r, http.MethodPost, "/api/v1/glass/rematch", gin.H{"order_numbers": []string{" "}}); resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("blank order numbers should be rejected, got %+v", resp)
	}
	resp := doJSON(t, r, http.MethodPost, "/api/v1/glass/rematch", gin.H{"order_numbers": []string{"53472"}})
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("rematch failed: %+v", resp)
	}

	stats := doJSON(t, r, http.MethodGet, "/api/v1/glass/queue/stats", nil)
	var snapshot queue.MatchingQueueStats
	if err := json.Unmarshal(stats.Data, &snapshot); err != nil {
		t.Fatalf("unmarshal stats failed: %v", err)
	}
	if snapshot.Pending != 1 {
		t.Fatalf("expected one pending job, got %+v", snapshot)
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	_, r, db := setupHandlerTest(t)
	db.Create(&models.ProductionOrder{OrderNumber: "53472", GlassOrderStatus: constants.GlassStatusNotOrdered})
	doJSON(t, r, http.MethodPost, "/api/v1/glass/orders/import", supplierImportBody("GO-H4", false))

	if resp := doJSON(t, r, http.MethodPut, "/api/v1/glass/orders/1/status", gin.H{"status": "lost"}); resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("unknown status should be rejected, got %+v", resp)
	}
	if resp := doJSON(t, r, http.MethodPut, "/api/v1/glass/orders/1/status", gin.H{"status": constants.GlassOrderStatusCancelled}); resp.StatusCode != response.CodeOK {
		t.Fatalf("cancel failed: %+v", resp)
	}
	list := doJSON(t, r, http.MethodGet, "/api/v1/glass/orders?status=cancelled", nil)
	var orders []models.GlassOrder
	if err := json.Unmarshal(list.Data, &orders); err != nil || len(orders) != 1 {
		t.Fatalf("expected one cancelled batch, got %s err=%v", list.Data, err)
	}
}
