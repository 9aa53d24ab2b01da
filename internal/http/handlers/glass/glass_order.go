package glass

import (
	"errors"
	"strings"

	handlershared "github.com/glassline/internal/http/handlers/shared"
	"github.com/glassline/internal/http/response"
	"github.com/glassline/internal/repository"
	"github.com/glassline/internal/service"

	"github.com/gin-gonic/gin"
)

// GlassOrderItemRequest 订购明细
type GlassOrderItemRequest struct {
	OrderNumber string `json:"order_number" binding:"required"`
	OrderSuffix string `json:"order_suffix"`
	Position    string `json:"position"`
	GlassType   string `json:"glass_type"`
	WidthMM     int    `json:"width_mm" binding:"required"`
	HeightMM    int    `json:"height_mm" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
}

// ImportGlassOrderRequest 导入供应商采购批次请求
type ImportGlassOrderRequest struct {
	GlassOrderNumber     string                  `json:"glass_order_number" binding:"required"`
	OrderDate            string                  `json:"order_date"`
	Supplier             string                  `json:"supplier" binding:"required"`
	OrderedBy            string                  `json:"ordered_by"`
	ExpectedDeliveryDate string                  `json:"expected_delivery_date"`
	Notes                string                  `json:"notes"`
	ReplaceExisting      bool                    `json:"replace_existing"`
	Items                []GlassOrderItemRequest `json:"items" binding:"required"`
}

// UpdateGlassOrderStatusRequest 更新批次状态请求
type UpdateGlassOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ImportGlassOrder 导入供应商采购批次
func (h *Handler) ImportGlassOrder(c *gin.Context) {
	var req ImportGlassOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.import_invalid", nil)
		return
	}

	var result *service.GlassImportResult
	err = h.withImportLock(c.Request.Context(), func() error {
		var importErr error
		result, importErr = h.GlassOrderService.ImportSupplierBatch(c.Request.Context(), input, req.ReplaceExisting)
		return importErr
	})
	if err != nil {
		var conflict *service.GlassOrderConflictError
		if errors.As(err, &conflict) {
			appErr := response.WrapError(response.CodeConflict, "error.glass_order_exists", handlershared.Message("error.glass_order_exists"), nil)
			response.Fail(c, appErr, gin.H{
				"existing": conflict.Existing,
				"incoming": conflict.Incoming,
			})
			return
		}
		handlershared.RespondWithMappedError(c, err, glassWriteErrorRules, response.CodeInternal, "error.import_failed")
		return
	}
	requestLog(c).Infow("glass_order_import_request_done",
		"glass_order_id", result.GlassOrderID,
		"replaced_glass_order_id", result.ReplacedGlassOrderID,
		"rematch_job_id", result.RematchJobID,
	)
	response.Success(c, result)
}

func (r ImportGlassOrderRequest) toInput() (service.ImportGlassOrderInput, error) {
	input := service.ImportGlassOrderInput{
		GlassOrderNumber: r.GlassOrderNumber,
		Supplier:         r.Supplier,
		OrderedBy:        r.OrderedBy,
		Notes:            r.Notes,
		Items:            make([]service.GlassOrderItemInput, 0, len(r.Items)),
	}
	orderDate, err := parseDate(r.OrderDate)
	if err != nil {
		return input, err
	}
	if orderDate != nil {
		input.OrderDate = *orderDate
	}
	if input.ExpectedDeliveryDate, err = parseDate(r.ExpectedDeliveryDate); err != nil {
		return input, err
	}
	for _, item := range r.Items {
		input.Items = append(input.Items, service.GlassOrderItemInput{
			OrderNumber: item.OrderNumber,
			OrderSuffix: item.OrderSuffix,
			Position:    item.Position,
			GlassType:   item.GlassType,
			WidthMM:     item.WidthMM,
			HeightMM:    item.HeightMM,
			Quantity:    item.Quantity,
		})
	}
	return input, nil
}

// DeleteGlassOrder 软删除采购批次并回退计数
func (h *Handler) DeleteGlassOrder(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var result *service.GlassDeleteResult
	err := h.withImportLock(c.Request.Context(), func() error {
		var deleteErr error
		result, deleteErr = h.GlassOrderService.DeleteSupplierBatch(c.Request.Context(), id)
		return deleteErr
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassWriteErrorRules, response.CodeInternal, "error.storage_failed")
		return
	}
	response.Success(c, result)
}

// GetGlassOrders 采购批次列表
func (h *Handler) GetGlassOrders(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	orderedFrom, ok := parseDateQuery(c, "ordered_from")
	if !ok {
		return
	}
	orderedTo, ok := parseDateQuery(c, "ordered_to")
	if !ok {
		return
	}
	orders, total, err := h.GlassOrderService.List(repository.GlassOrderListFilter{
		Page:             page,
		PageSize:         pageSize,
		Status:           strings.TrimSpace(c.Query("status")),
		GlassOrderNumber: c.Query("glass_order_number"),
		OrderNumber:      c.Query("order_number"),
		Supplier:         c.Query("supplier"),
		OrderedFrom:      orderedFrom,
		OrderedTo:        orderedTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// GetGlassOrder 采购批次详情
func (h *Handler) GetGlassOrder(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.GlassOrderService.Get(id)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassReadErrorRules, response.CodeInternal, "error.fetch_failed")
		return
	}
	response.Success(c, order)
}

// GetGlassOrderSummary 采购批次履约汇总
func (h *Handler) GetGlassOrderSummary(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.GlassOrderService.GetFulfillmentSummary(c.Request.Context(), id)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassReadErrorRules, response.CodeInternal, "error.fetch_failed")
		return
	}
	response.Success(c, summary)
}

// UpdateGlassOrderStatus 手动更新批次状态
func (h *Handler) UpdateGlassOrderStatus(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateGlassOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	order, err := h.GlassOrderService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassWriteErrorRules, response.CodeInternal, "error.storage_failed")
		return
	}
	response.Success(c, order)
}
