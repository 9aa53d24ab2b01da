package glass

import (
	handlershared "github.com/glassline/internal/http/handlers/shared"
	"github.com/glassline/internal/http/response"
	"github.com/glassline/internal/repository"
	"github.com/glassline/internal/service"

	"github.com/gin-gonic/gin"
)

// GlassDeliveryItemRequest 到货明细
type GlassDeliveryItemRequest struct {
	OrderNumber      string `json:"order_number" binding:"required"`
	OrderSuffix      string `json:"order_suffix"`
	Position         string `json:"position"`
	WidthMM          int    `json:"width_mm" binding:"required"`
	HeightMM         int    `json:"height_mm" binding:"required"`
	Quantity         int    `json:"quantity" binding:"required"`
	GlassComposition string `json:"glass_composition"`
	SerialNumber     string `json:"serial_number"`
}

// ImportGlassDeliveryRequest 导入到货批次请求
type ImportGlassDeliveryRequest struct {
	RackNumber          string                     `json:"rack_number"`
	CustomerOrderNumber string                     `json:"customer_order_number"`
	SupplierOrderNumber string                     `json:"supplier_order_number"`
	DeliveryDate        string                     `json:"delivery_date"`
	Items               []GlassDeliveryItemRequest `json:"items" binding:"required"`
}

// ImportGlassDelivery 导入到货批次并匹配
func (h *Handler) ImportGlassDelivery(c *gin.Context) {
	var req ImportGlassDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	deliveryDate, err := parseDate(req.DeliveryDate)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.import_invalid", nil)
		return
	}
	input := service.ImportGlassDeliveryInput{
		RackNumber:          req.RackNumber,
		CustomerOrderNumber: req.CustomerOrderNumber,
		SupplierOrderNumber: req.SupplierOrderNumber,
		Items:               make([]service.GlassDeliveryItemInput, 0, len(req.Items)),
	}
	if deliveryDate != nil {
		input.DeliveryDate = *deliveryDate
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.GlassDeliveryItemInput{
			OrderNumber:      item.OrderNumber,
			OrderSuffix:      item.OrderSuffix,
			Position:         item.Position,
			WidthMM:          item.WidthMM,
			HeightMM:         item.HeightMM,
			Quantity:         item.Quantity,
			GlassComposition: item.GlassComposition,
			SerialNumber:     item.SerialNumber,
		})
	}

	var result *service.GlassImportResult
	err = h.withImportLock(c.Request.Context(), func() error {
		var importErr error
		result, importErr = h.GlassDeliveryService.ImportDeliveryBatch(c.Request.Context(), input)
		return importErr
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassWriteErrorRules, response.CodeInternal, "error.import_failed")
		return
	}
	requestLog(c).Infow("glass_delivery_import_request_done",
		"glass_delivery_id", result.GlassDeliveryID,
		"matched", result.Matched,
		"conflict", result.Conflict,
		"unmatched", result.Unmatched,
	)
	response.Success(c, result)
}

// DeleteGlassDelivery 软删除到货批次并回退已计数量
func (h *Handler) DeleteGlassDelivery(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var result *service.GlassDeleteResult
	err := h.withImportLock(c.Request.Context(), func() error {
		var deleteErr error
		result, deleteErr = h.GlassDeliveryService.DeleteDeliveryBatch(c.Request.Context(), id)
		return deleteErr
	})
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassWriteErrorRules, response.CodeInternal, "error.storage_failed")
		return
	}
	response.Success(c, result)
}

// GetGlassDeliveries 到货批次列表
func (h *Handler) GetGlassDeliveries(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	deliveredFrom, ok := parseDateQuery(c, "delivered_from")
	if !ok {
		return
	}
	deliveredTo, ok := parseDateQuery(c, "delivered_to")
	if !ok {
		return
	}
	deliveries, total, err := h.GlassDeliveryService.List(repository.GlassDeliveryListFilter{
		Page:                page,
		PageSize:            pageSize,
		RackNumber:          c.Query("rack_number"),
		CustomerOrderNumber: c.Query("customer_order_number"),
		DeliveredFrom:       deliveredFrom,
		DeliveredTo:         deliveredTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, deliveries, response.NewPagination(page, pageSize, total))
}

// GetGlassDelivery 到货批次详情
func (h *Handler) GetGlassDelivery(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	delivery, err := h.GlassDeliveryService.Get(id)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassReadErrorRules, response.CodeInternal, "error.fetch_failed")
		return
	}
	response.Success(c, delivery)
}

// GetLatestDeliveryImport 最近一次到货导入概要
func (h *Handler) GetLatestDeliveryImport(c *gin.Context) {
	summary, err := h.GlassDeliveryService.LatestImportSummary()
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.Success(c, summary)
}
