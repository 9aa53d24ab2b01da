package glass

import (
	"strings"

	handlershared "github.com/glassline/internal/http/handlers/shared"
	"github.com/glassline/internal/http/response"
	"github.com/glassline/internal/repository"

	"github.com/gin-gonic/gin"
)

// ResolveValidationRequest 标记问题已处理
type ResolveValidationRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes"`
}

func validationFilterFromQuery(c *gin.Context) (repository.GlassValidationListFilter, bool) {
	page, pageSize := handlershared.ParsePagination(c)
	createdFrom, ok := parseDateQuery(c, "created_from")
	if !ok {
		return repository.GlassValidationListFilter{}, false
	}
	createdTo, ok := parseDateQuery(c, "created_to")
	if !ok {
		return repository.GlassValidationListFilter{}, false
	}
	return repository.GlassValidationListFilter{
		Page:           page,
		PageSize:       pageSize,
		OrderNumber:    c.Query("order_number"),
		ValidationType: strings.TrimSpace(c.Query("validation_type")),
		Severity:       strings.TrimSpace(c.Query("severity")),
		Dimensions:     c.Query("dimensions"),
		Resolved:       handlershared.QueryBool(c, "resolved"),
		CreatedFrom:    createdFrom,
		CreatedTo:      createdTo,
	}, true
}

// GetUnresolvedValidations 未处理问题列表
func (h *Handler) GetUnresolvedValidations(c *gin.Context) {
	filter, ok := validationFilterFromQuery(c)
	if !ok {
		return
	}
	issues, total, err := h.GlassValidationService.ListUnresolved(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, issues, response.NewPagination(filter.Page, filter.PageSize, total))
}

// GetValidations 问题列表（可按处理状态筛选）
func (h *Handler) GetValidations(c *gin.Context) {
	filter, ok := validationFilterFromQuery(c)
	if !ok {
		return
	}
	issues, total, err := h.GlassValidationService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, issues, response.NewPagination(filter.Page, filter.PageSize, total))
}

// GetValidationsByOrderNumber 指定生产订单的全部问题
func (h *Handler) GetValidationsByOrderNumber(c *gin.Context) {
	issues, err := h.GlassValidationService.ListByOrderNumber(c.Param("order_number"))
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.Success(c, issues)
}

// GetValidationDashboard 问题看板
func (h *Handler) GetValidationDashboard(c *gin.Context) {
	dashboard, err := h.GlassValidationService.Dashboard()
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.Success(c, dashboard)
}

// ResolveValidation 标记问题已处理
func (h *Handler) ResolveValidation(c *gin.Context) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req ResolveValidationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
	}
	issue, err := h.GlassValidationService.Resolve(c.Request.Context(), id, req.ResolvedBy, req.Notes)
	if err != nil {
		handlershared.RespondWithMappedError(c, err, glassReadErrorRules, response.CodeInternal, "error.storage_failed")
		return
	}
	response.Success(c, issue)
}

// GetDiscrepancies 生产订单按尺寸的订购/到货差异
func (h *Handler) GetDiscrepancies(c *gin.Context) {
	report, err := h.GlassValidationService.DetailedDiscrepancies(c.Param("order_number"))
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}
	response.Success(c, report)
}
