package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/glassline/internal/constants"
	"github.com/glassline/internal/models"
	"github.com/glassline/internal/repository"
)

// GlassValidationService 校验问题服务
type GlassValidationService struct {
	validationRepo repository.GlassValidationRepository
	orderRepo      repository.GlassOrderRepository
	deliveryRepo   repository.GlassDeliveryRepository
}

// NewGlassValidationService 创建校验问题服务
func NewGlassValidationService(validationRepo repository.GlassValidationRepository, orderRepo repository.GlassOrderRepository, deliveryRepo repository.GlassDeliveryRepository) *GlassValidationService {
	return &GlassValidationService{
		validationRepo: validationRepo,
		orderRepo:      orderRepo,
		deliveryRepo:   deliveryRepo,
	}
}

// GlassValidationDashboard 问题看板
type GlassValidationDashboard struct {
	TotalUnresolved int64                         `json:"total_unresolved"`
	BySeverity      map[string]int64              `json:"by_severity"`
	ByType          map[string]int64              `json:"by_type"`
	Recent          []models.GlassOrderValidation `json:"recent"`
}

// DimensionDiscrepancy 单一尺寸的订购/到货对比
type DimensionDiscrepancy struct {
	Dimensions         string   `json:"dimensions"`
	WidthMM            int      `json:"width_mm"`
	HeightMM           int      `json:"height_mm"`
	OrderedQuantity    int      `json:"ordered_quantity"`
	DeliveredQuantity  int      `json:"delivered_quantity"`
	OrderedPositions   []string `json:"ordered_positions"`
	DeliveredPositions []string `json:"delivered_positions"`
	Status             string   `json:"status"`
}

// GlassDiscrepancyReport 生产订单的到货差异明细
type GlassDiscrepancyReport struct {
	OrderNumber    string                     `json:"order_number"`
	OrderedTotal   int                        `json:"ordered_total"`
	DeliveredTotal int                        `json:"delivered_total"`
	Dimensions     []DimensionDiscrepancy     `json:"dimensions"`
	UnmatchedPanes []models.GlassDeliveryItem `json:"unmatched_panes"`
	OpenIssueCount int64                      `json:"open_issue_count"`
	FullyDelivered bool                       `json:"fully_delivered"`
}

// ListUnresolved 未处理问题列表
func (s *GlassValidationService) ListUnresolved(filter repository.GlassValidationListFilter) ([]models.GlassOrderValidation, int64, error) {
	unresolved := false
	filter.Resolved = &unresolved
	items, total, err := s.validationRepo.List(filter)
	if err != nil {
		return nil, 0, wrapGlassStorageError(err)
	}
	return items, total, nil
}

// List 问题列表（含已处理）
func (s *GlassValidationService) List(filter repository.GlassValidationListFilter) ([]models.GlassOrderValidation, int64, error) {
	items, total, err := s.validationRepo.List(filter)
	if err != nil {
		return nil, 0, wrapGlassStorageError(err)
	}
	return items, total, nil
}

// ListByOrderNumber 指定生产订单的全部问题
func (s *GlassValidationService) ListByOrderNumber(orderNumber string) ([]models.GlassOrderValidation, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return []models.GlassOrderValidation{}, nil
	}
	items, _, err := s.validationRepo.List(repository.GlassValidationListFilter{OrderNumber: orderNumber})
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	return items, nil
}

// Dashboard 按级别与类型统计未处理问题
func (s *GlassValidationService) Dashboard() (*GlassValidationDashboard, error) {
	bySeverity, err := s.validationRepo.CountUnresolvedBy("severity")
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	byType, err := s.validationRepo.CountUnresolvedBy("validation_type")
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	recent, _, err := s.ListUnresolved(repository.GlassValidationListFilter{
		Page:     1,
		PageSize: constants.DashboardRecentIssueSize,
	})
	if err != nil {
		return nil, err
	}
	dashboard := &GlassValidationDashboard{
		BySeverity: map[string]int64{
			constants.SeverityWarning: 0,
			constants.SeverityError:   0,
		},
		ByType: make(map[string]int64, len(byType)),
		Recent: recent,
	}
	for _, row := range bySeverity {
		dashboard.BySeverity[row.GroupKey] = row.Total
		dashboard.TotalUnresolved += row.Total
	}
	for _, row := range byType {
		dashboard.ByType[row.GroupKey] = row.Total
	}
	return dashboard, nil
}

// Resolve 人工标记问题已处理
func (s *GlassValidationService) Resolve(ctx context.Context, id uint, resolvedBy, notes string) (*models.GlassOrderValidation, error) {
	if id == 0 {
		return nil, ErrValidationNotFound
	}
	validation, err := s.validationRepo.GetByID(id)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	if validation == nil {
		return nil, ErrValidationNotFound
	}
	if validation.Resolved {
		return nil, ErrValidationResolved
	}
	resolvedBy = strings.TrimSpace(resolvedBy)
	if resolvedBy == "" {
		resolvedBy = "operator"
	}
	now := time.Now()
	affected, err := s.validationRepo.Resolve(id, resolvedBy, strings.TrimSpace(notes), now)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	if affected == 0 {
		return nil, ErrValidationResolved
	}
	if validation.GlassOrderID != nil {
		invalidateGlassSummaries(ctx, []uint{*validation.GlassOrderID})
	}
	validation.Resolved = true
	validation.ResolvedAt = &now
	validation.ResolvedBy = resolvedBy
	validation.ResolveNotes = strings.TrimSpace(notes)
	return validation, nil
}

// DetailedDiscrepancies 按尺寸对比生产订单的订购与到货
func (s *GlassValidationService) DetailedDiscrepancies(orderNumber string) (*GlassDiscrepancyReport, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, ErrGlassImportInvalid
	}
	ordered, err := s.orderRepo.ListItemsByOrderNumber(orderNumber)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	delivered, err := s.deliveryRepo.ListItemsByOrderNumber(orderNumber)
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}

	groups := make(map[string]*DimensionDiscrepancy)
	group := func(widthMM, heightMM int) *DimensionDiscrepancy {
		key := dimensionKey(widthMM, heightMM)
		if g, ok := groups[key]; ok {
			return g
		}
		g := &DimensionDiscrepancy{
			Dimensions:         key,
			WidthMM:            widthMM,
			HeightMM:           heightMM,
			OrderedPositions:   []string{},
			DeliveredPositions: []string{},
		}
		groups[key] = g
		return g
	}

	report := &GlassDiscrepancyReport{
		OrderNumber:    orderNumber,
		UnmatchedPanes: []models.GlassDeliveryItem{},
	}
	for _, item := range ordered {
		g := group(item.WidthMM, item.HeightMM)
		g.OrderedQuantity += item.Quantity
		if item.Position != "" {
			g.OrderedPositions = append(g.OrderedPositions, item.Position)
		}
		report.OrderedTotal += item.Quantity
	}
	for _, pane := range delivered {
		if !countsTowardDelivery(pane.MatchStatus) {
			if pane.MatchStatus == constants.MatchStatusUnmatched {
				report.UnmatchedPanes = append(report.UnmatchedPanes, pane)
			}
			continue
		}
		g := group(pane.WidthMM, pane.HeightMM)
		g.DeliveredQuantity += pane.Quantity
		if pane.Position != "" {
			g.DeliveredPositions = append(g.DeliveredPositions, pane.Position)
		}
		report.DeliveredTotal += pane.Quantity
	}

	report.Dimensions = make([]DimensionDiscrepancy, 0, len(groups))
	report.FullyDelivered = len(groups) > 0
	for _, g := range groups {
		g.Status = calcDiscrepancyStatus(g.OrderedQuantity, g.DeliveredQuantity)
		if g.Status != constants.DiscrepancyComplete {
			report.FullyDelivered = false
		}
		report.Dimensions = append(report.Dimensions, *g)
	}
	sort.Slice(report.Dimensions, func(i, j int) bool {
		a, b := report.Dimensions[i], report.Dimensions[j]
		if a.WidthMM != b.WidthMM {
			return a.WidthMM < b.WidthMM
		}
		return a.HeightMM < b.HeightMM
	})

	unresolved := false
	_, open, err := s.validationRepo.List(repository.GlassValidationListFilter{
		OrderNumber: orderNumber,
		Resolved:    &unresolved,
		Page:        1,
		PageSize:    1,
	})
	if err != nil {
		return nil, wrapGlassStorageError(err)
	}
	report.OpenIssueCount = open
	return report, nil
}
