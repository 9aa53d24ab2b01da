package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/glassline/internal/models"

	"gorm.io/gorm"
)

// GlassValidationRepository 校验问题数据访问接口
type GlassValidationRepository interface {
	Create(validation *models.GlassOrderValidation) error
	CreateBatch(validations []models.GlassOrderValidation) error
	GetByID(id uint) (*models.GlassOrderValidation, error)
	List(filter GlassValidationListFilter) ([]models.GlassOrderValidation, int64, error)
	Resolve(id uint, resolvedBy, notes string, resolvedAt time.Time) (int64, error)
	ResolveOpenUnmatched(deliveryItemID uint, resolvedBy string, resolvedAt time.Time) (int64, error)
	ResolveOpenByGlassOrder(glassOrderID uint, resolvedBy string, resolvedAt time.Time) (int64, error)
	ResolveOpenByGlassDelivery(glassDeliveryID uint, resolvedBy string, resolvedAt time.Time) (int64, error)
	CountUnresolvedBy(column string) ([]ValidationGroupCount, error)
	ListOpenOrderNumbers(glassOrderID uint, validationType string) ([]string, error)
	WithTx(tx *gorm.DB) *GormGlassValidationRepository
}

// GormGlassValidationRepository GORM 实现
type GormGlassValidationRepository struct {
	db *gorm.DB
}

// NewGlassValidationRepository 创建校验问题仓库
func NewGlassValidationRepository(db *gorm.DB) *GormGlassValidationRepository {
	return &GormGlassValidationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGlassValidationRepository) WithTx(tx *gorm.DB) *GormGlassValidationRepository {
	if tx == nil {
		return r
	}
	return &GormGlassValidationRepository{db: tx}
}

// Create 创建校验问题
func (r *GormGlassValidationRepository) Create(validation *models.GlassOrderValidation) error {
	if validation == nil {
		return errors.New("invalid validation")
	}
	return r.db.Create(validation).Error
}

// CreateBatch 批量创建校验问题
func (r *GormGlassValidationRepository) CreateBatch(validations []models.GlassOrderValidation) error {
	if len(validations) == 0 {
		return nil
	}
	return r.db.Create(&validations).Error
}

// GetByID 获取校验问题
func (r *GormGlassValidationRepository) GetByID(id uint) (*models.GlassOrderValidation, error) {
	if id == 0 {
		return nil, errors.New("invalid validation id")
	}
	var validation models.GlassOrderValidation
	if err := r.db.First(&validation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &validation, nil
}

// List 校验问题列表，按创建时间倒序
func (r *GormGlassValidationRepository) List(filter GlassValidationListFilter) ([]models.GlassOrderValidation, int64, error) {
	query := r.db.Model(&models.GlassOrderValidation{})
	if orderNumber := strings.TrimSpace(filter.OrderNumber); orderNumber != "" {
		query = query.Where("order_number = ?", orderNumber)
	}
	if filter.ValidationType != "" {
		query = query.Where("validation_type = ?", filter.ValidationType)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.GlassOrderID != 0 {
		query = query.Where("glass_order_id = ?", filter.GlassOrderID)
	}
	if filter.GlassDeliveryID != 0 {
		query = query.Where("glass_delivery_id = ?", filter.GlassDeliveryID)
	}
	if dimensions := strings.TrimSpace(filter.Dimensions); dimensions != "" {
		query = query.Where(detailsFieldCondition(r.db, "dimensions"), dimensions)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	query = withinDateRange(query, "created_at", filter.CreatedFrom, filter.CreatedTo)
	return findPage[models.GlassOrderValidation](query, filter.Page, filter.PageSize, "created_at desc, id desc")
}

// ListOpenOrderNumbers 采购批次下指定类型未处理问题涉及的生产订单号
func (r *GormGlassValidationRepository) ListOpenOrderNumbers(glassOrderID uint, validationType string) ([]string, error) {
	var numbers []string
	err := r.db.Model(&models.GlassOrderValidation{}).
		Where("glass_order_id = ? AND validation_type = ? AND resolved = ?", glassOrderID, validationType, false).
		Distinct().
		Pluck("order_number", &numbers).Error
	return numbers, err
}

// Resolve 标记问题已处理
func (r *GormGlassValidationRepository) Resolve(id uint, resolvedBy, notes string, resolvedAt time.Time) (int64, error) {
	if id == 0 {
		return 0, errors.New("invalid validation id")
	}
	result := r.db.Model(&models.GlassOrderValidation{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(resolveColumns(resolvedBy, notes, resolvedAt))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ResolveOpenUnmatched 关闭到货明细遗留的未匹配问题
func (r *GormGlassValidationRepository) ResolveOpenUnmatched(deliveryItemID uint, resolvedBy string, resolvedAt time.Time) (int64, error) {
	if deliveryItemID == 0 {
		return 0, errors.New("invalid glass delivery item id")
	}
	result := r.db.Model(&models.GlassOrderValidation{}).
		Where("glass_delivery_item_id = ? AND validation_type = ? AND resolved = ?", deliveryItemID, "unmatched_delivery", false).
		Updates(resolveColumns(resolvedBy, "", resolvedAt))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ResolveOpenByGlassOrder 关闭采购批次关联的全部未处理问题
func (r *GormGlassValidationRepository) ResolveOpenByGlassOrder(glassOrderID uint, resolvedBy string, resolvedAt time.Time) (int64, error) {
	if glassOrderID == 0 {
		return 0, errors.New("invalid glass order id")
	}
	result := r.db.Model(&models.GlassOrderValidation{}).
		Where("glass_order_id = ? AND resolved = ?", glassOrderID, false).
		Updates(resolveColumns(resolvedBy, "", resolvedAt))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ResolveOpenByGlassDelivery 关闭到货批次关联的全部未处理问题
func (r *GormGlassValidationRepository) ResolveOpenByGlassDelivery(glassDeliveryID uint, resolvedBy string, resolvedAt time.Time) (int64, error) {
	if glassDeliveryID == 0 {
		return 0, errors.New("invalid glass delivery id")
	}
	result := r.db.Model(&models.GlassOrderValidation{}).
		Where("glass_delivery_id = ? AND resolved = ?", glassDeliveryID, false).
		Updates(resolveColumns(resolvedBy, "", resolvedAt))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountUnresolvedBy 按列统计未处理问题（severity / validation_type）
func (r *GormGlassValidationRepository) CountUnresolvedBy(column string) ([]ValidationGroupCount, error) {
	switch column {
	case "severity", "validation_type":
	default:
		return nil, errors.New("invalid group column")
	}
	var rows []ValidationGroupCount
	err := r.db.Model(&models.GlassOrderValidation{}).
		Select(column+" AS group_key, COUNT(*) AS total").
		Where("resolved = ?", false).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func resolveColumns(resolvedBy, notes string, resolvedAt time.Time) map[string]interface{} {
	columns := map[string]interface{}{
		"resolved":    true,
		"resolved_at": resolvedAt,
		"resolved_by": resolvedBy,
		"updated_at":  resolvedAt,
	}
	if notes != "" {
		columns["resolve_notes"] = notes
	}
	return columns
}
