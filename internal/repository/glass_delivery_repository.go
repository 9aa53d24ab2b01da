package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/glassline/internal/models"

	"gorm.io/gorm"
)

// 计入到货数量的匹配状态
var countedMatchStatuses = []string{"matched", "conflict"}

const liveDeliveryJoin = "JOIN glass_deliveries ON glass_deliveries.id = glass_delivery_items.glass_delivery_id AND glass_deliveries.deleted_at IS NULL"

// GlassDeliveryRepository 玻璃到货数据访问接口
type GlassDeliveryRepository interface {
	Create(delivery *models.GlassDelivery) error
	GetByID(id uint) (*models.GlassDelivery, error)
	GetLatest() (*models.GlassDelivery, error)
	List(filter GlassDeliveryListFilter) ([]models.GlassDelivery, int64, error)
	SoftDelete(id uint) error
	UpdateItemMatch(itemID uint, matchStatus string, matchedItemID, glassOrderID *uint) error
	ListUnmatchedByOrderNumbers(orderNumbers []string) ([]models.GlassDeliveryItem, error)
	ListItemsByOrderNumber(orderNumber string) ([]models.GlassDeliveryItem, error)
	ListCountedByGlassOrder(glassOrderID uint) ([]models.GlassDeliveryItem, error)
	SumCountedQuantityByOrderNumber(deliveryID uint) ([]OrderNumberQuantity, error)
	CountByMatchStatus(deliveryID uint) ([]MatchStatusCount, error)
	WithTx(tx *gorm.DB) *GormGlassDeliveryRepository
}

// GormGlassDeliveryRepository GORM 实现
type GormGlassDeliveryRepository struct {
	db *gorm.DB
}

// NewGlassDeliveryRepository 创建玻璃到货仓库
func NewGlassDeliveryRepository(db *gorm.DB) *GormGlassDeliveryRepository {
	return &GormGlassDeliveryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGlassDeliveryRepository) WithTx(tx *gorm.DB) *GormGlassDeliveryRepository {
	if tx == nil {
		return r
	}
	return &GormGlassDeliveryRepository{db: tx}
}

// Create 创建到货批次及其明细
func (r *GormGlassDeliveryRepository) Create(delivery *models.GlassDelivery) error {
	if delivery == nil {
		return errors.New("invalid glass delivery")
	}
	return r.db.Create(delivery).Error
}

// GetByID 获取到货批次（含明细）
func (r *GormGlassDeliveryRepository) GetByID(id uint) (*models.GlassDelivery, error) {
	if id == 0 {
		return nil, errors.New("invalid glass delivery id")
	}
	var delivery models.GlassDelivery
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).First(&delivery, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// GetLatest 获取最近导入的到货批次
func (r *GormGlassDeliveryRepository) GetLatest() (*models.GlassDelivery, error) {
	var delivery models.GlassDelivery
	err := r.db.Order("created_at desc, id desc").First(&delivery).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// List 到货批次列表
func (r *GormGlassDeliveryRepository) List(filter GlassDeliveryListFilter) ([]models.GlassDelivery, int64, error) {
	query := r.db.Model(&models.GlassDelivery{})
	if keyword := strings.TrimSpace(filter.RackNumber); keyword != "" {
		query = query.Where(containsCondition(r.db, "rack_number", keyword))
	}
	if keyword := strings.TrimSpace(filter.CustomerOrderNumber); keyword != "" {
		query = query.Where(containsCondition(r.db, "customer_order_number", keyword))
	}
	query = withinDateRange(query, "delivery_date", filter.DeliveredFrom, filter.DeliveredTo)
	return findPage[models.GlassDelivery](query, filter.Page, filter.PageSize, "delivery_date desc, id desc")
}

// SoftDelete 软删除到货批次
func (r *GormGlassDeliveryRepository) SoftDelete(id uint) error {
	if id == 0 {
		return errors.New("invalid glass delivery id")
	}
	return r.db.Delete(&models.GlassDelivery{}, id).Error
}

// UpdateItemMatch 写入匹配结果
func (r *GormGlassDeliveryRepository) UpdateItemMatch(itemID uint, matchStatus string, matchedItemID, glassOrderID *uint) error {
	if itemID == 0 {
		return errors.New("invalid glass delivery item id")
	}
	return r.db.Model(&models.GlassDeliveryItem{}).Where("id = ?", itemID).Updates(map[string]interface{}{
		"match_status":    matchStatus,
		"matched_item_id": matchedItemID,
		"glass_order_id":  glassOrderID,
		"updated_at":      time.Now(),
	}).Error
}

// ListUnmatchedByOrderNumbers 获取未匹配的到货明细（仅未删除批次）
func (r *GormGlassDeliveryRepository) ListUnmatchedByOrderNumbers(orderNumbers []string) ([]models.GlassDeliveryItem, error) {
	if len(orderNumbers) == 0 {
		return []models.GlassDeliveryItem{}, nil
	}
	var items []models.GlassDeliveryItem
	err := r.db.Model(&models.GlassDeliveryItem{}).
		Joins(liveDeliveryJoin).
		Where("glass_delivery_items.order_number IN ?", orderNumbers).
		Where("glass_delivery_items.match_status = ?", "unmatched").
		Order("glass_delivery_items.id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListItemsByOrderNumber 获取生产订单的全部到货明细
func (r *GormGlassDeliveryRepository) ListItemsByOrderNumber(orderNumber string) ([]models.GlassDeliveryItem, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, errors.New("invalid order number")
	}
	var items []models.GlassDeliveryItem
	err := r.db.Model(&models.GlassDeliveryItem{}).
		Joins(liveDeliveryJoin).
		Where("glass_delivery_items.order_number = ?", orderNumber).
		Order("glass_delivery_items.id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListCountedByGlassOrder 获取绑定到指定采购批次且计入到货的明细
func (r *GormGlassDeliveryRepository) ListCountedByGlassOrder(glassOrderID uint) ([]models.GlassDeliveryItem, error) {
	if glassOrderID == 0 {
		return nil, errors.New("invalid glass order id")
	}
	var items []models.GlassDeliveryItem
	err := r.db.Model(&models.GlassDeliveryItem{}).
		Joins(liveDeliveryJoin).
		Where("glass_delivery_items.glass_order_id = ?", glassOrderID).
		Where("glass_delivery_items.match_status IN ?", countedMatchStatuses).
		Order("glass_delivery_items.id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SumCountedQuantityByOrderNumber 按生产订单号汇总到货批次中计入的数量
func (r *GormGlassDeliveryRepository) SumCountedQuantityByOrderNumber(deliveryID uint) ([]OrderNumberQuantity, error) {
	if deliveryID == 0 {
		return nil, errors.New("invalid glass delivery id")
	}
	var rows []OrderNumberQuantity
	err := r.db.Model(&models.GlassDeliveryItem{}).
		Select("order_number, COALESCE(SUM(quantity), 0) AS quantity").
		Where("glass_delivery_id = ?", deliveryID).
		Where("match_status IN ?", countedMatchStatuses).
		Group("order_number").
		Order("order_number asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByMatchStatus 按匹配状态统计到货批次明细
func (r *GormGlassDeliveryRepository) CountByMatchStatus(deliveryID uint) ([]MatchStatusCount, error) {
	if deliveryID == 0 {
		return nil, errors.New("invalid glass delivery id")
	}
	var rows []MatchStatusCount
	err := r.db.Model(&models.GlassDeliveryItem{}).
		Select("match_status, COUNT(*) AS items, COALESCE(SUM(quantity), 0) AS quantity").
		Where("glass_delivery_id = ?", deliveryID).
		Group("match_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
