package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/glassline/internal/models"

	"gorm.io/gorm"
)

// GlassOrderRepository 玻璃采购批次数据访问接口
type GlassOrderRepository interface {
	Create(order *models.GlassOrder) error
	GetByID(id uint) (*models.GlassOrder, error)
	GetByNumber(glassOrderNumber string) (*models.GlassOrder, error)
	List(filter GlassOrderListFilter) ([]models.GlassOrder, int64, error)
	UpdateStatus(id uint, status string) error
	SoftDelete(id uint) error
	SumQuantityByOrderNumber(glassOrderID uint) ([]OrderNumberQuantity, error)
	ListCandidateItems(orderNumbers []string) ([]models.GlassOrderItem, error)
	ListItemsByOrderNumber(orderNumber string) ([]models.GlassOrderItem, error)
	WithTx(tx *gorm.DB) *GormGlassOrderRepository
}

// GormGlassOrderRepository GORM 实现
type GormGlassOrderRepository struct {
	db *gorm.DB
}

// NewGlassOrderRepository 创建玻璃采购批次仓库
func NewGlassOrderRepository(db *gorm.DB) *GormGlassOrderRepository {
	return &GormGlassOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGlassOrderRepository) WithTx(tx *gorm.DB) *GormGlassOrderRepository {
	if tx == nil {
		return r
	}
	return &GormGlassOrderRepository{db: tx}
}

// Create 创建批次及其明细
func (r *GormGlassOrderRepository) Create(order *models.GlassOrder) error {
	if order == nil {
		return errors.New("invalid glass order")
	}
	return r.db.Create(order).Error
}

// GetByID 获取批次（含明细，按插入顺序）
func (r *GormGlassOrderRepository) GetByID(id uint) (*models.GlassOrder, error) {
	if id == 0 {
		return nil, errors.New("invalid glass order id")
	}
	var order models.GlassOrder
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByNumber 按批次号获取未删除的批次
func (r *GormGlassOrderRepository) GetByNumber(glassOrderNumber string) (*models.GlassOrder, error) {
	glassOrderNumber = strings.TrimSpace(glassOrderNumber)
	if glassOrderNumber == "" {
		return nil, errors.New("invalid glass order number")
	}
	var order models.GlassOrder
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).Where("glass_order_number = ?", glassOrderNumber).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// List 批次列表
func (r *GormGlassOrderRepository) List(filter GlassOrderListFilter) ([]models.GlassOrder, int64, error) {
	query := r.db.Model(&models.GlassOrder{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if keyword := strings.TrimSpace(filter.GlassOrderNumber); keyword != "" {
		query = query.Where(containsCondition(r.db, "glass_order_number", keyword))
	}
	if keyword := strings.TrimSpace(filter.Supplier); keyword != "" {
		query = query.Where(containsCondition(r.db, "supplier", keyword))
	}
	if orderNumber := strings.TrimSpace(filter.OrderNumber); orderNumber != "" {
		query = query.Where("id IN (?)", r.db.Model(&models.GlassOrderItem{}).
			Select("glass_order_id").
			Where("order_number = ?", orderNumber))
	}
	query = withinDateRange(query, "order_date", filter.OrderedFrom, filter.OrderedTo)
	return findPage[models.GlassOrder](query, filter.Page, filter.PageSize, "order_date desc, id desc")
}

// UpdateStatus 更新批次状态
func (r *GormGlassOrderRepository) UpdateStatus(id uint, status string) error {
	if id == 0 {
		return errors.New("invalid glass order id")
	}
	return r.db.Model(&models.GlassOrder{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}).Error
}

// SoftDelete 软删除批次，批次号随之释放
func (r *GormGlassOrderRepository) SoftDelete(id uint) error {
	if id == 0 {
		return errors.New("invalid glass order id")
	}
	return r.db.Delete(&models.GlassOrder{}, id).Error
}

// SumQuantityByOrderNumber 按生产订单号汇总批次订购数量
func (r *GormGlassOrderRepository) SumQuantityByOrderNumber(glassOrderID uint) ([]OrderNumberQuantity, error) {
	if glassOrderID == 0 {
		return nil, errors.New("invalid glass order id")
	}
	var rows []OrderNumberQuantity
	err := r.db.Model(&models.GlassOrderItem{}).
		Select("order_number, COALESCE(SUM(quantity), 0) AS quantity").
		Where("glass_order_id = ?", glassOrderID).
		Group("order_number").
		Order("order_number asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCandidateItems 获取未删除批次中指定生产订单的订购明细，按插入顺序
func (r *GormGlassOrderRepository) ListCandidateItems(orderNumbers []string) ([]models.GlassOrderItem, error) {
	if len(orderNumbers) == 0 {
		return []models.GlassOrderItem{}, nil
	}
	var items []models.GlassOrderItem
	err := r.db.Model(&models.GlassOrderItem{}).
		Joins("JOIN glass_orders ON glass_orders.id = glass_order_items.glass_order_id AND glass_orders.deleted_at IS NULL").
		Where("glass_order_items.order_number IN ?", orderNumbers).
		Order("glass_order_items.id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListItemsByOrderNumber 获取指定生产订单在未删除批次中的订购明细
func (r *GormGlassOrderRepository) ListItemsByOrderNumber(orderNumber string) ([]models.GlassOrderItem, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, errors.New("invalid order number")
	}
	return r.ListCandidateItems([]string{orderNumber})
}
