package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glassline/internal/models"

	"gorm.io/gorm"
)

// ProductionOrderRepository 生产订单数据访问接口
type ProductionOrderRepository interface {
	Create(order *models.ProductionOrder) error
	GetByID(id uint) (*models.ProductionOrder, error)
	GetByOrderNumber(orderNumber string) (*models.ProductionOrder, error)
	FindByOrderNumbers(orderNumbers []string) ([]models.ProductionOrder, error)
	List(filter ProductionOrderListFilter) ([]models.ProductionOrder, int64, error)
	AdjustOrderedCount(orderNumber string, delta int) (int64, error)
	AdjustDeliveredCount(orderNumber string, delta int) (int64, error)
	SetGlassDeliveryDateIfEmpty(orderNumbers []string, date time.Time) (int64, error)
	UpdateGlassStatus(orderNumber, status string) error
	WithTx(tx *gorm.DB) *GormProductionOrderRepository
}

// GormProductionOrderRepository GORM 实现
type GormProductionOrderRepository struct {
	db *gorm.DB
}

// NewProductionOrderRepository 创建生产订单仓库
func NewProductionOrderRepository(db *gorm.DB) *GormProductionOrderRepository {
	return &GormProductionOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductionOrderRepository) WithTx(tx *gorm.DB) *GormProductionOrderRepository {
	if tx == nil {
		return r
	}
	return &GormProductionOrderRepository{db: tx}
}

// Create 创建生产订单
func (r *GormProductionOrderRepository) Create(order *models.ProductionOrder) error {
	if order == nil {
		return errors.New("invalid production order")
	}
	return r.db.Create(order).Error
}

// GetByID 根据 ID 获取生产订单
func (r *GormProductionOrderRepository) GetByID(id uint) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	if err := r.db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNumber 根据订单号获取生产订单
func (r *GormProductionOrderRepository) GetByOrderNumber(orderNumber string) (*models.ProductionOrder, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, errors.New("invalid order number")
	}
	var order models.ProductionOrder
	if err := r.db.Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// FindByOrderNumbers 批量获取生产订单
func (r *GormProductionOrderRepository) FindByOrderNumbers(orderNumbers []string) ([]models.ProductionOrder, error) {
	if len(orderNumbers) == 0 {
		return []models.ProductionOrder{}, nil
	}
	var orders []models.ProductionOrder
	if err := r.db.Where("order_number IN ?", orderNumbers).Order("id asc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// List 生产订单列表
func (r *GormProductionOrderRepository) List(filter ProductionOrderListFilter) ([]models.ProductionOrder, int64, error) {
	query := r.db.Model(&models.ProductionOrder{})
	if filter.GlassOrderStatus != "" {
		query = query.Where("glass_order_status = ?", filter.GlassOrderStatus)
	}
	if keyword := strings.TrimSpace(filter.OrderNumber); keyword != "" {
		query = query.Where(containsCondition(r.db, "order_number", keyword))
	}
	return findPage[models.ProductionOrder](query, filter.Page, filter.PageSize, "id desc")
}

// AdjustOrderedCount 相对调整已订购数量（结果不小于 0）
func (r *GormProductionOrderRepository) AdjustOrderedCount(orderNumber string, delta int) (int64, error) {
	return r.adjustCounter("ordered_glass_count", orderNumber, delta)
}

// AdjustDeliveredCount 相对调整已到货数量（结果不小于 0）
func (r *GormProductionOrderRepository) AdjustDeliveredCount(orderNumber string, delta int) (int64, error) {
	return r.adjustCounter("delivered_glass_count", orderNumber, delta)
}

func (r *GormProductionOrderRepository) adjustCounter(column, orderNumber string, delta int) (int64, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return 0, errors.New("invalid order number")
	}
	if delta == 0 {
		return 0, nil
	}
	expr := gorm.Expr(fmt.Sprintf("CASE WHEN %s + ? < 0 THEN 0 ELSE %s + ? END", column, column), delta, delta)
	result := r.db.Model(&models.ProductionOrder{}).
		Where("order_number = ?", orderNumber).
		UpdateColumns(map[string]interface{}{
			column:       expr,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SetGlassDeliveryDateIfEmpty 仅为尚未记录到货日期的订单写入日期
func (r *GormProductionOrderRepository) SetGlassDeliveryDateIfEmpty(orderNumbers []string, date time.Time) (int64, error) {
	if len(orderNumbers) == 0 || date.IsZero() {
		return 0, nil
	}
	result := r.db.Model(&models.ProductionOrder{}).
		Where("order_number IN ? AND glass_delivery_date IS NULL", orderNumbers).
		UpdateColumns(map[string]interface{}{
			"glass_delivery_date": date,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UpdateGlassStatus 更新玻璃履约状态
func (r *GormProductionOrderRepository) UpdateGlassStatus(orderNumber, status string) error {
	if strings.TrimSpace(orderNumber) == "" {
		return errors.New("invalid order number")
	}
	return r.db.Model(&models.ProductionOrder{}).
		Where("order_number = ?", orderNumber).
		UpdateColumns(map[string]interface{}{
			"glass_order_status": status,
			"updated_at":         time.Now(),
		}).Error
}
