package models

import (
	"time"

	"gorm.io/gorm"
)

// GlassDelivery 玻璃到货批次
type GlassDelivery struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                      // 主键
	RackNumber          string         `gorm:"type:varchar(64);index" json:"rack_number"`                 // 货架号
	CustomerOrderNumber string         `gorm:"type:varchar(100);index" json:"customer_order_number"`      // 客户订单号
	SupplierOrderNumber string         `gorm:"type:varchar(100)" json:"supplier_order_number,omitempty"`  // 供应商订单号
	DeliveryDate        time.Time      `gorm:"index;not null" json:"delivery_date"`                       // 到货日期
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt           time.Time      `json:"updated_at"`                                                // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	Items []GlassDeliveryItem `gorm:"foreignKey:GlassDeliveryID" json:"items,omitempty"` // 到货明细
}

// TableName 指定表名
func (GlassDelivery) TableName() string {
	return "glass_deliveries"
}

// GlassDeliveryItem 到货玻璃明细
type GlassDeliveryItem struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                       // 主键
	GlassDeliveryID  uint      `gorm:"index;not null" json:"glass_delivery_id"`                    // 所属到货批次
	OrderNumber      string    `gorm:"type:varchar(64);index;not null" json:"order_number"`        // 生产订单号
	OrderSuffix      *string   `gorm:"type:varchar(16)" json:"order_suffix"`                       // 订单后缀
	Position         string    `gorm:"type:varchar(32)" json:"position"`                           // 位置
	WidthMM          int       `gorm:"column:width_mm;not null" json:"width_mm"`                   // 宽度（毫米）
	HeightMM         int       `gorm:"column:height_mm;not null" json:"height_mm"`                 // 高度（毫米）
	Quantity         int       `gorm:"not null" json:"quantity"`                                   // 数量
	GlassComposition string    `gorm:"type:varchar(255)" json:"glass_composition,omitempty"`       // 玻璃构成
	SerialNumber     string    `gorm:"type:varchar(100)" json:"serial_number,omitempty"`           // 序列号
	MatchStatus      string    `gorm:"type:varchar(16);index;not null;default:pending" json:"match_status"` // 匹配状态
	MatchedItemID    *uint     `gorm:"index" json:"matched_item_id"`                               // 匹配到的订购明细
	GlassOrderID     *uint     `gorm:"index" json:"glass_order_id"`                                // 匹配到的采购批次
	CreatedAt        time.Time `json:"created_at"`                                                 // 创建时间
	UpdatedAt        time.Time `json:"updated_at"`                                                 // 更新时间
}

// TableName 指定表名
func (GlassDeliveryItem) TableName() string {
	return "glass_delivery_items"
}

