package models

import (
	"time"

	"gorm.io/gorm"
)

// GlassOrder 玻璃采购批次（供应商订单）
type GlassOrder struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                                                                 // 主键
	GlassOrderNumber     string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_glass_orders_number_live,where:deleted_at IS NULL" json:"glass_order_number"` // 批次号（仅在未删除批次中唯一）
	OrderDate            time.Time      `gorm:"not null" json:"order_date"`                                                                           // 下单日期
	Supplier             string         `gorm:"type:varchar(255);not null" json:"supplier"`                                                           // 供应商
	OrderedBy            string         `gorm:"type:varchar(255)" json:"ordered_by,omitempty"`                                                        // 下单人
	ExpectedDeliveryDate *time.Time     `gorm:"index" json:"expected_delivery_date"`                                                                  // 预计到货日期
	Status               string         `gorm:"type:varchar(32);index;not null" json:"status"`                                                        // 批次状态
	Notes                string         `gorm:"type:text" json:"notes,omitempty"`                                                                     // 备注
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                                                                              // 创建时间
	UpdatedAt            time.Time      `json:"updated_at"`                                                                                           // 更新时间
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`                                                                                       // 软删除时间

	Items []GlassOrderItem `gorm:"foreignKey:GlassOrderID" json:"items,omitempty"` // 订购明细
}

// TableName 指定表名
func (GlassOrder) TableName() string {
	return "glass_orders"
}

// GlassOrderItem 订购玻璃明细
type GlassOrderItem struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                  // 主键
	GlassOrderID uint      `gorm:"index;not null" json:"glass_order_id"`                  // 所属批次
	OrderNumber  string    `gorm:"type:varchar(64);index;not null" json:"order_number"`   // 生产订单号
	OrderSuffix  *string   `gorm:"type:varchar(16)" json:"order_suffix"`                  // 订单后缀（变体）
	Position     string    `gorm:"type:varchar(32)" json:"position"`                      // 位置
	GlassType    string    `gorm:"type:varchar(255)" json:"glass_type,omitempty"`         // 玻璃类型
	WidthMM      int       `gorm:"column:width_mm;not null" json:"width_mm"`              // 宽度（毫米）
	HeightMM     int       `gorm:"column:height_mm;not null" json:"height_mm"`            // 高度（毫米）
	Quantity     int       `gorm:"not null" json:"quantity"`                              // 数量
	AreaM2       Area      `gorm:"column:area_m2;type:decimal(20,4);not null;default:0" json:"area_m2"` // 面积
	CreatedAt    time.Time `json:"created_at"`                                            // 创建时间
}

// TableName 指定表名
func (GlassOrderItem) TableName() string {
	return "glass_order_items"
}
