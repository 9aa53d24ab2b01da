package models

import (
	"time"
)

// ProductionOrder 生产订单（仅包含玻璃履约相关字段，其余字段由订单管理模块维护）
type ProductionOrder struct {
	ID                  uint       `gorm:"primarykey" json:"id"`                                                 // 主键
	OrderNumber         string     `gorm:"uniqueIndex;not null" json:"order_number"`                             // 生产订单号
	Client              string     `gorm:"type:varchar(255)" json:"client,omitempty"`                            // 客户
	Project             string     `gorm:"type:varchar(255)" json:"project,omitempty"`                           // 项目
	Status              string     `gorm:"type:varchar(32);index" json:"status,omitempty"`                       // 生产状态
	OrderedGlassCount   int        `gorm:"not null;default:0" json:"ordered_glass_count"`                        // 已订购玻璃数量
	DeliveredGlassCount int        `gorm:"not null;default:0" json:"delivered_glass_count"`                      // 已到货玻璃数量
	GlassOrderStatus    string     `gorm:"type:varchar(32);index;not null;default:not_ordered" json:"glass_order_status"` // 玻璃履约状态
	GlassDeliveryDate   *time.Time `json:"glass_delivery_date"`                                                  // 预计玻璃到货日期
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`                                              // 创建时间
	UpdatedAt           time.Time  `gorm:"index" json:"updated_at"`                                              // 更新时间
}

// TableName 指定表名
func (ProductionOrder) TableName() string {
	return "production_orders"
}
