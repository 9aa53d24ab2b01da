package models

import (
	"time"

	"gorm.io/datatypes"
)

// GlassOrderValidation 玻璃校验问题记录
type GlassOrderValidation struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                   // 主键
	GlassOrderID        *uint          `gorm:"index" json:"glass_order_id"`                            // 关联采购批次
	GlassDeliveryID     *uint          `gorm:"index" json:"glass_delivery_id"`                         // 关联到货批次
	GlassDeliveryItemID *uint          `gorm:"index" json:"glass_delivery_item_id"`                    // 关联到货明细
	OrderNumber         string         `gorm:"type:varchar(64);index;not null" json:"order_number"`    // 生产订单号
	ValidationType      string         `gorm:"type:varchar(48);index;not null" json:"validation_type"` // 问题类型
	Severity            string         `gorm:"type:varchar(16);index;not null" json:"severity"`        // 级别
	Message             string         `gorm:"type:text;not null" json:"message"`                      // 描述
	Details             datatypes.JSON `gorm:"type:json" json:"details,omitempty"`                     // 详情
	OrderedQuantity     *int           `json:"ordered_quantity,omitempty"`                             // 订购数量
	DeliveredQuantity   *int           `json:"delivered_quantity,omitempty"`                           // 到货数量
	Resolved            bool           `gorm:"index;not null;default:false" json:"resolved"`           // 是否已处理
	ResolvedAt          *time.Time     `json:"resolved_at"`                                            // 处理时间
	ResolvedBy          string         `gorm:"type:varchar(100)" json:"resolved_by,omitempty"`         // 处理人
	ResolveNotes        string         `gorm:"type:text" json:"resolve_notes,omitempty"`               // 处理备注
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt           time.Time      `json:"updated_at"`                                             // 更新时间
}

// TableName 指定表名
func (GlassOrderValidation) TableName() string {
	return "glass_order_validations"
}
