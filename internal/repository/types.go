package repository

import "time"

// ProductionOrderListFilter 查询生产订单列表的过滤条件
type ProductionOrderListFilter struct {
	Page             int
	PageSize         int
	OrderNumber      string
	GlassOrderStatus string
}

// GlassOrderListFilter 查询玻璃采购批次列表的过滤条件
type GlassOrderListFilter struct {
	Page             int
	PageSize         int
	Status           string
	GlassOrderNumber string
	OrderNumber      string
	Supplier         string
	OrderedFrom      *time.Time
	OrderedTo        *time.Time
}

// GlassDeliveryListFilter 查询玻璃到货批次列表的过滤条件
type GlassDeliveryListFilter struct {
	Page                int
	PageSize            int
	RackNumber          string
	CustomerOrderNumber string
	DeliveredFrom       *time.Time
	DeliveredTo         *time.Time
}

// GlassValidationListFilter 查询校验问题列表的过滤条件
type GlassValidationListFilter struct {
	Page            int
	PageSize        int
	OrderNumber     string
	ValidationType  string
	Severity        string
	GlassOrderID    uint
	GlassDeliveryID uint
	Dimensions      string
	Resolved        *bool
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// OrderNumberQuantity 按生产订单号汇总的数量
type OrderNumberQuantity struct {
	OrderNumber string
	Quantity    int
}

// MatchStatusCount 按匹配状态汇总的数量
type MatchStatusCount struct {
	MatchStatus string
	Items       int64
	Quantity    int
}

// ValidationGroupCount 校验问题分组计数
type ValidationGroupCount struct {
	GroupKey string
	Total    int64
}
