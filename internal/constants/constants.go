package constants

// 生产订单玻璃履约状态常量
const (
	GlassStatusNotOrdered         = "not_ordered"
	GlassStatusOrdered            = "ordered"
	GlassStatusPartiallyDelivered = "partially_delivered"
	GlassStatusDelivered          = "delivered"
	GlassStatusOverDelivered      = "over_delivered"
)

// 玻璃采购批次状态常量
const (
	GlassOrderStatusOrdered            = "ordered"
	GlassOrderStatusPartiallyDelivered = "partially_delivered"
	GlassOrderStatusDelivered          = "delivered"
	GlassOrderStatusCancelled          = "cancelled"
)

// 到货玻璃匹配状态常量
const (
	MatchStatusPending   = "pending"
	MatchStatusMatched   = "matched"
	MatchStatusConflict  = "conflict"
	MatchStatusUnmatched = "unmatched"
)

// 校验问题类型常量
const (
	ValidationTypeSuffixMismatch         = "suffix_mismatch"
	ValidationTypeMissingProductionOrder = "missing_production_order"
	ValidationTypeUnmatchedDelivery      = "unmatched_delivery"
)

// 校验问题级别常量
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// 尺寸差异状态常量
const (
	DiscrepancyComplete = "complete"
	DiscrepancyPartial  = "partial"
	DiscrepancyMissing  = "missing"
	DiscrepancyExcess   = "excess"
)

// 匹配任务类型常量
const (
	MatchingJobGlassOrder    = "glass_order_matching"
	MatchingJobGlassDelivery = "glass_delivery_matching"
	MatchingJobOrderRematch  = "order_rematch"
)

// 匹配任务优先级常量，数值越小越先执行
const (
	MatchingPriorityHigh   = 1
	MatchingPriorityNormal = 5
	MatchingPriorityLow    = 10
)

// 队列常量
const (
	QueueDefault      = "default"
	QueueMatching     = "matching"
	TaskGlassRematch  = "glass:rematch"
	RematchSourceAPI  = "api"
	RematchSourceAuto = "auto"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault       = "gl"
	CacheKeyGlassSummary     = "glass:summary:%d"
	LockKeyGlassImport       = "lock:glass_import"
	DashboardRecentIssueSize = 100
)
