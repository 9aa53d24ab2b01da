package shared

// 错误消息目录，按 key 查找
var messages = map[string]string{
	"error.bad_request":              "invalid request",
	"error.id_invalid":               "invalid id",
	"error.import_invalid":           "invalid import payload",
	"error.import_locked":            "another import is in progress, please retry later",
	"error.import_failed":            "import failed",
	"error.glass_order_not_found":    "glass order not found",
	"error.glass_order_exists":       "glass order number already imported",
	"error.glass_order_status":       "invalid glass order status",
	"error.glass_delivery_not_found": "glass delivery not found",
	"error.validation_not_found":     "validation issue not found",
	"error.validation_resolved":      "validation issue already resolved",
	"error.rematch_invalid":          "order numbers required",
	"error.transaction_timeout":      "transaction timed out, nothing was written",
	"error.storage_failed":           "storage failure, nothing was written",
	"error.fetch_failed":             "query failed",
	"error.queue_unavailable":        "matching queue is not running in this process",
	"error.rate_limited":             "too many requests, retry in %d seconds",
	"error.rate_limit_unavailable":   "rate limit backend unavailable",
	"error.internal":                 "internal error",
}

// Message 按 key 取消息，未登记时原样返回 key
func Message(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}
