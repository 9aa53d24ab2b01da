package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrGlassOrderNotFound      = errors.New("glass order not found")
	ErrGlassOrderExists        = errors.New("glass order already exists")
	ErrGlassOrderStatusInvalid = errors.New("glass order status invalid")
	ErrGlassDeliveryNotFound   = errors.New("glass delivery not found")
	ErrGlassImportInvalid      = errors.New("glass import invalid")
	ErrTransactionTimeout      = errors.New("glass transaction timeout")
	ErrGlassStorageFailed      = errors.New("glass storage failed")
	ErrValidationNotFound      = errors.New("validation not found")
	ErrValidationResolved      = errors.New("validation already resolved")
	ErrImportLocked            = errors.New("glass import locked")
	ErrRematchInvalid          = errors.New("rematch order numbers required")
)

// GlassBatchSummary 批次概要（冲突提示用）
type GlassBatchSummary struct {
	GlassOrderNumber     string     `json:"glass_order_number"`
	Supplier             string     `json:"supplier"`
	OrderDate            time.Time  `json:"order_date"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	ItemCount            int        `json:"item_count"`
	TotalQuantity        int        `json:"total_quantity"`
	OrderNumbers         []string   `json:"order_numbers"`
}

// GlassOrderConflictError 批次号已存在且未要求替换
type GlassOrderConflictError struct {
	Existing GlassBatchSummary `json:"existing"`
	Incoming GlassBatchSummary `json:"incoming"`
}

func (e *GlassOrderConflictError) Error() string {
	return fmt.Sprintf("glass order %s already exists", e.Existing.GlassOrderNumber)
}

func (e *GlassOrderConflictError) Unwrap() error {
	return ErrGlassOrderExists
}

// IsRetryableMatchingError 判断匹配失败是否可重试（事务超时、数据库锁）
func IsRetryableMatchingError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransactionTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadlock")
}
