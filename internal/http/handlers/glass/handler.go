package glass

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glassline/internal/cache"
	handlershared "github.com/glassline/internal/http/handlers/shared"
	"github.com/glassline/internal/http/response"
	"github.com/glassline/internal/provider"
	"github.com/glassline/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 玻璃对账接口处理器
type Handler struct {
	*provider.Container
}

// New 创建玻璃对账处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

// 写入类接口共用的错误映射
var glassWriteErrorRules = []handlershared.MappedError{
	{Target: service.ErrImportLocked, Code: response.CodeConflict, Key: "error.import_locked"},
	{Target: service.ErrGlassImportInvalid, Code: response.CodeBadRequest, Key: "error.import_invalid"},
	{Target: service.ErrGlassOrderNotFound, Code: response.CodeNotFound, Key: "error.glass_order_not_found"},
	{Target: service.ErrGlassDeliveryNotFound, Code: response.CodeNotFound, Key: "error.glass_delivery_not_found"},
	{Target: service.ErrGlassOrderStatusInvalid, Code: response.CodeBadRequest, Key: "error.glass_order_status"},
	{Target: service.ErrTransactionTimeout, Code: response.CodeServiceUnavailable, Key: "error.transaction_timeout"},
}

var glassReadErrorRules = []handlershared.MappedError{
	{Target: service.ErrGlassOrderNotFound, Code: response.CodeNotFound, Key: "error.glass_order_not_found"},
	{Target: service.ErrGlassDeliveryNotFound, Code: response.CodeNotFound, Key: "error.glass_delivery_not_found"},
	{Target: service.ErrValidationNotFound, Code: response.CodeNotFound, Key: "error.validation_not_found"},
	{Target: service.ErrValidationResolved, Code: response.CodeConflict, Key: "error.validation_resolved"},
	{Target: service.ErrRematchInvalid, Code: response.CodeBadRequest, Key: "error.rematch_invalid"},
}

// withImportLock 持有导入锁执行写操作，锁被占用时返回 ErrImportLocked
func (h *Handler) withImportLock(ctx context.Context, fn func() error) error {
	if h.ImportLock == nil {
		return fn()
	}
	release, err := h.ImportLock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return service.ErrImportLocked
		}
		return err
	}
	defer release()
	return fn()
}

// parseDate 支持 2006-01-02 与 RFC3339 两种格式
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, bool) {
	value, err := parseDate(c.Query(name))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return nil, false
	}
	return value, true
}
